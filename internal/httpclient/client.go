package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/torosent/sron/internal/config"
	"github.com/torosent/sron/internal/runner"
)

type RequestBuilder struct {
	method  string
	target  string
	headers http.Header
	body    BodySource
}

// NewRequestBuilder creates a builder for a single target URL. The method, headers and
// body come from cfg.
func NewRequestBuilder(cfg *config.Config, target string) (*RequestBuilder, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	bodySource, err := NewBodySource(cfg)
	if err != nil {
		return nil, err
	}
	return newRequestBuilder(cfg, target, bodySource)
}

// NewRequestBuilders creates one builder per configured URL, in order. The body source
// is shared between them.
func NewRequestBuilders(cfg *config.Config) ([]*RequestBuilder, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if len(cfg.URLs) == 0 {
		return nil, errors.New("at least one target URL is required")
	}

	bodySource, err := NewBodySource(cfg)
	if err != nil {
		return nil, err
	}

	builders := make([]*RequestBuilder, 0, len(cfg.URLs))
	for i, target := range cfg.URLs {
		b, err := newRequestBuilder(cfg, target, bodySource)
		if err != nil {
			return nil, fmt.Errorf("urls[%d]: %w", i, err)
		}
		builders = append(builders, b)
	}
	return builders, nil
}

func newRequestBuilder(cfg *config.Config, target string, bodySource BodySource) (*RequestBuilder, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.New("target URL is required")
	}

	method := strings.TrimSpace(cfg.Method)
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)

	if bodySource == nil {
		bodySource = noBody{}
	}

	headers := http.Header{}
	for key, value := range cfg.Headers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		if strings.ContainsAny(trimmedKey, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}
		headers.Set(canonicalKey, value)
	}

	return &RequestBuilder{
		method:  method,
		target:  target,
		headers: headers,
		body:    bodySource,
	}, nil
}

// Target returns the URL the builder sends to.
func (b *RequestBuilder) Target() string {
	return b.target
}

func (b *RequestBuilder) Build(ctx context.Context) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	reader, err := b.body.NewReader()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, b.method, b.target, reader)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}

	req.Header = b.headers.Clone()
	if req.Header == nil {
		req.Header = http.Header{}
	}

	if length, ok := b.body.ContentLength(); ok {
		req.ContentLength = length
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return b.body.NewReader()
	}

	return req, nil
}

// Requests yields a freshly built request per admission, walking builders in order.
// With cycle set the walk wraps around forever; otherwise it stops after the last
// builder. A build failure ends the sequence; the returned func reports it once the
// sequence has been consumed.
func Requests(ctx context.Context, builders []*RequestBuilder, cycle bool) (iter.Seq[*http.Request], func() error) {
	var buildErr error
	order := runner.Slice(builders)
	if cycle {
		order = runner.Cycle(builders)
	}

	seq := func(yield func(*http.Request) bool) {
		for b := range order {
			req, err := b.Build(ctx)
			if err != nil {
				buildErr = fmt.Errorf("build request for %s: %w", b.target, err)
				return
			}
			if !yield(req) {
				return
			}
		}
	}
	return seq, func() error { return buildErr }
}

// NewClient creates a pooled HTTP client. The client gives up on a call after twice
// timeout, so calls the dispatcher has already abandoned do not hold connections
// forever; a zero timeout leaves calls unbounded.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          1024,
		MaxIdleConnsPerHost:   256,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   2 * timeout,
		Transport: transport,
	}
}
