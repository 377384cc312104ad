package httpclient

import (
	"context"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/sron/internal/runner"
	"github.com/torosent/sron/internal/tracing"
)

// maxErrorBody bounds how much of an error response is kept in an HTTPError.
const maxErrorBody = 256

// Requester sends built requests and satisfies runner.Client.
type Requester struct {
	client    *http.Client
	tracer    trace.Tracer
	propagate bool
}

var _ runner.Client[*http.Request] = (*Requester)(nil)

// RequesterOption configures a Requester.
type RequesterOption func(*Requester)

// WithTracing starts a client span per request and, when the provider propagates,
// injects W3C trace headers.
func WithTracing(p *tracing.Provider) RequesterOption {
	return func(r *Requester) {
		if p == nil || !p.ShouldPropagate() {
			return
		}
		r.tracer = p.Tracer()
		r.propagate = true
	}
}

// NewRequester wraps client. A nil client uses http.DefaultClient.
func NewRequester(client *http.Client, opts ...RequesterOption) *Requester {
	if client == nil {
		client = http.DefaultClient
	}
	r := &Requester{client: client}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do sends req and reads the response to the end, so the latency the runner measures
// around it includes the body transfer, not just the time to response headers.
// Transport failures are returned as is; statuses >= 400 come back as *runner.HTTPError.
func (r *Requester) Do(ctx context.Context, req *http.Request) error {
	if ctx == nil {
		ctx = req.Context()
	}

	var span trace.Span
	if r.tracer != nil {
		ctx, span = tracing.StartRequestSpan(ctx, r.tracer, req)
		if r.propagate {
			tracing.InjectHTTPHeaders(ctx, req.Header)
		}
	}
	req = req.WithContext(ctx)

	resp, err := r.client.Do(req)
	if err != nil {
		if span != nil {
			tracing.EndSpan(span, err)
		}
		return err
	}
	defer resp.Body.Close()

	var reqErr error
	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		reqErr = &runner.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	if _, err := io.Copy(io.Discard, resp.Body); err != nil && reqErr == nil {
		reqErr = err
	}

	if span != nil {
		tracing.EndSpan(span, reqErr, tracing.StatusAttr(resp.StatusCode))
	}
	return reqErr
}
