package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/torosent/sron/internal/config"
	"github.com/torosent/sron/internal/runner"
	"github.com/torosent/sron/internal/tracing"
)

func buildRequest(t *testing.T, target string) *http.Request {
	t.Helper()
	b, err := NewRequestBuilder(&config.Config{}, target)
	if err != nil {
		t.Fatalf("NewRequestBuilder error = %v", err)
	}
	req, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}
	return req
}

func TestRequesterSuccess(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer server.Close()

	r := NewRequester(server.Client())
	if err := r.Do(context.Background(), buildRequest(t, server.URL)); err != nil {
		t.Fatalf("Do error = %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected 1 hit, got %d", hits.Load())
	}
}

func TestRequesterHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(" overloaded \n"))
	}))
	defer server.Close()

	r := NewRequester(server.Client())
	err := r.Do(context.Background(), buildRequest(t, server.URL))

	var httpErr *runner.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *runner.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", httpErr.StatusCode)
	}
	if httpErr.Body != "overloaded" {
		t.Fatalf("expected trimmed body, got %q", httpErr.Body)
	}
}

func TestRequesterTruncatesErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(strings.Repeat("e", 10*maxErrorBody)))
	}))
	defer server.Close()

	err := NewRequester(server.Client()).Do(context.Background(), buildRequest(t, server.URL))
	var httpErr *runner.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *runner.HTTPError, got %v", err)
	}
	if len(httpErr.Body) != maxErrorBody {
		t.Fatalf("expected body truncated to %d bytes, got %d", maxErrorBody, len(httpErr.Body))
	}
}

func TestRequesterTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	target := server.URL
	server.Close()

	err := NewRequester(nil).Do(context.Background(), buildRequest(t, target))
	if err == nil {
		t.Fatal("expected transport error for closed server")
	}
	var httpErr *runner.HTTPError
	if errors.As(err, &httpErr) {
		t.Fatalf("transport failure reported as HTTP error: %v", err)
	}
}

func TestRequesterTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	var traceparent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent.Store(r.Header.Get("Traceparent"))
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	r := NewRequester(server.Client())
	r.tracer = tp.Tracer("test")
	r.propagate = true

	err := r.Do(context.Background(), buildRequest(t, server.URL))
	if err == nil {
		t.Fatal("expected HTTP error for 418")
	}

	if got, _ := traceparent.Load().(string); got == "" {
		t.Fatal("traceparent header not sent")
	}
	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "HTTP GET" {
		t.Fatalf("unexpected span name %q", spans[0].Name)
	}
	if spans[0].Status.Code != codes.Error {
		t.Fatalf("expected error status, got %v", spans[0].Status.Code)
	}
}

func TestWithTracingDisabledProvider(t *testing.T) {
	p, err := tracing.Init(context.Background(), config.TracingConfig{}, "")
	if err != nil {
		t.Fatalf("Init error = %v", err)
	}
	r := NewRequester(nil, WithTracing(p), WithTracing(nil))
	if r.tracer != nil || r.propagate {
		t.Fatal("disabled provider should leave requests untraced")
	}
}

func TestRequesterWithRunner(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := &config.Config{URLs: []string{server.URL + "/ok", server.URL + "/fail"}}
	builders, err := NewRequestBuilders(cfg)
	if err != nil {
		t.Fatalf("NewRequestBuilders error = %v", err)
	}
	seq, buildErr := Requests(context.Background(), builders, true)

	var failures atomic.Int32
	logger := failureCounter{&failures}
	r, err := runner.New[*http.Request](runner.Options{
		Period:   2 * time.Millisecond,
		Duration: 20 * time.Millisecond,
		Timeout:  runner.NoTimeout,
		Failures: logger,
	}, NewRequester(server.Client()))
	if err != nil {
		t.Fatalf("runner.New error = %v", err)
	}
	records, err := r.Run(context.Background(), seq)
	if err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if err := buildErr(); err != nil {
		t.Fatalf("build error = %v", err)
	}
	if len(records) != 10 {
		t.Fatalf("expected 10 records, got %d", len(records))
	}
	for i, rec := range records {
		if rec.Outcome.IsTimeout() {
			t.Fatalf("record %d timed out", i)
		}
	}
	if hits.Load() != 10 {
		t.Fatalf("expected 10 hits, got %d", hits.Load())
	}
	if failures.Load() != 5 {
		t.Fatalf("expected 5 logged failures, got %d", failures.Load())
	}
}

type failureCounter struct {
	n *atomic.Int32
}

func (f failureCounter) LogFailure(error) {
	f.n.Add(1)
}

func TestRequesterDoWaitsForBody(t *testing.T) {
	const bodyDelay = 50 * time.Millisecond
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		time.Sleep(bodyDelay)
		_, _ = w.Write([]byte("late body"))
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest error = %v", err)
	}

	start := time.Now()
	if err := NewRequester(server.Client()).Do(context.Background(), req); err != nil {
		t.Fatalf("Do error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < bodyDelay {
		t.Fatalf("Do returned after %v, before the body arrived (%v)", elapsed, bodyDelay)
	}
}
