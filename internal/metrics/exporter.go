package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/torosent/sron/internal/runner"
)

// Exporter publishes live run metrics in the Prometheus exposition format. Each
// Exporter owns its registry, so several can coexist in one process.
type Exporter struct {
	registry  *prometheus.Registry
	admitted  prometheus.Counter
	completed prometheus.Counter
	timeouts  prometheus.Counter
	failures  *prometheus.CounterVec
	inFlight  prometheus.Gauge
	latency   prometheus.Histogram
	lag       prometheus.Histogram

	server *http.Server
}

var (
	_ runner.Observer      = (*Exporter)(nil)
	_ runner.FailureLogger = (*Exporter)(nil)
)

// NewExporter creates an exporter. runID, when set, is attached to every series as a
// constant label.
func NewExporter(runID string) *Exporter {
	labels := prometheus.Labels{}
	if runID != "" {
		labels["run_id"] = runID
	}

	e := &Exporter{
		registry: prometheus.NewRegistry(),
		admitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "sron",
			Name:        "requests_admitted_total",
			Help:        "Requests admitted by the pacing loop.",
			ConstLabels: labels,
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "sron",
			Name:        "requests_completed_total",
			Help:        "Requests whose response was observed before the timeout.",
			ConstLabels: labels,
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "sron",
			Name:        "requests_timed_out_total",
			Help:        "Requests that exceeded the per-request timeout.",
			ConstLabels: labels,
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "sron",
			Name:        "request_failures_total",
			Help:        "Errors returned by the client, by class and code.",
			ConstLabels: labels,
		}, []string{"class", "code"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "sron",
			Name:        "requests_in_flight",
			Help:        "Admitted requests that have not finished.",
			ConstLabels: labels,
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "sron",
			Name:        "request_latency_seconds",
			Help:        "Latency of completed requests, measured from the actual send time.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.0005, 2, 18),
		}),
		lag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "sron",
			Name:        "dispatch_lag_seconds",
			Help:        "How late requests were sent relative to their schedule.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}

	e.registry.MustRegister(e.admitted, e.completed, e.timeouts, e.failures, e.inFlight, e.latency, e.lag)
	return e
}

// Registry returns the exporter's private registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Admitted implements runner.Observer.
func (e *Exporter) Admitted(int, time.Duration) {
	e.admitted.Inc()
	e.inFlight.Inc()
}

// Finished implements runner.Observer.
func (e *Exporter) Finished(_ int, rec runner.Record) {
	e.inFlight.Dec()
	e.lag.Observe(rec.Lag().Seconds())
	if latency, ok := rec.Outcome.Latency(); ok {
		e.completed.Inc()
		e.latency.Observe(latency.Seconds())
		return
	}
	e.timeouts.Inc()
}

// LogFailure implements runner.FailureLogger.
func (e *Exporter) LogFailure(err error) {
	if err == nil {
		return
	}
	var httpErr *runner.HTTPError
	if errors.As(err, &httpErr) {
		e.failures.WithLabelValues(classHTTP, strconv.Itoa(httpErr.StatusCode)).Inc()
		return
	}
	e.failures.WithLabelValues(classTransport, ClassifyError(err)).Inc()
}

// Handler serves the registry at any path.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

// Serve listens on addr and serves /metrics in the background. It returns once the
// listener is bound, so address errors surface before the run starts.
func (e *Exporter) Serve(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	e.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = e.server.Serve(ln)
	}()
	return ln.Addr(), nil
}

// Shutdown stops the metrics server, if one was started.
func (e *Exporter) Shutdown(ctx context.Context) error {
	if e.server == nil {
		return nil
	}
	return e.server.Shutdown(ctx)
}
