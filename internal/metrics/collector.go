package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/sron/internal/runner"
)

const (
	classHTTP      = "http"
	classTransport = "transport"
)

// Collector aggregates run events in a thread-safe manner.
type Collector struct {
	mu         sync.Mutex
	latency    *hdrhistogram.Histogram
	lag        *hdrhistogram.Histogram
	admitted   int64
	completed  int64
	timeouts   int64
	failures   int64
	minLatency time.Duration
	maxLatency time.Duration
	sumLatency time.Duration
	maxLag     time.Duration
	sumLag     time.Duration

	errorsByType map[string]int64
	failureClass map[string]map[string]int64
}

var (
	_ runner.Observer      = (*Collector)(nil)
	_ runner.FailureLogger = (*Collector)(nil)
)

// Stats represents aggregated metrics.
type Stats struct {
	Total          int64         `json:"total"`
	Completed      int64         `json:"completed"`
	Timeouts       int64         `json:"timeouts"`
	Failures       int64         `json:"failures"`
	TimeoutRate    float64       `json:"timeout_rate"`
	MinLatency     time.Duration `json:"-"`
	MaxLatency     time.Duration `json:"-"`
	MeanLatency    time.Duration `json:"-"`
	P50Latency     time.Duration `json:"-"`
	P90Latency     time.Duration `json:"-"`
	P99Latency     time.Duration `json:"-"`
	MeanLag        time.Duration `json:"-"`
	P99Lag         time.Duration `json:"-"`
	MaxLag         time.Duration `json:"-"`
	Duration       time.Duration `json:"-"`
	RequestsPerSec float64       `json:"requests_per_sec"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64                   `json:"min_latency_ms"`
	MaxLatencyMs  float64                   `json:"max_latency_ms"`
	MeanLatencyMs float64                   `json:"mean_latency_ms"`
	P50LatencyMs  float64                   `json:"p50_latency_ms"`
	P90LatencyMs  float64                   `json:"p90_latency_ms"`
	P99LatencyMs  float64                   `json:"p99_latency_ms"`
	MeanLagMs     float64                   `json:"mean_lag_ms"`
	P99LagMs      float64                   `json:"p99_lag_ms"`
	MaxLagMs      float64                   `json:"max_lag_ms"`
	DurationMs    float64                   `json:"duration_ms"`
	Errors        map[string]int            `json:"errors,omitempty"`
	FailureCodes  map[string]map[string]int `json:"failure_codes,omitempty"`
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 1h with 3 significant figures.
	return &Collector{
		latency:      hdrhistogram.New(1, 3_600_000_000, 3),
		lag:          hdrhistogram.New(1, 3_600_000_000, 3),
		errorsByType: make(map[string]int64),
		failureClass: make(map[string]map[string]int64),
	}
}

// RecordAdmission counts one admitted request.
func (c *Collector) RecordAdmission() {
	c.mu.Lock()
	c.admitted++
	c.mu.Unlock()
}

// RecordOutcome records how an admitted request ended. lag is how late it was sent.
func (c *Collector) RecordOutcome(latency, lag time.Duration, timedOut bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if lag > 0 {
		recordClamped(c.lag, lag)
	}
	c.sumLag += lag
	if lag > c.maxLag {
		c.maxLag = lag
	}

	if timedOut {
		c.timeouts++
		return
	}

	c.completed++
	recordClamped(c.latency, latency)
	c.sumLatency += latency
	if c.completed == 1 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}
}

func recordClamped(h *hdrhistogram.Histogram, d time.Duration) {
	us := d.Microseconds()
	if us < h.LowestTrackableValue() {
		us = h.LowestTrackableValue()
	}
	if us > h.HighestTrackableValue() {
		us = h.HighestTrackableValue()
	}
	_ = h.RecordValue(us)
}

// Admitted implements runner.Observer.
func (c *Collector) Admitted(int, time.Duration) {
	c.RecordAdmission()
}

// Finished implements runner.Observer.
func (c *Collector) Finished(_ int, rec runner.Record) {
	latency, ok := rec.Outcome.Latency()
	c.RecordOutcome(latency, rec.Lag(), !ok)
}

// LogFailure records an error a client returned. HTTP errors are counted by status
// code, everything else by ClassifyError label.
func (c *Collector) LogFailure(err error) {
	if err == nil {
		return
	}

	class, code := classTransport, ""
	var httpErr *runner.HTTPError
	if errors.As(err, &httpErr) {
		class, code = classHTTP, strconv.Itoa(httpErr.StatusCode)
	}

	errorType := typeName(err)
	if code == "" {
		code = ClassifyError(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	c.errorsByType[errorType]++
	codes := c.failureClass[class]
	if codes == nil {
		codes = make(map[string]int64)
		c.failureClass[class] = codes
	}
	codes[code]++
}

// InFlight returns how many admitted requests have not finished yet.
func (c *Collector) InFlight() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.admitted - c.completed - c.timeouts
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	finished := c.completed + c.timeouts
	stats := Stats{
		Total:      c.admitted,
		Completed:  c.completed,
		Timeouts:   c.timeouts,
		Failures:   c.failures,
		MinLatency: c.minLatency,
		MaxLatency: c.maxLatency,
		MaxLag:     c.maxLag,
	}

	if finished > 0 {
		stats.TimeoutRate = float64(c.timeouts) / float64(finished)
		stats.MeanLag = time.Duration(int64(c.sumLag) / finished)
	}
	if c.completed > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / c.completed)
	}

	if c.latency.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.latency.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Latency = time.Duration(c.latency.ValueAtQuantile(90)) * time.Microsecond
		stats.P99Latency = time.Duration(c.latency.ValueAtQuantile(99)) * time.Microsecond
	}
	if c.lag.TotalCount() > 0 {
		stats.P99Lag = time.Duration(c.lag.ValueAtQuantile(99)) * time.Microsecond
	}

	stats.MinLatencyMs = toMs(stats.MinLatency)
	stats.MaxLatencyMs = toMs(stats.MaxLatency)
	stats.MeanLatencyMs = toMs(stats.MeanLatency)
	stats.P50LatencyMs = toMs(stats.P50Latency)
	stats.P90LatencyMs = toMs(stats.P90Latency)
	stats.P99LatencyMs = toMs(stats.P99Latency)
	stats.MeanLagMs = toMs(stats.MeanLag)
	stats.P99LagMs = toMs(stats.P99Lag)
	stats.MaxLagMs = toMs(stats.MaxLag)

	stats.Duration = elapsed
	stats.DurationMs = toMs(elapsed)
	if elapsed > 0 && c.admitted > 0 {
		stats.RequestsPerSec = float64(c.admitted) / elapsed.Seconds()
	}

	if len(c.errorsByType) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByType))
		for k, v := range c.errorsByType {
			stats.Errors[k] = int(v)
		}
	}
	if len(c.failureClass) > 0 {
		stats.FailureCodes = make(map[string]map[string]int, len(c.failureClass))
		for class, codes := range c.failureClass {
			inner := make(map[string]int, len(codes))
			for code, n := range codes {
				inner[code] = int(n)
			}
			stats.FailureCodes[class] = inner
		}
	}

	return stats
}

// GetErrorBreakdown returns a map of error types to their counts.
func (c *Collector) GetErrorBreakdown() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make(map[string]int)
	for k, v := range c.errorsByType {
		result[k] = int(v)
	}
	return result
}

// typeName returns the dynamic type of err, trimmed to its last 30 characters.
func typeName(err error) string {
	name := fmt.Sprintf("%T", err)
	if len(name) > 30 {
		name = name[len(name)-30:]
	}
	return name
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
