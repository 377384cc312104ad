package runner_test

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"
	"testing"
	"time"

	"github.com/torosent/sron/internal/runner"
)

// latencyRequest asks the latency client to take at least this long.
type latencyRequest time.Duration

func latencyClient() runner.Client[latencyRequest] {
	return runner.ClientFunc[latencyRequest](func(ctx context.Context, req latencyRequest) error {
		time.Sleep(time.Duration(req))
		return nil
	})
}

func repeatLatency(d time.Duration) func() latencyRequest {
	return func() latencyRequest { return latencyRequest(d) }
}

func mustRunner(t *testing.T, opt runner.Options, client runner.Client[latencyRequest]) *runner.Runner[latencyRequest] {
	t.Helper()
	r, err := runner.New(opt, client)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func TestRunnerAdmitsOneRequestPerPeriod(t *testing.T) {
	r := mustRunner(t, runner.Options{
		Period:   2 * time.Millisecond,
		Duration: 10 * time.Millisecond,
		Timeout:  runner.NoTimeout,
	}, latencyClient())

	records, err := r.Run(context.Background(), runner.Repeat(repeatLatency(10*time.Millisecond)))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	for i, rec := range records {
		latency, ok := rec.Outcome.Latency()
		if !ok {
			t.Fatalf("record %d timed out", i)
		}
		if latency < 10*time.Millisecond {
			t.Errorf("record %d latency = %s, want >= 10ms", i, latency)
		}
	}
}

func TestRunnerAvoidsCoordinatedOmission(t *testing.T) {
	r := mustRunner(t, runner.Options{
		Period:   2 * time.Millisecond,
		Duration: 20 * time.Millisecond,
	}, latencyClient())

	reqs := runner.Concat(
		runner.Take(runner.Repeat(repeatLatency(10*time.Millisecond)), 5),
		runner.Repeat(repeatLatency(100*time.Millisecond)),
	)

	start := time.Now()
	records, err := r.Run(context.Background(), reqs)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(records) != 10 {
		t.Fatalf("expected 10 records, got %d", len(records))
	}
	for i, rec := range records {
		want := 10 * time.Millisecond
		if i >= 5 {
			want = 100 * time.Millisecond
		}
		latency, ok := rec.Outcome.Latency()
		if !ok {
			t.Fatalf("record %d timed out", i)
		}
		if latency < want {
			t.Errorf("record %d latency = %s, want >= %s", i, latency, want)
		}
	}
	// Serialized dispatch would need at least 5*10ms + 5*100ms.
	if elapsed >= 550*time.Millisecond {
		t.Errorf("run took %s; requests appear to be serialized", elapsed)
	}
}

func TestRunnerTimesOutSlowRequests(t *testing.T) {
	r := mustRunner(t, runner.Options{
		Period:   time.Millisecond,
		Duration: 5 * time.Millisecond,
		Timeout:  10 * time.Millisecond,
	}, latencyClient())

	records, err := r.Run(context.Background(), runner.Repeat(repeatLatency(100*time.Millisecond)))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	for i, rec := range records {
		if !rec.Outcome.IsTimeout() {
			t.Errorf("record %d = %s, want TIMEOUT", i, rec.Outcome)
		}
		if _, ok := rec.Outcome.Latency(); ok {
			t.Errorf("record %d: timed out outcome reported a latency", i)
		}
	}
}

func TestRunnerDispatchIsMonotonic(t *testing.T) {
	r := mustRunner(t, runner.Options{
		Period:   2 * time.Millisecond,
		Duration: 10 * time.Millisecond,
	}, latencyClient())

	records, err := r.Run(context.Background(), runner.Repeat(repeatLatency(time.Millisecond)))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].StartOffset <= records[i-1].StartOffset {
			t.Errorf("start offsets not increasing at %d: %s <= %s",
				i, records[i].StartOffset, records[i-1].StartOffset)
		}
	}
}

func TestRunnerPreservesAdmissionOrder(t *testing.T) {
	r := mustRunner(t, runner.Options{
		Period:   time.Millisecond,
		Duration: 4 * time.Millisecond,
	}, latencyClient())

	// Earlier requests finish last.
	latencies := []latencyRequest{
		latencyRequest(40 * time.Millisecond),
		latencyRequest(30 * time.Millisecond),
		latencyRequest(20 * time.Millisecond),
		latencyRequest(0),
	}
	records, err := r.Run(context.Background(), runner.Slice(latencies))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(records) != len(latencies) {
		t.Fatalf("expected %d records, got %d", len(latencies), len(records))
	}
	for i, rec := range records {
		if want := time.Duration(i) * time.Millisecond; rec.Scheduled != want {
			t.Errorf("record %d scheduled at %s, want %s", i, rec.Scheduled, want)
		}
		latency, _ := rec.Outcome.Latency()
		if latency < time.Duration(latencies[i]) {
			t.Errorf("record %d latency = %s, want >= %s", i, latency, time.Duration(latencies[i]))
		}
	}
}

func TestRunnerZeroDurationAdmitsNothing(t *testing.T) {
	var calls int64
	client := runner.ClientFunc[latencyRequest](func(context.Context, latencyRequest) error {
		atomic.AddInt64(&calls, 1)
		return nil
	})
	r := mustRunner(t, runner.Options{Period: time.Millisecond}, client)

	records, err := r.Run(context.Background(), runner.Repeat(repeatLatency(0)))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
	if atomic.LoadInt64(&calls) != 0 {
		t.Fatalf("expected no client calls, got %d", calls)
	}
}

func TestRunnerEmptySource(t *testing.T) {
	r := mustRunner(t, runner.Options{Period: time.Millisecond, Duration: time.Second}, latencyClient())

	for name, seq := range map[string]iter.Seq[latencyRequest]{
		"empty slice": runner.Slice[latencyRequest](nil),
		"empty cycle": runner.Cycle[latencyRequest](nil),
		"nil source":  nil,
	} {
		t.Run(name, func(t *testing.T) {
			records, err := r.Run(context.Background(), seq)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if len(records) != 0 {
				t.Fatalf("expected no records, got %d", len(records))
			}
		})
	}
}

func TestRunnerStopsWhenSourceIsExhausted(t *testing.T) {
	r := mustRunner(t, runner.Options{Period: time.Millisecond, Duration: time.Minute}, latencyClient())

	start := time.Now()
	records, err := r.Run(context.Background(), runner.Slice([]latencyRequest{0, 0, 0}))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("run waited for the full duration: %s", elapsed)
	}
}

func TestRunnerCountsClientErrorsAsCompleted(t *testing.T) {
	client := runner.ClientFunc[latencyRequest](func(context.Context, latencyRequest) error {
		return &runner.HTTPError{StatusCode: 503}
	})
	r := mustRunner(t, runner.Options{
		Period:   time.Millisecond,
		Duration: 3 * time.Millisecond,
		Timeout:  time.Second,
	}, client)

	records, err := r.Run(context.Background(), runner.Repeat(repeatLatency(0)))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, rec := range records {
		if rec.Outcome.IsTimeout() {
			t.Errorf("record %d timed out, want completed", i)
		}
	}
}

func TestRunnerCrashFailsRun(t *testing.T) {
	client := runner.ClientFunc[latencyRequest](func(_ context.Context, req latencyRequest) error {
		if req == 1 {
			panic("boom")
		}
		return nil
	})
	r := mustRunner(t, runner.Options{
		Period:   time.Millisecond,
		Duration: 5 * time.Millisecond,
		Timeout:  time.Second,
	}, client)

	records, err := r.Run(context.Background(), runner.Slice([]latencyRequest{0, 1, 0}))
	if !errors.Is(err, runner.ErrTaskCrashed) {
		t.Fatalf("Run() error = %v, want ErrTaskCrashed", err)
	}
	if records != nil {
		t.Fatalf("expected no records on crash, got %d", len(records))
	}
}

func TestRunnerIgnoresContextCancellation(t *testing.T) {
	var sawCancel atomic.Bool
	client := runner.ClientFunc[latencyRequest](func(ctx context.Context, _ latencyRequest) error {
		if ctx.Err() != nil {
			sawCancel.Store(true)
		}
		return nil
	})
	r := mustRunner(t, runner.Options{Period: time.Millisecond, Duration: 3 * time.Millisecond}, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	records, err := r.Run(ctx, runner.Repeat(repeatLatency(0)))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if sawCancel.Load() {
		t.Fatalf("client observed a cancelled context")
	}
}

type countingObserver struct {
	admitted atomic.Int64
	finished atomic.Int64
	timeouts atomic.Int64
}

func (o *countingObserver) Admitted(int, time.Duration) { o.admitted.Add(1) }

func (o *countingObserver) Finished(_ int, rec runner.Record) {
	o.finished.Add(1)
	if rec.Outcome.IsTimeout() {
		o.timeouts.Add(1)
	}
}

func TestRunnerNotifiesObserver(t *testing.T) {
	obs := &countingObserver{}
	r := mustRunner(t, runner.Options{
		Period:   time.Millisecond,
		Duration: 4 * time.Millisecond,
		Timeout:  20 * time.Millisecond,
		Observer: obs,
	}, latencyClient())

	reqs := runner.Slice([]latencyRequest{0, latencyRequest(200 * time.Millisecond), 0, 0})
	if _, err := r.Run(context.Background(), reqs); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := obs.admitted.Load(); got != 4 {
		t.Errorf("admitted = %d, want 4", got)
	}
	if got := obs.finished.Load(); got != 4 {
		t.Errorf("finished = %d, want 4", got)
	}
	if got := obs.timeouts.Load(); got != 1 {
		t.Errorf("timeouts = %d, want 1", got)
	}
}

func TestObserversFanOut(t *testing.T) {
	first, second := &countingObserver{}, &countingObserver{}
	obs := runner.Observers{first, nil, second}

	obs.Admitted(0, 0)
	obs.Finished(0, runner.Record{Outcome: runner.TimedOut()})

	for i, o := range []*countingObserver{first, second} {
		if o.admitted.Load() != 1 || o.finished.Load() != 1 || o.timeouts.Load() != 1 {
			t.Errorf("observer %d got admitted=%d finished=%d timeouts=%d, want 1 each",
				i, o.admitted.Load(), o.finished.Load(), o.timeouts.Load())
		}
	}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name    string
		opt     runner.Options
		client  runner.Client[latencyRequest]
		wantErr error
	}{
		{"zero period", runner.Options{Duration: time.Second}, latencyClient(), runner.ErrInvalidPeriod},
		{"negative period", runner.Options{Period: -time.Millisecond}, latencyClient(), runner.ErrInvalidPeriod},
		{"negative duration", runner.Options{Period: time.Millisecond, Duration: -1}, latencyClient(), runner.ErrInvalidDuration},
		{"negative timeout", runner.Options{Period: time.Millisecond, Timeout: -1}, latencyClient(), runner.ErrInvalidTimeout},
		{"nil client", runner.Options{Period: time.Millisecond}, nil, runner.ErrNilClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runner.New(tt.opt, tt.client)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func BenchmarkRunnerZeroLatency(b *testing.B) {
	r, err := runner.New(runner.Options{
		Period:   time.Millisecond,
		Duration: 5 * time.Millisecond,
	}, latencyClient())
	if err != nil {
		b.Fatalf("New() error = %v", err)
	}
	reqs := runner.Take(runner.Repeat(repeatLatency(0)), 5)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.Run(context.Background(), reqs); err != nil {
			b.Fatalf("Run() error = %v", err)
		}
	}
}
