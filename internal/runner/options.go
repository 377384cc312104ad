package runner

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidPeriod is returned when the dispatch period is not positive.
	ErrInvalidPeriod = errors.New("period must be > 0")
	// ErrInvalidDuration is returned for a negative run duration.
	ErrInvalidDuration = errors.New("duration must be >= 0")
	// ErrInvalidTimeout is returned for a negative request timeout.
	ErrInvalidTimeout = errors.New("timeout must be >= 0")
	// ErrNilClient is returned when no client is supplied.
	ErrNilClient = errors.New("client is required")
	// ErrTaskCrashed is returned when a request goroutine panics.
	ErrTaskCrashed = errors.New("request task crashed")
)

// NoTimeout disables the per-request timeout.
const NoTimeout time.Duration = 0

// Client sends a single request. Implementations must be safe for concurrent use.
// The runner treats any return before the timeout as a completed request; the error
// only reaches Options.Failures.
type Client[R any] interface {
	Do(ctx context.Context, req R) error
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc[R any] func(ctx context.Context, req R) error

func (f ClientFunc[R]) Do(ctx context.Context, req R) error {
	return f(ctx, req)
}

// Observer receives run events as they happen. Admitted is called from the pacing
// loop, Finished from request goroutines, so implementations must be safe for
// concurrent use.
type Observer interface {
	Admitted(index int, offset time.Duration)
	Finished(index int, rec Record)
}

// Options configure the Runner.
type Options struct {
	Period   time.Duration // spacing between consecutive dispatches (required)
	Duration time.Duration // admission window; 0 admits nothing
	Timeout  time.Duration // per-request timeout (NoTimeout means unbounded)
	Observer Observer      // optional
	// Failures receives the error of every call that returned one before its
	// timeout. Calls abandoned by the timeout are never reported. Optional.
	Failures FailureLogger
}

// Validate checks the options before any request is dispatched.
func (o Options) Validate() error {
	if o.Period <= 0 {
		return ErrInvalidPeriod
	}
	if o.Duration < 0 {
		return ErrInvalidDuration
	}
	if o.Timeout < 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// Admissions returns how many requests an inexhaustible source gets admitted.
func (o Options) Admissions() int {
	if o.Period <= 0 || o.Duration <= 0 {
		return 0
	}
	n := o.Duration / o.Period
	if o.Duration%o.Period != 0 {
		n++
	}
	return int(n)
}

// Observers fans run events out to several observers, in order.
type Observers []Observer

func (o Observers) Admitted(index int, offset time.Duration) {
	for _, obs := range o {
		if obs != nil {
			obs.Admitted(index, offset)
		}
	}
}

func (o Observers) Finished(index int, rec Record) {
	for _, obs := range o {
		if obs != nil {
			obs.Finished(index, rec)
		}
	}
}
