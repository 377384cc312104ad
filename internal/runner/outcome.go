package runner

import "time"

// Outcome is the result of a single request: either the request completed and has a
// latency, or it timed out and has none.
type Outcome struct {
	latency  time.Duration
	timedOut bool
}

// Completed returns the outcome of a request that was observed before its timeout.
// Negative latencies are clamped to zero.
func Completed(latency time.Duration) Outcome {
	if latency < 0 {
		latency = 0
	}
	return Outcome{latency: latency}
}

// TimedOut returns the outcome of a request whose response was not observed in time.
func TimedOut() Outcome {
	return Outcome{timedOut: true}
}

// IsTimeout reports whether the request timed out.
func (o Outcome) IsTimeout() bool {
	return o.timedOut
}

// Latency returns the measured latency. ok is false for timed out requests.
func (o Outcome) Latency() (latency time.Duration, ok bool) {
	if o.timedOut {
		return 0, false
	}
	return o.latency, true
}

func (o Outcome) String() string {
	if o.timedOut {
		return "TIMEOUT"
	}
	return o.latency.String()
}

// Record is the result of one admitted request.
type Record struct {
	// Scheduled is the offset from the run start at which the request was due.
	Scheduled time.Duration
	// StartOffset is the offset from the run start at which the request was actually sent.
	StartOffset time.Duration
	Outcome     Outcome
}

// Lag is how late the request was sent relative to its schedule.
func (r Record) Lag() time.Duration {
	if lag := r.StartOffset - r.Scheduled; lag > 0 {
		return lag
	}
	return 0
}

// scheduleEntry is the admission decision for one request.
type scheduleEntry struct {
	index  int
	offset time.Duration
}
