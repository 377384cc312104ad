package main

import (
	"fmt"
	"io"
	"sync"

	"golang.org/x/time/rate"
)

const (
	failureLogRate  = 10 // lines per second
	failureLogBurst = 20
)

// stderrFailureLogger prints failed requests with a bounded line rate. Failures over
// the limit are counted and reported by Flush.
type stderrFailureLogger struct {
	mu         sync.Mutex
	w          io.Writer
	limiter    *rate.Limiter
	suppressed int64
}

func newStderrFailureLogger(w io.Writer, limit rate.Limit, burst int) *stderrFailureLogger {
	return &stderrFailureLogger{
		w:       w,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (l *stderrFailureLogger) LogFailure(err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.limiter.Allow() {
		l.suppressed++
		return
	}
	fmt.Fprintf(l.w, "[sron] request failed: %v\n", err)
}

// Flush reports how many failures were not printed.
func (l *stderrFailureLogger) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.suppressed > 0 {
		fmt.Fprintf(l.w, "[sron] %d further request failures not shown\n", l.suppressed)
		l.suppressed = 0
	}
}
