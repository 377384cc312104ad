package runner

import "fmt"

// HTTPError represents a response with an error status. It is reported through
// Options.Failures only; the runner still records the request as completed.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// FailureLogger logs failed requests. The runner calls it from request goroutines,
// so implementations must be safe for concurrent use.
type FailureLogger interface {
	LogFailure(err error)
}

// MultiLogger fans a failure out to several loggers.
type MultiLogger []FailureLogger

func (m MultiLogger) LogFailure(err error) {
	for _, logger := range m {
		if logger != nil {
			logger.LogFailure(err)
		}
	}
}
