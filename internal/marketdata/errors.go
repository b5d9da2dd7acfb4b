package marketdata

import (
	"fmt"
	"time"

	"IndexPulse/internal/resilience"
)

// RateLimitError signals provider quota exhaustion. Always retryable; the
// optional hint carries the provider-specified wait.
type RateLimitError struct {
	Hint time.Duration
	Err  error
}

func (e *RateLimitError) Error() string {
	if e.Hint > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %v", e.Hint, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

func (e *RateLimitError) Kind() resilience.ErrorKind { return resilience.KindRateLimited }

func (e *RateLimitError) RetryAfter() (time.Duration, bool) {
	return e.Hint, e.Hint > 0
}

// ServerError signals a 5xx-equivalent or transport failure. Retryable with
// backoff.
type ServerError struct {
	Status int
	Err    error
}

func (e *ServerError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider server error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("provider unreachable: %v", e.Err)
}

func (e *ServerError) Unwrap() error { return e.Err }

func (e *ServerError) Kind() resilience.ErrorKind { return resilience.KindServer }

// ClientError signals a 4xx-equivalent request failure. Never retried.
type ClientError struct {
	Status int
	Err    error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("provider client error (status %d): %v", e.Status, e.Err)
}

func (e *ClientError) Unwrap() error { return e.Err }

func (e *ClientError) Kind() resilience.ErrorKind { return resilience.KindClient }

// DataValidationError marks a fetched series that failed sanity checks.
// The affected symbol is dropped from the batch result, not fatal to the
// whole operation.
type DataValidationError struct {
	Symbol string
	Reason string
}

func (e *DataValidationError) Error() string {
	return fmt.Sprintf("invalid data for %s: %s", e.Symbol, e.Reason)
}
