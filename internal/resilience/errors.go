package resilience

import (
	"errors"
	"time"
)

// ErrCircuitOpen is returned by CircuitBreaker.Call when the circuit is open
// and the recovery cooldown has not elapsed; the wrapped call is not invoked.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrorKind classifies an error for retry decisions. Retry logic is a pure
// function of the kind, never of concrete error types.
type ErrorKind int

const (
	// KindClient marks permanent errors (4xx-equivalent); never retried.
	KindClient ErrorKind = iota
	// KindServer marks transient errors (5xx-equivalent); retried with
	// exponential backoff.
	KindServer
	// KindRateLimited marks quota errors; retried honoring any provider
	// supplied retry-after hint.
	KindRateLimited
)

func (k ErrorKind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "client"
	}
}

// Kinder is implemented by errors that carry an explicit retry class.
type Kinder interface {
	Kind() ErrorKind
}

// RetryAfterHint is implemented by rate-limit errors that carry a
// provider-specified wait.
type RetryAfterHint interface {
	RetryAfter() (time.Duration, bool)
}

// KindOf extracts the retry class from an error chain. Unclassified errors
// are treated as permanent: only deliberately tagged errors are retried.
func KindOf(err error) ErrorKind {
	var k Kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindClient
}

// Retryable reports whether err is worth retrying at all.
func Retryable(err error) bool {
	return KindOf(err) != KindClient
}
