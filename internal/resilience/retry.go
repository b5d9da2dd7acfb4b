package resilience

import (
	"context"
	"time"

	applogger "IndexPulse/pkg/logger"
)

// RetryPolicy wraps a call with bounded retries. Rate-limit errors honor
// the provider retry-after hint; server errors back off exponentially,
// doubling from BaseDelay; client errors propagate immediately.
type RetryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	logger     *applogger.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// RetryOption configures RetryPolicy.
type RetryOption func(*RetryPolicy)

// WithRetryLogger attaches a structured logger.
func WithRetryLogger(l *applogger.Logger) RetryOption {
	return func(p *RetryPolicy) { p.logger = l }
}

// WithRetrySleeper overrides the sleeper; used in tests.
func WithRetrySleeper(sleep func(ctx context.Context, d time.Duration) error) RetryOption {
	return func(p *RetryPolicy) { p.sleep = sleep }
}

// NewRetryPolicy creates a retry policy with maxRetries additional attempts
// after the first call.
func NewRetryPolicy(maxRetries int, baseDelay time.Duration, opts ...RetryOption) *RetryPolicy {
	p := &RetryPolicy{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Do runs fn, retrying classified-transient failures. Exhausting the retry
// budget returns the last transient error. The ctx deadline bounds the
// whole chain, including backoff sleeps.
func (p *RetryPolicy) Do(ctx context.Context, operation string, fn func() error) error {
	delay := p.baseDelay
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		kind := KindOf(lastErr)
		if kind == KindClient || attempt >= p.maxRetries {
			return lastErr
		}

		wait := delay
		if kind == KindRateLimited {
			if hinted, ok := retryAfterOf(lastErr); ok && hinted > 0 {
				wait = hinted
			}
		} else {
			delay *= 2
		}

		if p.logger != nil {
			p.logger.Warn("transient error, retrying",
				applogger.String("operation", operation),
				applogger.String("kind", kind.String()),
				applogger.Int("attempt", attempt+1),
				applogger.Duration("wait_ms", wait),
				applogger.Error(lastErr),
			)
		}
		if err := p.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func retryAfterOf(err error) (time.Duration, bool) {
	for e := err; e != nil; e = unwrap(e) {
		if h, ok := e.(RetryAfterHint); ok {
			return h.RetryAfter()
		}
	}
	return 0, false
}

func unwrap(err error) error {
	u, ok := err.(interface{ Unwrap() error })
	if !ok {
		return nil
	}
	return u.Unwrap()
}
