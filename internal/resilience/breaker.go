package resilience

import (
	"sync"
	"time"

	applogger "IndexPulse/pkg/logger"
)

// CircuitState is the breaker state machine position.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// CircuitBreaker stops calling a failing dependency for a cooldown period.
// State is per-process: concurrent workers each track failures
// independently.
type CircuitBreaker struct {
	failureThreshold int
	recoveryTimeout  time.Duration
	logger           *applogger.Logger
	onStateChange    func(state string)

	now func() time.Time

	mu          sync.Mutex
	state       CircuitState
	failures    int
	lastFailure time.Time
}

// BreakerOption configures CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithBreakerLogger attaches a structured logger.
func WithBreakerLogger(l *applogger.Logger) BreakerOption {
	return func(b *CircuitBreaker) { b.logger = l }
}

// WithBreakerClock overrides the clock; used in tests.
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(b *CircuitBreaker) { b.now = now }
}

// WithStateChangeHook registers a callback fired on every transition.
func WithStateChangeHook(fn func(state string)) BreakerOption {
	return func(b *CircuitBreaker) { b.onStateChange = fn }
}

// NewCircuitBreaker creates a breaker that opens after failureThreshold
// consecutive failures and probes again after recoveryTimeout.
func NewCircuitBreaker(failureThreshold int, recoveryTimeout time.Duration, opts ...BreakerOption) *CircuitBreaker {
	b := &CircuitBreaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            StateClosed,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Call invokes fn unless the circuit is open. It returns fn's error after
// bookkeeping, or ErrCircuitOpen without invoking fn when rejecting.
func (b *CircuitBreaker) Call(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn()
	b.after(err)
	return err
}

// State returns the current breaker state.
func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *CircuitBreaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailure) < b.recoveryTimeout {
			return ErrCircuitOpen
		}
		b.transitionLocked(StateHalfOpen)
	case StateHalfOpen:
		// One probe at a time; a second caller is rejected until the
		// probe resolves.
		return ErrCircuitOpen
	}
	return nil
}

func (b *CircuitBreaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state == StateHalfOpen || b.failures > 0 {
			b.failures = 0
			b.transitionLocked(StateClosed)
		}
		return
	}

	b.lastFailure = b.now()
	switch b.state {
	case StateHalfOpen:
		// Probe failed: reopen, failure count unchanged.
		b.transitionLocked(StateOpen)
	default:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.transitionLocked(StateOpen)
		}
	}
}

func (b *CircuitBreaker) transitionLocked(next CircuitState) {
	if b.state == next {
		return
	}
	prev := b.state
	b.state = next
	if b.logger != nil {
		b.logger.Warn("circuit state change",
			applogger.String("from", prev.String()),
			applogger.String("to", next.String()),
			applogger.Int("failures", b.failures),
		)
	}
	if b.onStateChange != nil {
		b.onStateChange(next.String())
	}
}
