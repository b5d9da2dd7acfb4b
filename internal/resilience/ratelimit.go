package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	applogger "IndexPulse/pkg/logger"
)

// safetyMargin is added to every computed wait so the oldest credit has
// definitely aged out of the window when we re-check.
const safetyMargin = time.Second

// WindowStore persists the credit window externally so several worker
// processes can share one provider quota. Persistence is best-effort:
// a lost update only causes occasional slight over-use of the budget.
type WindowStore interface {
	Load(ctx context.Context) ([]time.Time, error)
	Save(ctx context.Context, stamps []time.Time, ttl time.Duration) error
}

// RateLimiter bounds credit consumption to Budget per trailing Window.
// Acquire blocks (it never fails fast) because the caller accepts the wait
// as the cost of respecting the quota.
type RateLimiter struct {
	budget int
	window time.Duration
	store  WindowStore
	logger *applogger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	stamps []time.Time
}

// RateLimiterOption configures RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithWindowStore attaches an external shared window store.
func WithWindowStore(s WindowStore) RateLimiterOption {
	return func(r *RateLimiter) { r.store = s }
}

// WithRateLimiterLogger attaches a structured logger.
func WithRateLimiterLogger(l *applogger.Logger) RateLimiterOption {
	return func(r *RateLimiter) { r.logger = l }
}

// WithRateLimiterClock overrides the clock and sleeper; used in tests.
func WithRateLimiterClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) RateLimiterOption {
	return func(r *RateLimiter) {
		r.now = now
		r.sleep = sleep
	}
}

// NewRateLimiter creates a sliding-window rate limiter.
func NewRateLimiter(budget int, window time.Duration, opts ...RateLimiterOption) *RateLimiter {
	r := &RateLimiter{
		budget: budget,
		window: window,
		now:    time.Now,
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire blocks until granting credits would not push consumption within
// the trailing window above the budget, then records the consumption.
// The mutex is never held while sleeping.
func (r *RateLimiter) Acquire(ctx context.Context, credits int) error {
	if credits <= 0 {
		return nil
	}
	if credits > r.budget {
		return fmt.Errorf("rate limiter: %d credits exceed budget %d", credits, r.budget)
	}

	for {
		wait, ok := r.tryReserve(ctx, credits)
		if ok {
			return nil
		}
		if wait > r.window {
			wait = r.window
		}
		if r.logger != nil {
			r.logger.Debug("rate limit wait",
				applogger.Int("credits", credits),
				applogger.Duration("wait_ms", wait),
			)
		}
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// tryReserve merges the external window, prunes stale stamps, and either
// records the consumption (ok=true) or returns how long to wait.
func (r *RateLimiter) tryReserve(ctx context.Context, credits int) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.mergeExternalLocked(ctx)
	r.pruneLocked(now)

	if len(r.stamps)+credits > r.budget {
		oldest := r.stamps[0]
		return oldest.Add(r.window).Sub(now) + safetyMargin, false
	}

	for i := 0; i < credits; i++ {
		r.stamps = append(r.stamps, now)
	}
	r.saveExternalLocked(ctx)
	return 0, true
}

func (r *RateLimiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-r.window)
	i := 0
	for i < len(r.stamps) && !r.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		r.stamps = append(r.stamps[:0], r.stamps[i:]...)
	}
}

// mergeExternalLocked folds the externally persisted window into the local
// view. Best-effort; a store failure leaves the local view authoritative.
func (r *RateLimiter) mergeExternalLocked(ctx context.Context) {
	if r.store == nil {
		return
	}
	external, err := r.store.Load(ctx)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("rate limit window load failed", applogger.Error(err))
		}
		return
	}
	if len(external) == 0 {
		return
	}
	seen := make(map[int64]int, len(r.stamps))
	for _, ts := range r.stamps {
		seen[ts.UnixNano()]++
	}
	for _, ts := range external {
		if seen[ts.UnixNano()] > 0 {
			seen[ts.UnixNano()]--
			continue
		}
		r.stamps = append(r.stamps, ts)
	}
	sortStamps(r.stamps)
}

func (r *RateLimiter) saveExternalLocked(ctx context.Context) {
	if r.store == nil {
		return
	}
	// Expiry at roughly 2x window keeps abandoned state from lingering.
	if err := r.store.Save(ctx, r.stamps, 2*r.window); err != nil && r.logger != nil {
		r.logger.Warn("rate limit window save failed", applogger.Error(err))
	}
}

func sortStamps(stamps []time.Time) {
	for i := 1; i < len(stamps); i++ {
		for j := i; j > 0 && stamps[j].Before(stamps[j-1]); j-- {
			stamps[j], stamps[j-1] = stamps[j-1], stamps[j]
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
