package resilience

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock drives the limiter deterministically: sleeps advance the clock
// instead of blocking.
type fakeClock struct {
	mu     sync.Mutex
	t      time.Time
	slept  []time.Duration
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	c.slept = append(c.slept, d)
	c.sleeps++
	return nil
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(budget int, window time.Duration, clk *fakeClock, opts ...RateLimiterOption) *RateLimiter {
	opts = append(opts, WithRateLimiterClock(clk.now, clk.sleep))
	return NewRateLimiter(budget, window, opts...)
}

func TestAcquireWithinBudgetDoesNotBlock(t *testing.T) {
	clk := newFakeClock()
	rl := newTestLimiter(5, time.Minute, clk)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := rl.Acquire(ctx, 1); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if clk.sleeps != 0 {
		t.Fatalf("expected no sleeps, got %d", clk.sleeps)
	}
}

func TestAcquireOverBudgetBlocksUntilRollover(t *testing.T) {
	clk := newFakeClock()
	rl := newTestLimiter(3, time.Minute, clk)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := rl.Acquire(ctx, 1); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}

	// The budget+1-th acquire must wait until the oldest credit ages out.
	if err := rl.Acquire(ctx, 1); err != nil {
		t.Fatalf("blocked acquire: %v", err)
	}
	if clk.sleeps == 0 {
		t.Fatal("expected the over-budget acquire to sleep")
	}
	// First wait is window + safety margin since all credits share one instant.
	if clk.slept[0] != time.Minute {
		// capped at window length
		t.Fatalf("expected first sleep capped at window, got %v", clk.slept[0])
	}
}

func TestAcquireNeverExceedsBudgetInWindow(t *testing.T) {
	clk := newFakeClock()
	rl := newTestLimiter(4, time.Minute, clk)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		if err := rl.Acquire(ctx, 1); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		rl.mu.Lock()
		rl.pruneLocked(clk.now())
		inWindow := len(rl.stamps)
		rl.mu.Unlock()
		if inWindow > 4 {
			t.Fatalf("window holds %d credits, budget is 4", inWindow)
		}
		clk.advance(5 * time.Second)
	}
}

func TestAcquireMultiCreditBatch(t *testing.T) {
	clk := newFakeClock()
	rl := newTestLimiter(10, time.Minute, clk)
	ctx := context.Background()

	if err := rl.Acquire(ctx, 8); err != nil {
		t.Fatalf("acquire 8: %v", err)
	}
	if err := rl.Acquire(ctx, 4); err != nil {
		t.Fatalf("acquire 4: %v", err)
	}
	if clk.sleeps == 0 {
		t.Fatal("8+4 over a budget of 10 must wait")
	}
}

func TestAcquireCreditsOverBudgetFails(t *testing.T) {
	clk := newFakeClock()
	rl := newTestLimiter(3, time.Minute, clk)

	if err := rl.Acquire(context.Background(), 4); err == nil {
		t.Fatal("expected error for credits > budget")
	}
}

func TestAcquireHonorsCancellation(t *testing.T) {
	clk := newFakeClock()
	rl := NewRateLimiter(1, time.Minute, WithRateLimiterClock(clk.now,
		func(ctx context.Context, d time.Duration) error { return ctx.Err() }))

	ctx, cancel := context.WithCancel(context.Background())
	if err := rl.Acquire(ctx, 1); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	cancel()
	if err := rl.Acquire(ctx, 1); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// memoryWindowStore fakes the shared Redis window.
type memoryWindowStore struct {
	mu     sync.Mutex
	stamps []time.Time
	ttl    time.Duration
}

func (s *memoryWindowStore) Load(context.Context) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Time, len(s.stamps))
	copy(out, s.stamps)
	return out, nil
}

func (s *memoryWindowStore) Save(_ context.Context, stamps []time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamps = append(s.stamps[:0], stamps...)
	s.ttl = ttl
	return nil
}

func TestAcquireMergesSharedWindow(t *testing.T) {
	clk := newFakeClock()
	store := &memoryWindowStore{}

	// Another process already consumed 2 of the 3 credits.
	store.stamps = []time.Time{clk.now().Add(-time.Second), clk.now().Add(-2 * time.Second)}

	rl := newTestLimiter(3, time.Minute, clk, WithWindowStore(store))
	ctx := context.Background()

	if err := rl.Acquire(ctx, 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if clk.sleeps != 0 {
		t.Fatal("third credit should fit without waiting")
	}

	// Window is now full; the next acquire must wait.
	if err := rl.Acquire(ctx, 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if clk.sleeps == 0 {
		t.Fatal("fourth credit should wait for rollover")
	}
	if store.ttl != 2*time.Minute {
		t.Fatalf("expected 2x window expiry on save, got %v", store.ttl)
	}
}
