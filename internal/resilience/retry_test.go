package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type taggedErr struct {
	kind  ErrorKind
	after time.Duration
}

func (e *taggedErr) Error() string { return "tagged: " + e.kind.String() }

func (e *taggedErr) Kind() ErrorKind { return e.kind }

func (e *taggedErr) RetryAfter() (time.Duration, bool) {
	if e.after > 0 {
		return e.after, true
	}
	return 0, false
}

func TestRetryServerErrorBacksOffDoubling(t *testing.T) {
	var slept []time.Duration
	p := NewRetryPolicy(3, 100*time.Millisecond, WithRetrySleeper(
		func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}))

	calls := 0
	err := p.Do(context.Background(), "fetch", func() error {
		calls++
		if calls < 3 {
			return &taggedErr{kind: KindServer}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(slept) != 2 || slept[0] != 100*time.Millisecond || slept[1] != 200*time.Millisecond {
		t.Fatalf("unexpected backoff %v", slept)
	}
}

func TestRetryClientErrorPropagatesImmediately(t *testing.T) {
	p := NewRetryPolicy(5, time.Millisecond, WithRetrySleeper(
		func(context.Context, time.Duration) error { return nil }))

	calls := 0
	wantErr := &taggedErr{kind: KindClient}
	err := p.Do(context.Background(), "fetch", func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected client error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("client error must not be retried, got %d calls", calls)
	}
}

func TestRetryUnclassifiedErrorNotRetried(t *testing.T) {
	p := NewRetryPolicy(5, time.Millisecond, WithRetrySleeper(
		func(context.Context, time.Duration) error { return nil }))

	calls := 0
	err := p.Do(context.Background(), "fetch", func() error {
		calls++
		return fmt.Errorf("plain failure")
	})
	if err == nil || calls != 1 {
		t.Fatalf("unclassified error must propagate once, err=%v calls=%d", err, calls)
	}
}

func TestRetryRateLimitedHonorsRetryAfter(t *testing.T) {
	var slept []time.Duration
	p := NewRetryPolicy(2, 100*time.Millisecond, WithRetrySleeper(
		func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}))

	calls := 0
	err := p.Do(context.Background(), "quotes", func() error {
		calls++
		if calls == 1 {
			return &taggedErr{kind: KindRateLimited, after: 7 * time.Second}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if len(slept) != 1 || slept[0] != 7*time.Second {
		t.Fatalf("expected retry-after hint honored, slept %v", slept)
	}
}

func TestRetryExhaustionReturnsLastError(t *testing.T) {
	p := NewRetryPolicy(2, time.Millisecond, WithRetrySleeper(
		func(context.Context, time.Duration) error { return nil }))

	calls := 0
	err := p.Do(context.Background(), "fetch", func() error {
		calls++
		return &taggedErr{kind: KindServer}
	})
	if err == nil {
		t.Fatal("expected error after exhaustion")
	}
	if calls != 3 { // first attempt + 2 retries
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if KindOf(err) != KindServer {
		t.Fatalf("expected last transient error, got %v", err)
	}
}

func TestRetryStopsOnDeadline(t *testing.T) {
	p := NewRetryPolicy(100, time.Millisecond, WithRetrySleeper(sleepCtx))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Do(ctx, "fetch", func() error {
		return &taggedErr{kind: KindServer}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
