package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestBreakerOpensAtThreshold(t *testing.T) {
	clk := newFakeClock()
	b := NewCircuitBreaker(3, time.Minute, WithBreakerClock(clk.now))

	for i := 0; i < 3; i++ {
		if err := b.Call(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %v", b.State())
	}

	// Rejected without invoking fn.
	invoked := false
	err := b.Call(func() error { invoked = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if invoked {
		t.Fatal("fn must not run while circuit is open")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	clk := newFakeClock()
	b := NewCircuitBreaker(3, time.Minute, WithBreakerClock(clk.now))

	_ = b.Call(func() error { return errBoom })
	_ = b.Call(func() error { return errBoom })
	if err := b.Call(func() error { return nil }); err != nil {
		t.Fatalf("success call: %v", err)
	}

	// Two more failures must not trip a threshold of three.
	_ = b.Call(func() error { return errBoom })
	_ = b.Call(func() error { return errBoom })
	if b.State() != StateClosed {
		t.Fatalf("expected closed, got %v", b.State())
	}
}

func TestBreakerHalfOpenProbeRecovers(t *testing.T) {
	clk := newFakeClock()
	b := NewCircuitBreaker(2, 30*time.Second, WithBreakerClock(clk.now))

	_ = b.Call(func() error { return errBoom })
	_ = b.Call(func() error { return errBoom })
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %v", b.State())
	}

	clk.advance(31 * time.Second)

	// Exactly one probe is attempted after the cooldown.
	probes := 0
	if err := b.Call(func() error { probes++; return nil }); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if probes != 1 {
		t.Fatalf("expected one probe, got %d", probes)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after probe success, got %v", b.State())
	}
}

func TestBreakerHalfOpenProbeFailureReopens(t *testing.T) {
	clk := newFakeClock()
	b := NewCircuitBreaker(2, 30*time.Second, WithBreakerClock(clk.now))

	_ = b.Call(func() error { return errBoom })
	_ = b.Call(func() error { return errBoom })
	clk.advance(31 * time.Second)

	if err := b.Call(func() error { return errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("probe: %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected reopen after probe failure, got %v", b.State())
	}

	// Cooldown restarts from the probe failure.
	clk.advance(10 * time.Second)
	if err := b.Call(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected rejection during fresh cooldown, got %v", err)
	}
}

func TestBreakerStateChangeHook(t *testing.T) {
	clk := newFakeClock()
	var transitions []string
	b := NewCircuitBreaker(1, time.Minute,
		WithBreakerClock(clk.now),
		WithStateChangeHook(func(s string) { transitions = append(transitions, s) }),
	)

	_ = b.Call(func() error { return errBoom })
	clk.advance(2 * time.Minute)
	_ = b.Call(func() error { return nil })

	want := []string{"open", "half_open", "closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transitions %v, want %v", transitions, want)
		}
	}
}
