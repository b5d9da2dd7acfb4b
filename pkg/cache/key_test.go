package cache

import "testing"

func TestBuildKeySortsParams(t *testing.T) {
	got := BuildKey("provider", "prices", map[string]string{
		"symbol":   "AAPL",
		"start":    "2024-01-01",
		"end":      "2024-01-31",
		"interval": "1day",
	})
	want := "provider:prices:end:2024-01-31:interval:1day:start:2024-01-01:symbol:AAPL"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestBuildKeyNoParams(t *testing.T) {
	if got := BuildKey("provider", "health", nil); got != "provider:health" {
		t.Fatalf("got %q", got)
	}
}

func TestBuildKeyDeterministic(t *testing.T) {
	p := map[string]string{"b": "2", "a": "1", "c": "3"}
	first := BuildKey("ns", "op", p)
	for i := 0; i < 20; i++ {
		if got := BuildKey("ns", "op", p); got != first {
			t.Fatalf("non-deterministic key: %q vs %q", got, first)
		}
	}
}
