package performance

import (
	"math"
	"testing"
	"time"
)

// fixedSeries has its peak at 120 and trough at 90.
var fixedSeries = []float64{100, 110, 120, 100, 90, 95, 100, 110}

func TestMaxDrawdownFixedSeries(t *testing.T) {
	dd, peak, trough := MaxDrawdown(fixedSeries)
	if math.Abs(dd-(-25.0)) > 1e-9 {
		t.Fatalf("expected -25%% drawdown, got %v", dd)
	}
	if fixedSeries[peak] != 120 || fixedSeries[trough] != 90 {
		t.Fatalf("expected peak 120 trough 90, got %v and %v", fixedSeries[peak], fixedSeries[trough])
	}
}

func TestSharpeSortinoFiniteOnFixedSeries(t *testing.T) {
	c := NewCalculator(0.02, nil)
	r := Returns(fixedSeries)

	sharpe := c.Sharpe(r)
	sortino := c.Sortino(r)
	for name, v := range map[string]float64{"sharpe": sharpe, "sortino": sortino} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("%s must be finite, got %v", name, v)
		}
	}
}

func TestSortinoSentinelWithoutDownside(t *testing.T) {
	c := NewCalculator(0, nil)
	r := []float64{0.01, 0.02, 0.015}
	if got := c.Sortino(r); got != 10.0 {
		t.Fatalf("expected sentinel 10.0, got %v", got)
	}
}

func TestBetaIdentityAndDouble(t *testing.T) {
	c := NewCalculator(0.02, nil)
	market := []float64{0.01, -0.02, 0.015, 0.005, -0.01, 0.02}

	if got := c.Beta(market, market); math.Abs(got-1.0) > 0.01 {
		t.Fatalf("identical series must have beta 1.0, got %v", got)
	}

	doubled := make([]float64, len(market))
	for i, r := range market {
		doubled[i] = 2 * r
	}
	if got := c.Beta(doubled, market); math.Abs(got-2.0) > 0.01 {
		t.Fatalf("doubled series must have beta 2.0, got %v", got)
	}
}

func TestBetaDefaultsOnDegenerateMarket(t *testing.T) {
	c := NewCalculator(0.02, nil)
	if got := c.Beta([]float64{0.01, 0.02}, []float64{0.01, 0.01}); got != 1.0 {
		t.Fatalf("zero market variance must default beta to 1.0, got %v", got)
	}
	if got := c.Beta([]float64{0.01}, []float64{0.01}); got != 1.0 {
		t.Fatalf("insufficient data must default beta to 1.0, got %v", got)
	}
}

func TestCorrelationCoercesNaN(t *testing.T) {
	if got := Correlation([]float64{0.01, 0.01, 0.01}, []float64{0.01, -0.02, 0.03}); got != 0 {
		t.Fatalf("constant series correlation must coerce to 0, got %v", got)
	}
	got := Correlation(
		[]float64{0.01, -0.02, 0.015, 0.005},
		[]float64{0.01, -0.02, 0.015, 0.005},
	)
	if math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("identical series correlation must be 1.0, got %v", got)
	}
}

func TestDegenerateInputsNeverNaN(t *testing.T) {
	c := NewCalculator(0.02, nil)
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	cases := map[string][]float64{
		"empty":  {},
		"single": {100},
		"flat":   {100, 100, 100},
	}
	for name, values := range cases {
		m := c.Compute(date, values, values)
		fields := map[string]float64{
			"sharpe":      m.SharpeRatio,
			"sortino":     m.SortinoRatio,
			"calmar":      m.CalmarRatio,
			"max_dd":      m.MaxDrawdown,
			"current_dd":  m.CurrentDrawdown,
			"volatility":  m.Volatility,
			"beta":        m.Beta,
			"alpha":       m.Alpha,
			"correlation": m.Correlation,
			"ir":          m.InformationRatio,
			"var95":       m.VaR95,
			"var99":       m.VaR99,
		}
		for field, v := range fields {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("%s/%s must be finite, got %v", name, field, v)
			}
		}
	}
}

func TestVaRPicksLossPercentile(t *testing.T) {
	returns := []float64{-0.05, -0.04, -0.03, -0.02, -0.01, 0, 0.01, 0.02, 0.03, 0.04}
	v95 := VaR(returns, 0.95)
	v99 := VaR(returns, 0.99)
	if v95 > -0.04 || v99 > v95 {
		t.Fatalf("unexpected VaR ordering: v95=%v v99=%v", v95, v99)
	}
}

func TestReturnsConversion(t *testing.T) {
	got := Returns([]float64{100, 110, 99})
	if len(got) != 2 {
		t.Fatalf("expected 2 returns, got %d", len(got))
	}
	if math.Abs(got[0]-0.10) > 1e-12 || math.Abs(got[1]-(-0.10)) > 1e-12 {
		t.Fatalf("unexpected returns %v", got)
	}
	if Returns(nil) != nil || Returns([]float64{5}) != nil {
		t.Fatal("short input must produce no returns")
	}
}

func TestInformationRatioAlignsByTruncation(t *testing.T) {
	c := NewCalculator(0.02, nil)
	portfolio := []float64{0.01, 0.02, 0.03, 0.04}
	benchmark := []float64{0.01, 0.02}

	if got := c.InformationRatio(portfolio, benchmark); got != 0 {
		t.Fatalf("aligned identical prefix has zero active return, got %v", got)
	}
}
