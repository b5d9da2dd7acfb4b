package performance

import (
	"math"
	"sort"
	"time"

	"IndexPulse/internal/domain/models"
	applogger "IndexPulse/pkg/logger"
)

const (
	tradingDays = 252

	// sortinoSentinel is reported when a series has no negative excess
	// returns and the downside deviation is therefore undefined.
	sortinoSentinel = 10.0
)

// Calculator derives risk/return statistics from ordered value series.
// Every method returns a finite, non-NaN number for degenerate input;
// sentinel returns are logged, never raised.
type Calculator struct {
	riskFreeRate float64 // annual
	logger       *applogger.Logger
}

// NewCalculator creates a calculator with the given annual risk-free rate.
func NewCalculator(annualRiskFreeRate float64, l *applogger.Logger) *Calculator {
	return &Calculator{riskFreeRate: annualRiskFreeRate, logger: l}
}

// Returns converts an ordered value series to day-over-day returns.
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (values[i]-values[i-1])/values[i-1])
	}
	return out
}

// Sharpe is the annualized excess return over volatility.
func (c *Calculator) Sharpe(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sd := std(returns)
	if sd == 0 {
		return 0
	}
	dailyRF := c.riskFreeRate / tradingDays
	return (mean(returns) - dailyRF) / sd * math.Sqrt(tradingDays)
}

// Sortino is the annualized excess return over downside deviation only.
func (c *Calculator) Sortino(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	dailyRF := c.riskFreeRate / tradingDays

	var sumSq float64
	var negatives int
	for _, r := range returns {
		excess := r - dailyRF
		if excess < 0 {
			sumSq += excess * excess
			negatives++
		}
	}
	if negatives == 0 {
		if c.logger != nil {
			c.logger.Warn("sortino sentinel returned, no downside returns")
		}
		return sortinoSentinel
	}
	downside := math.Sqrt(sumSq / float64(negatives))
	if downside == 0 {
		return sortinoSentinel
	}
	return (mean(returns) - dailyRF) / downside * math.Sqrt(tradingDays)
}

// MaxDrawdown reports the deepest peak-to-trough decline of a value
// series as a percentage, with the indices of the peak and trough.
func MaxDrawdown(values []float64) (ddPct float64, peak, trough int) {
	if len(values) < 2 {
		return 0, 0, 0
	}

	runningMax := values[0]
	runningMaxIdx := 0
	worst := 0.0
	for i, v := range values {
		if v > runningMax {
			runningMax = v
			runningMaxIdx = i
		}
		if runningMax == 0 {
			continue
		}
		dd := (v - runningMax) / runningMax
		if dd < worst {
			worst = dd
			peak = runningMaxIdx
			trough = i
		}
	}
	return worst * 100, peak, trough
}

// CurrentDrawdown is the decline from the running peak to the last value,
// as a percentage.
func CurrentDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	peak := values[0]
	for _, v := range values {
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		return 0
	}
	return (values[len(values)-1] - peak) / peak * 100
}

// Calmar is the annualized return over the absolute max drawdown.
func (c *Calculator) Calmar(returns []float64, maxDrawdownPct float64) float64 {
	if len(returns) == 0 || maxDrawdownPct == 0 {
		return 0
	}
	annualized := mean(returns) * tradingDays
	return annualized / math.Abs(maxDrawdownPct/100)
}

// InformationRatio is the annualized mean/std of active returns. The two
// series are aligned by truncating to the shorter length.
func (c *Calculator) InformationRatio(portfolio, benchmark []float64) float64 {
	n := min(len(portfolio), len(benchmark))
	if n == 0 {
		return 0
	}
	active := make([]float64, n)
	for i := 0; i < n; i++ {
		active[i] = portfolio[i] - benchmark[i]
	}
	sd := std(active)
	if sd == 0 {
		return 0
	}
	return mean(active) / sd * math.Sqrt(tradingDays)
}

// Beta is cov(portfolio, market)/var(market); defaults to 1.0 when the
// market variance is 0 or the sample is too small.
func (c *Calculator) Beta(portfolio, market []float64) float64 {
	n := min(len(portfolio), len(market))
	if n < 2 {
		return 1.0
	}
	p, m := portfolio[:n], market[:n]

	mv := variance(m)
	if mv == 0 {
		if c.logger != nil {
			c.logger.Warn("beta default returned, zero market variance")
		}
		return 1.0
	}
	return covariance(p, m) / mv
}

// Alpha is Jensen's alpha on annualized returns.
func (c *Calculator) Alpha(portfolio, market []float64) float64 {
	n := min(len(portfolio), len(market))
	if n == 0 {
		return 0
	}
	beta := c.Beta(portfolio, market)
	annPortfolio := mean(portfolio[:n]) * tradingDays
	annMarket := mean(market[:n]) * tradingDays
	return annPortfolio - (c.riskFreeRate + beta*(annMarket-c.riskFreeRate))
}

// Correlation is the Pearson correlation of aligned return arrays. NaN
// results are coerced to 0.
func Correlation(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n < 2 {
		return 0
	}
	a, b = a[:n], b[:n]

	sa, sb := std(a), std(b)
	if sa == 0 || sb == 0 {
		return 0
	}
	r := covariance(a, b) / (sa * sb)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// VaR is the historical value-at-risk at the given confidence level,
// reported as the return at the loss percentile (negative in practice).
func VaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(math.Floor((1 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// Volatility is the annualized standard deviation of returns, as a
// percentage.
func Volatility(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	return std(returns) * math.Sqrt(tradingDays) * 100
}

// Compute derives the full metrics row for one date from ordered index
// and benchmark value series.
func (c *Calculator) Compute(date time.Time, indexValues, benchmarkValues []float64) models.RiskMetrics {
	rp := Returns(indexValues)
	rb := Returns(benchmarkValues)

	maxDD, _, _ := MaxDrawdown(indexValues)

	return models.RiskMetrics{
		Date:             date,
		SharpeRatio:      c.Sharpe(rp),
		SortinoRatio:     c.Sortino(rp),
		CalmarRatio:      c.Calmar(rp, maxDD),
		MaxDrawdown:      maxDD,
		CurrentDrawdown:  CurrentDrawdown(indexValues),
		Volatility:       Volatility(rp),
		Beta:             c.Beta(rp, rb),
		Alpha:            c.Alpha(rp, rb),
		Correlation:      Correlation(rp, rb),
		InformationRatio: c.InformationRatio(rp, rb),
		VaR95:            VaR(rp, 0.95),
		VaR99:            VaR(rp, 0.99),
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// std is the sample standard deviation; 0 for fewer than two points.
func std(xs []float64) float64 {
	return math.Sqrt(variance(xs))
}

func variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return sum / float64(len(xs)-1)
}

func covariance(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n < 2 {
		return 0
	}
	ma, mb := mean(a[:n]), mean(b[:n])
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += (a[i] - ma) * (b[i] - mb)
	}
	return sum / float64(n-1)
}
