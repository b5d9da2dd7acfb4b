package index

import (
	"fmt"
	"math"
	"sort"
	"time"

	"IndexPulse/internal/domain/models"
	applogger "IndexPulse/pkg/logger"
)

// Engine computes the equal-weight drop-filtered index series from a
// close-price matrix. Weights are recomputed independently per date; an
// asset excluded on one date re-enters as soon as its return recovers.
type Engine struct {
	cfg    models.StrategyConfig
	logger *applogger.Logger
}

// NewEngine creates an index engine with the given strategy parameters.
func NewEngine(cfg models.StrategyConfig, l *applogger.Logger) *Engine {
	return &Engine{cfg: cfg, logger: l}
}

// Compute derives the base-100 index series and per-date allocations.
// The matrix must exclude the benchmark column. Missing observations are
// NaN cells; an asset with a NaN close on a date is simply not considered
// for that date.
func (e *Engine) Compute(matrix models.PriceMatrix) ([]models.IndexValue, []models.Allocation, error) {
	if len(matrix.Dates) == 0 {
		return nil, nil, fmt.Errorf("empty price matrix")
	}
	symbols := matrix.Symbols()
	if len(symbols) == 0 {
		return nil, nil, fmt.Errorf("price matrix has no symbols")
	}
	sort.Strings(symbols)

	returns := e.dailyReturns(matrix, symbols)

	values := make([]models.IndexValue, 0, len(matrix.Dates))
	allocs := make([]models.Allocation, 0, len(matrix.Dates)*len(symbols))

	cumulative := 1.0
	for i, date := range matrix.Dates {
		included := e.includedSet(returns, symbols, i)
		if len(included) == 0 {
			// No asset has a valid observation on this date at all.
			// Carry the previous level forward with no allocation row.
			if e.logger != nil {
				e.logger.Warn("no valid assets for date",
					applogger.String("date", date.Format("2006-01-02")))
			}
			values = append(values, models.IndexValue{Date: date, Value: cumulative})
			continue
		}

		sum := 0.0
		for _, sym := range included {
			sum += returns[sym][i]
		}
		dayReturn := sum / float64(len(included))
		cumulative *= 1.0 + dayReturn

		values = append(values, models.IndexValue{Date: date, Value: cumulative})

		weight := 1.0 / float64(len(included))
		for _, sym := range included {
			allocs = append(allocs, models.Allocation{Date: date, Symbol: sym, Weight: weight})
		}
	}

	normalize(values)
	return values, allocs, nil
}

// dailyReturns computes per-asset day-over-day returns. The first row is
// 0 for every asset with a valid first close; invalid cells yield NaN.
func (e *Engine) dailyReturns(matrix models.PriceMatrix, symbols []string) map[string][]float64 {
	n := len(matrix.Dates)
	out := make(map[string][]float64, len(symbols))

	for _, sym := range symbols {
		closes := matrix.Closes[sym]
		rets := make([]float64, n)
		for i := 0; i < n; i++ {
			if i >= len(closes) || !e.validClose(closes[i]) {
				rets[i] = math.NaN()
				continue
			}
			if i == 0 {
				rets[i] = 0
				continue
			}
			if !e.validClose(closes[i-1]) {
				rets[i] = math.NaN()
				continue
			}
			r := (closes[i] - closes[i-1]) / closes[i-1]
			rets[i] = e.clampReturn(sym, matrix.Dates[i], r)
		}
		out[sym] = rets
	}
	return out
}

func (e *Engine) validClose(c float64) bool {
	if math.IsNaN(c) || c <= 0 {
		return false
	}
	if e.cfg.MinPriceThreshold > 0 && c < e.cfg.MinPriceThreshold {
		return false
	}
	return true
}

// clampReturn bounds a single-day return to the configured band. Values
// outside the band are treated as data errors, not real moves.
func (e *Engine) clampReturn(symbol string, date time.Time, r float64) float64 {
	clamped := r
	if e.cfg.MaxDailyReturn > 0 && clamped > e.cfg.MaxDailyReturn {
		clamped = e.cfg.MaxDailyReturn
	}
	if e.cfg.MinDailyReturn < 0 && clamped < e.cfg.MinDailyReturn {
		clamped = e.cfg.MinDailyReturn
	}
	if clamped != r && e.logger != nil {
		e.logger.Warn("daily return clamped",
			applogger.String("symbol", symbol),
			applogger.String("date", date.Format("2006-01-02")),
			applogger.Float64("raw", r),
		)
	}
	return clamped
}

// includedSet returns the assets whose return on row i clears the drop
// threshold. When every valid asset dropped below it, all valid assets
// are included so the date never ends up with zero allocation.
func (e *Engine) includedSet(returns map[string][]float64, symbols []string, i int) []string {
	var included, valid []string
	for _, sym := range symbols {
		r := returns[sym][i]
		if math.IsNaN(r) {
			continue
		}
		valid = append(valid, sym)
		if r >= e.cfg.DailyDropThreshold {
			included = append(included, sym)
		}
	}
	if len(included) == 0 {
		return valid
	}
	return included
}

// normalize rebases the series so the first value is exactly 100.0.
func normalize(values []models.IndexValue) {
	if len(values) == 0 {
		return
	}
	first := values[0].Value
	if first == 0 {
		return
	}
	for i := range values {
		values[i].Value = values[i].Value / first * 100.0
	}
	values[0].Value = 100.0
}
