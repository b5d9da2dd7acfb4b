package index

import (
	"math"
	"testing"
	"time"

	"IndexPulse/internal/domain/models"
)

func dates(n int) []time.Time {
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = base.AddDate(0, 0, i)
	}
	return out
}

func defaultStrategy() models.StrategyConfig {
	return models.StrategyConfig{DailyDropThreshold: -0.05}
}

func TestComputeSeriesStartsAtExactly100(t *testing.T) {
	e := NewEngine(defaultStrategy(), nil)
	matrix := models.PriceMatrix{
		Dates: dates(4),
		Closes: map[string][]float64{
			"AAPL": {100, 102, 104, 103},
			"MSFT": {200, 198, 202, 210},
		},
	}

	values, _, err := e.Compute(matrix)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if values[0].Value != 100.0 {
		t.Fatalf("series must start at exactly 100.0, got %v", values[0].Value)
	}
	if len(values) != 4 {
		t.Fatalf("expected 4 values, got %d", len(values))
	}
}

func TestComputeWeightsSumToOnePerDate(t *testing.T) {
	e := NewEngine(defaultStrategy(), nil)
	matrix := models.PriceMatrix{
		Dates: dates(5),
		Closes: map[string][]float64{
			"AAPL": {100, 90, 95, 100, 105},  // -10% on day 2, excluded
			"MSFT": {200, 202, 204, 206, 208},
			"GOOG": {50, 51, 52, 53, 54},
		},
	}

	_, allocs, err := e.Compute(matrix)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	byDate := make(map[time.Time]float64)
	for _, a := range allocs {
		byDate[a.Date] = byDate[a.Date] + a.Weight
	}
	for d, sum := range byDate {
		if math.Abs(sum-1.0) > 1e-6 {
			t.Fatalf("weights on %s sum to %v", d.Format("2006-01-02"), sum)
		}
	}
}

func TestComputeExcludesDroppedAssetAndReadmits(t *testing.T) {
	e := NewEngine(defaultStrategy(), nil)
	matrix := models.PriceMatrix{
		Dates: dates(3),
		Closes: map[string][]float64{
			"AAPL": {100, 80, 88},   // -20% excluded day 2, +10% back day 3
			"MSFT": {100, 101, 102},
		},
	}

	_, allocs, err := e.Compute(matrix)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	byDate := map[string][]models.Allocation{}
	for _, a := range allocs {
		key := a.Date.Format("2006-01-02")
		byDate[key] = append(byDate[key], a)
	}

	day2 := byDate["2025-01-07"]
	if len(day2) != 1 || day2[0].Symbol != "MSFT" || day2[0].Weight != 1.0 {
		t.Fatalf("expected only MSFT at weight 1.0 on drop day, got %v", day2)
	}
	day3 := byDate["2025-01-08"]
	if len(day3) != 2 {
		t.Fatalf("recovered asset must re-enter, got %v", day3)
	}
	for _, a := range day3 {
		if a.Weight != 0.5 {
			t.Fatalf("expected equal weights 0.5, got %v", a.Weight)
		}
	}
}

func TestComputeFallsBackToAllWhenEveryAssetDrops(t *testing.T) {
	e := NewEngine(defaultStrategy(), nil)
	matrix := models.PriceMatrix{
		Dates: dates(2),
		Closes: map[string][]float64{
			"AAPL": {100, 80},
			"MSFT": {100, 85},
		},
	}

	values, allocs, err := e.Compute(matrix)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	var day2 []models.Allocation
	for _, a := range allocs {
		if a.Date.Equal(matrix.Dates[1]) {
			day2 = append(day2, a)
		}
	}
	if len(day2) != 2 {
		t.Fatalf("fallback must include all assets, got %v", day2)
	}

	// average of -20% and -15%
	want := 100.0 * (1 - 0.175)
	if math.Abs(values[1].Value-want) > 1e-9 {
		t.Fatalf("expected index %v, got %v", want, values[1].Value)
	}
}

func TestComputeSkipsNaNCells(t *testing.T) {
	e := NewEngine(defaultStrategy(), nil)
	matrix := models.PriceMatrix{
		Dates: dates(3),
		Closes: map[string][]float64{
			"AAPL": {100, math.NaN(), 104},
			"MSFT": {200, 202, 204},
		},
	}

	values, allocs, err := e.Compute(matrix)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for _, v := range values {
		if math.IsNaN(v.Value) {
			t.Fatalf("NaN leaked into index series at %v", v.Date)
		}
	}
	for _, a := range allocs {
		if a.Symbol == "AAPL" && a.Date.Equal(matrix.Dates[1]) {
			t.Fatal("asset with missing close must not be allocated")
		}
	}
}

func TestComputeIdempotent(t *testing.T) {
	e := NewEngine(defaultStrategy(), nil)
	matrix := models.PriceMatrix{
		Dates: dates(4),
		Closes: map[string][]float64{
			"AAPL": {100, 103, 99, 105},
			"MSFT": {200, 195, 205, 207},
		},
	}

	first, firstAllocs, err := e.Compute(matrix)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	second, secondAllocs, err := e.Compute(matrix)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}

	if len(first) != len(second) || len(firstAllocs) != len(secondAllocs) {
		t.Fatal("recompute changed result shape")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("value drift at %d: %v vs %v", i, first[i], second[i])
		}
	}
	for i := range firstAllocs {
		if firstAllocs[i] != secondAllocs[i] {
			t.Fatalf("allocation drift at %d", i)
		}
	}
}

func TestComputeClampsOutlierReturns(t *testing.T) {
	cfg := defaultStrategy()
	cfg.MaxDailyReturn = 0.5
	e := NewEngine(cfg, nil)
	matrix := models.PriceMatrix{
		Dates: dates(2),
		Closes: map[string][]float64{
			"AAPL": {100, 300}, // +200% raw, clamped to +50%
		},
	}

	values, _, err := e.Compute(matrix)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if math.Abs(values[1].Value-150.0) > 1e-9 {
		t.Fatalf("expected clamped index 150.0, got %v", values[1].Value)
	}
}

func TestComputeEmptyMatrixErrors(t *testing.T) {
	e := NewEngine(defaultStrategy(), nil)
	if _, _, err := e.Compute(models.PriceMatrix{}); err == nil {
		t.Fatal("expected error on empty matrix")
	}
}
