package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"IndexPulse/internal/domain/models"
	"IndexPulse/internal/index"
	"IndexPulse/internal/performance"
)

type fakeProvider struct {
	fetchFn func(symbols []string) (map[string]models.PriceSeries, error)
}

func (f *fakeProvider) FetchHistoricalPrices(_ context.Context, symbols []string, _, _ time.Time, _ string) (map[string]models.PriceSeries, error) {
	return f.fetchFn(symbols)
}

func (f *fakeProvider) GetQuotes(context.Context, []string) (map[string]models.Quote, error) {
	return nil, nil
}

func (f *fakeProvider) GetExchangeRate(context.Context, string, string) (models.ExchangeRate, error) {
	return models.ExchangeRate{}, nil
}

func (f *fakeProvider) ValidateSymbols(context.Context, []string) (map[string]bool, error) {
	return nil, nil
}

func (f *fakeProvider) HealthCheck(context.Context) models.HealthStatus {
	return models.HealthStatus{Status: models.HealthHealthy}
}

type memPriceStore struct {
	points  map[string][]models.PricePoint
	deleted time.Time
}

func newMemPriceStore() *memPriceStore {
	return &memPriceStore{points: make(map[string][]models.PricePoint)}
}

func (s *memPriceStore) UpsertPrices(_ context.Context, points []models.PricePoint) error {
	for _, p := range points {
		replaced := false
		for i, old := range s.points[p.Symbol] {
			if old.Date.Equal(p.Date) {
				s.points[p.Symbol][i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			s.points[p.Symbol] = append(s.points[p.Symbol], p)
		}
	}
	return nil
}

func (s *memPriceStore) GetSeries(_ context.Context, symbol string, _, _ time.Time) (models.PriceSeries, error) {
	return models.PriceSeries{Symbol: symbol, Points: s.points[symbol]}, nil
}

func (s *memPriceStore) GetCloseMatrix(_ context.Context, symbols []string, _, _ time.Time) (models.PriceMatrix, error) {
	dateSet := map[time.Time]struct{}{}
	for _, sym := range symbols {
		for _, p := range s.points[sym] {
			dateSet[p.Date] = struct{}{}
		}
	}
	matrix := models.PriceMatrix{Closes: make(map[string][]float64)}
	for d := range dateSet {
		matrix.Dates = append(matrix.Dates, d)
	}
	for i := 1; i < len(matrix.Dates); i++ {
		for j := i; j > 0 && matrix.Dates[j].Before(matrix.Dates[j-1]); j-- {
			matrix.Dates[j], matrix.Dates[j-1] = matrix.Dates[j-1], matrix.Dates[j]
		}
	}
	for _, sym := range symbols {
		col := make([]float64, len(matrix.Dates))
		for i := range col {
			col[i] = math.NaN()
		}
		for _, p := range s.points[sym] {
			for i, d := range matrix.Dates {
				if d.Equal(p.Date) {
					col[i] = p.Close
				}
			}
		}
		matrix.Closes[sym] = col
	}
	return matrix, nil
}

func (s *memPriceStore) DeleteOlderThan(_ context.Context, cutoff time.Time) error {
	s.deleted = cutoff
	return nil
}

type memIndexStore struct {
	values []models.IndexValue
	allocs []models.Allocation
	writes int
	pruned int
}

func (s *memIndexStore) ReplaceSeries(_ context.Context, values []models.IndexValue, allocs []models.Allocation) error {
	s.values = values
	s.allocs = allocs
	s.writes++
	return nil
}

func (s *memIndexStore) GetSeries(context.Context, time.Time, time.Time) ([]models.IndexValue, error) {
	return s.values, nil
}

func (s *memIndexStore) GetAllocations(context.Context, time.Time) ([]models.Allocation, error) {
	return s.allocs, nil
}

func (s *memIndexStore) PruneVersions(context.Context, int) error {
	s.pruned++
	return nil
}

type memRiskStore struct {
	latest models.RiskMetrics
	writes int
}

func (s *memRiskStore) UpsertMetrics(_ context.Context, m models.RiskMetrics) error {
	s.latest = m
	s.writes++
	return nil
}

func (s *memRiskStore) GetLatest(context.Context) (models.RiskMetrics, error) {
	return s.latest, nil
}

type memPublisher struct {
	indexBatches int
	reports      []models.RefreshReport
}

func (p *memPublisher) PublishIndexValues(_ context.Context, values []models.IndexValue) error {
	p.indexBatches++
	return nil
}

func (p *memPublisher) PublishRefreshReport(_ context.Context, r models.RefreshReport) error {
	p.reports = append(p.reports, r)
	return nil
}

func (p *memPublisher) Close() error { return nil }

func testSeries(symbol string, closes ...float64) models.PriceSeries {
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	s := models.PriceSeries{Symbol: symbol}
	for i, c := range closes {
		s.Points = append(s.Points, models.PricePoint{
			Symbol: symbol, Date: base.AddDate(0, 0, i), Close: c,
		})
	}
	return s
}

func newTestRefresh(provider *fakeProvider) (*Refresh, *memPriceStore, *memIndexStore, *memRiskStore, *memPublisher) {
	prices := newMemPriceStore()
	indexes := &memIndexStore{}
	risks := &memRiskStore{}
	pub := &memPublisher{}
	engine := index.NewEngine(models.StrategyConfig{DailyDropThreshold: -0.05}, nil)
	calc := performance.NewCalculator(0.02, nil)
	r := NewRefresh(provider, prices, indexes, risks, pub, engine, calc, nil, nil, RefreshConfig{
		Symbols:   []string{"AAPL", "MSFT"},
		Benchmark: "SPY",
		Lookback:  30 * 24 * time.Hour,
		Timeout:   time.Minute,
		Retention: 400 * 24 * time.Hour,
	})
	return r, prices, indexes, risks, pub
}

func fullFetch(symbols []string) (map[string]models.PriceSeries, error) {
	return map[string]models.PriceSeries{
		"AAPL": testSeries("AAPL", 100, 102, 101, 105),
		"MSFT": testSeries("MSFT", 200, 199, 205, 206),
		"SPY":  testSeries("SPY", 400, 401, 402, 404),
	}, nil
}

func TestRefreshHappyPath(t *testing.T) {
	r, _, indexes, risks, pub := newTestRefresh(&fakeProvider{fetchFn: fullFetch})

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Succeeded) != 3 || len(report.Failed) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Points != 12 {
		t.Fatalf("expected 12 persisted points, got %d", report.Points)
	}
	if indexes.writes != 1 || len(indexes.values) != 4 {
		t.Fatalf("index not replaced: writes=%d values=%d", indexes.writes, len(indexes.values))
	}
	if indexes.values[0].Value != 100.0 {
		t.Fatalf("index must start at 100.0, got %v", indexes.values[0].Value)
	}
	if risks.writes != 1 {
		t.Fatal("risk metrics not persisted")
	}
	if pub.indexBatches != 1 || len(pub.reports) != 1 {
		t.Fatalf("publishing incomplete: batches=%d reports=%d", pub.indexBatches, len(pub.reports))
	}
	// benchmark is fetched but must not enter the index matrix
	for _, a := range indexes.allocs {
		if a.Symbol == "SPY" {
			t.Fatal("benchmark leaked into allocations")
		}
	}
}

func TestRefreshPartialSuccess(t *testing.T) {
	provider := &fakeProvider{fetchFn: func([]string) (map[string]models.PriceSeries, error) {
		return map[string]models.PriceSeries{
			"AAPL": testSeries("AAPL", 100, 102, 101),
			"SPY":  testSeries("SPY", 400, 401, 403),
		}, nil
	}}
	r, _, indexes, _, _ := newTestRefresh(provider)

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("partial data must not fail the cycle: %v", err)
	}
	if len(report.Failed) != 1 || report.Failed[0] != "MSFT" {
		t.Fatalf("expected MSFT failed, got %v", report.Failed)
	}
	if len(indexes.values) == 0 {
		t.Fatal("index must still be computed from surviving symbols")
	}
}

func TestRefreshFatalWhenNoData(t *testing.T) {
	provider := &fakeProvider{fetchFn: func([]string) (map[string]models.PriceSeries, error) {
		return nil, errors.New("provider down")
	}}
	r, _, indexes, _, _ := newTestRefresh(provider)

	if _, err := r.Run(context.Background()); err == nil {
		t.Fatal("expected fatal error when no data at all")
	}
	if indexes.writes != 0 {
		t.Fatal("index must not be touched on fatal refresh")
	}
}

func TestRefreshIdempotent(t *testing.T) {
	r, _, indexes, _, _ := newTestRefresh(&fakeProvider{fetchFn: fullFetch})

	ctx := context.Background()
	if _, err := r.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := append([]models.IndexValue{}, indexes.values...)

	if _, err := r.Run(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(first) != len(indexes.values) {
		t.Fatal("recompute changed series length")
	}
	for i := range first {
		if first[i] != indexes.values[i] {
			t.Fatalf("series drift at %d: %v vs %v", i, first[i], indexes.values[i])
		}
	}
}

func TestCleanupAppliesRetention(t *testing.T) {
	r, prices, indexes, _, _ := newTestRefresh(&fakeProvider{fetchFn: fullFetch})

	if err := r.Cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if prices.deleted.IsZero() {
		t.Fatal("retention cutoff not applied")
	}
	if indexes.pruned != 1 {
		t.Fatalf("expected one version prune, got %d", indexes.pruned)
	}
}
