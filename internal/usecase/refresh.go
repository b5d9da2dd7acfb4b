package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"IndexPulse/internal/domain/models"
	drepo "IndexPulse/internal/domain/repository"
	"IndexPulse/internal/index"
	"IndexPulse/internal/marketdata"
	"IndexPulse/internal/performance"
	applogger "IndexPulse/pkg/logger"
	"IndexPulse/pkg/util"
)

// RefreshConfig bounds one refresh cycle.
type RefreshConfig struct {
	Symbols   []string
	Benchmark string
	Lookback  time.Duration
	Timeout   time.Duration
	Retention time.Duration
}

// Refresh is the end-to-end cycle: fetch prices, persist, recompute the
// index and risk metrics, publish. A cycle reports partial success per
// symbol; it is fatal only when no symbol produced any data.
type Refresh struct {
	provider  marketdata.Provider
	prices    drepo.PriceStore
	indexes   drepo.IndexStore
	risks     drepo.RiskStore
	publisher drepo.Publisher
	engine    *index.Engine
	calc      *performance.Calculator
	metrics   drepo.Metrics
	logger    *applogger.Logger
	cfg       RefreshConfig
	now       func() time.Time
}

// NewRefresh wires the refresh cycle.
func NewRefresh(
	provider marketdata.Provider,
	prices drepo.PriceStore,
	indexes drepo.IndexStore,
	risks drepo.RiskStore,
	publisher drepo.Publisher,
	engine *index.Engine,
	calc *performance.Calculator,
	metrics drepo.Metrics,
	logger *applogger.Logger,
	cfg RefreshConfig,
) *Refresh {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 365 * 24 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &Refresh{
		provider:  provider,
		prices:    prices,
		indexes:   indexes,
		risks:     risks,
		publisher: publisher,
		engine:    engine,
		calc:      calc,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run executes one refresh cycle. Idempotent: re-running with unchanged
// upstream data produces an identical index series.
func (r *Refresh) Run(ctx context.Context) (models.RefreshReport, error) {
	started := r.now().UTC()
	report := models.RefreshReport{StartedAt: started}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	start, end := util.AlignDays(started.Add(-r.cfg.Lookback), started)

	fetchList := append(append([]string{}, r.cfg.Symbols...), r.cfg.Benchmark)
	fetched, err := r.provider.FetchHistoricalPrices(ctx, fetchList, start, end, marketdata.IntervalDay)
	if err != nil && len(fetched) == 0 {
		return report, fmt.Errorf("refresh: no data obtained: %w", err)
	}

	var points []models.PricePoint
	for _, sym := range fetchList {
		series, ok := fetched[sym]
		if !ok || len(series.Points) == 0 {
			report.Failed = append(report.Failed, sym)
			continue
		}
		report.Succeeded = append(report.Succeeded, sym)
		points = append(points, series.Points...)
	}
	sort.Strings(report.Failed)
	sort.Strings(report.Succeeded)
	report.Points = len(points)

	if len(points) == 0 {
		return report, fmt.Errorf("refresh: every symbol failed")
	}
	if err := r.prices.UpsertPrices(ctx, points); err != nil {
		return report, fmt.Errorf("refresh: persist prices: %w", err)
	}

	matrix, err := r.prices.GetCloseMatrix(ctx, r.cfg.Symbols, start, end)
	if err != nil {
		return report, fmt.Errorf("refresh: load matrix: %w", err)
	}

	values, allocs, err := r.engine.Compute(matrix)
	if err != nil {
		return report, fmt.Errorf("refresh: compute index: %w", err)
	}
	report.IndexDates = len(values)

	if err := r.indexes.ReplaceSeries(ctx, values, allocs); err != nil {
		return report, fmt.Errorf("refresh: replace index: %w", err)
	}

	if err := r.computeRisk(ctx, values, start, end); err != nil {
		// Risk metrics are derived data; their failure degrades, not fails,
		// the cycle.
		if r.logger != nil {
			r.logger.Warn("risk metrics skipped", applogger.Error(err))
		}
	}

	if err := r.publisher.PublishIndexValues(ctx, values); err != nil && r.logger != nil {
		r.logger.Warn("index publish failed", applogger.Error(err))
	}

	report.FinishedAt = r.now().UTC()
	if err := r.publisher.PublishRefreshReport(ctx, report); err != nil && r.logger != nil {
		r.logger.Warn("report publish failed", applogger.Error(err))
	}

	if r.metrics != nil {
		r.metrics.RecordRefreshDuration(report.FinishedAt.Sub(report.StartedAt).Seconds())
		if len(values) > 0 {
			r.metrics.RecordIndexLevel(values[len(values)-1].Value)
		}
	}
	if r.logger != nil {
		r.logger.Info("refresh complete",
			applogger.Int("succeeded", len(report.Succeeded)),
			applogger.Int("failed", len(report.Failed)),
			applogger.Int("points", report.Points),
			applogger.Int("index_dates", report.IndexDates),
		)
	}
	return report, nil
}

func (r *Refresh) computeRisk(ctx context.Context, values []models.IndexValue, start, end time.Time) error {
	if len(values) == 0 {
		return fmt.Errorf("empty index series")
	}

	indexLevels := make([]float64, len(values))
	for i, v := range values {
		indexLevels[i] = v.Value
	}

	var benchmarkLevels []float64
	if r.cfg.Benchmark != "" {
		series, err := r.prices.GetSeries(ctx, r.cfg.Benchmark, start, end)
		if err != nil {
			return fmt.Errorf("load benchmark: %w", err)
		}
		benchmarkLevels = series.Closes()
	}

	m := r.calc.Compute(values[len(values)-1].Date, indexLevels, benchmarkLevels)
	if err := r.risks.UpsertMetrics(ctx, m); err != nil {
		return fmt.Errorf("persist metrics: %w", err)
	}
	return nil
}

// keepVersions bounds how many committed index versions survive cleanup.
const keepVersions = 5

// Cleanup applies the retention policy to stored prices and old index
// versions. Price deletion is a no-op when retention is unset.
func (r *Refresh) Cleanup(ctx context.Context) error {
	if r.cfg.Retention > 0 {
		cutoff := r.now().Add(-r.cfg.Retention)
		if err := r.prices.DeleteOlderThan(ctx, cutoff); err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
	}
	if err := r.indexes.PruneVersions(ctx, keepVersions); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	return nil
}
