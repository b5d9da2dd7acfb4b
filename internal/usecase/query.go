package usecase

import (
	"context"
	"strings"
	"time"

	"IndexPulse/internal/domain/models"
	drepo "IndexPulse/internal/domain/repository"
	"IndexPulse/internal/marketdata"
)

// Query serves the read side of the HTTP API: index series, allocations,
// risk metrics, live quotes and health.
type Query struct {
	provider marketdata.Provider
	indexes  drepo.IndexStore
	risks    drepo.RiskStore
}

func NewQuery(provider marketdata.Provider, indexes drepo.IndexStore, risks drepo.RiskStore) *Query {
	return &Query{provider: provider, indexes: indexes, risks: risks}
}

// IndexSeries returns the committed index series in [from, to]. Zero
// bounds widen to the full stored range.
func (q *Query) IndexSeries(ctx context.Context, from, to time.Time) ([]models.IndexValue, error) {
	if from.IsZero() {
		from = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if to.IsZero() {
		to = time.Now().UTC().AddDate(0, 0, 1)
	}
	return q.indexes.GetSeries(ctx, from, to)
}

// Allocations returns the weights for one date; zero date resolves to
// the latest date present in the committed series.
func (q *Query) Allocations(ctx context.Context, date time.Time) ([]models.Allocation, error) {
	if date.IsZero() {
		series, err := q.IndexSeries(ctx, time.Time{}, time.Time{})
		if err != nil {
			return nil, err
		}
		if len(series) == 0 {
			return nil, nil
		}
		date = series[len(series)-1].Date
	}
	return q.indexes.GetAllocations(ctx, date)
}

// LatestMetrics returns the most recent risk metrics row.
func (q *Query) LatestMetrics(ctx context.Context) (models.RiskMetrics, error) {
	return q.risks.GetLatest(ctx)
}

// Quotes resolves live quotes for a comma-separated symbol list.
func (q *Query) Quotes(ctx context.Context, symbolsCSV string) (map[string]models.Quote, error) {
	var symbols []string
	for _, s := range strings.Split(symbolsCSV, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			symbols = append(symbols, s)
		}
	}
	return q.provider.GetQuotes(ctx, symbols)
}

// Health reports system health, dominated by the provider circuit state.
func (q *Query) Health(ctx context.Context) models.HealthStatus {
	return q.provider.HealthCheck(ctx)
}
