package marketdata

import (
	"context"
	"time"

	"IndexPulse/internal/domain/models"
)

// Interval values accepted by FetchHistoricalPrices.
const (
	IntervalDay  = "1day"
	IntervalWeek = "1week"
)

// Provider is the market-data abstraction consumed by the refresh
// orchestrator. Symbols that fail entirely are absent from batch results,
// never fatal to the batch.
type Provider interface {
	FetchHistoricalPrices(ctx context.Context, symbols []string, start, end time.Time, interval string) (map[string]models.PriceSeries, error)
	GetQuotes(ctx context.Context, symbols []string) (map[string]models.Quote, error)
	GetExchangeRate(ctx context.Context, from, to string) (models.ExchangeRate, error)
	ValidateSymbols(ctx context.Context, symbols []string) (map[string]bool, error)
	HealthCheck(ctx context.Context) models.HealthStatus
}

// API is the raw, unguarded provider surface. Resilient wraps it with the
// rate limiter, circuit breaker, retry policy and cache.
type API interface {
	TimeSeries(ctx context.Context, symbols []string, start, end time.Time, interval string) (map[string]models.PriceSeries, error)
	Quotes(ctx context.Context, symbols []string) (map[string]models.Quote, error)
	ExchangeRate(ctx context.Context, from, to string) (models.ExchangeRate, error)
}
