package repository

import (
	"context"
	"time"

	"IndexPulse/internal/domain/models"
)

// PriceStore persists validated price observations, deduplicated by
// (symbol, date), and serves immutable ordered snapshots back.
type PriceStore interface {
	UpsertPrices(ctx context.Context, points []models.PricePoint) error
	GetSeries(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error)
	GetCloseMatrix(ctx context.Context, symbols []string, from, to time.Time) (models.PriceMatrix, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) error
}

// IndexStore persists the computed index series and per-date allocations.
// ReplaceSeries must be all-or-nothing: readers see either the previous
// complete series or the new complete series, never a partial write.
type IndexStore interface {
	ReplaceSeries(ctx context.Context, values []models.IndexValue, allocs []models.Allocation) error
	GetSeries(ctx context.Context, from, to time.Time) ([]models.IndexValue, error)
	GetAllocations(ctx context.Context, date time.Time) ([]models.Allocation, error)
	PruneVersions(ctx context.Context, keep int) error
}

// RiskStore upserts the risk metrics row for a computation date.
type RiskStore interface {
	UpsertMetrics(ctx context.Context, m models.RiskMetrics) error
	GetLatest(ctx context.Context) (models.RiskMetrics, error)
}

// Publisher emits computed index updates and refresh reports for
// downstream consumers.
type Publisher interface {
	PublishIndexValues(ctx context.Context, values []models.IndexValue) error
	PublishRefreshReport(ctx context.Context, report models.RefreshReport) error
	Close() error
}

// QuoteStream is a live price feed. Read returns a quote channel and an
// error channel; both close when the stream terminates.
type QuoteStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Quote, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Metrics records operational measurements.
type Metrics interface {
	RecordProviderCall(operation, outcome string)
	RecordCacheLookup(operation string, hit bool)
	RecordCircuitState(state string)
	RecordRefreshDuration(seconds float64)
	RecordIndexLevel(value float64)
	RecordQuote(symbol string, price float64)
}
