//go:build wireinject
// +build wireinject

package di

import (
	"IndexPulse/pkg/config"
	"IndexPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideCacheService,
		ProvideKafkaProducer,

		// Resilience stack
		ProvideRateLimiter,
		ProvideCircuitBreaker,
		ProvideRetryPolicy,

		// Market data
		ProvideMarketDataAPI,
		ProvideProvider,
		ProvideQuoteStream,

		// Repositories
		ProvidePriceStore,
		ProvideIndexStore,
		ProvideRiskStore,
		ProvidePublisher,

		// Computation
		ProvideIndexEngine,
		ProvideCalculator,

		// Use cases and jobs
		ProvideRefresh,
		ProvideJobQueue,
		ProvideQuery,

		// HTTP and application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
