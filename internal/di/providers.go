package di

import (
	"context"
	"fmt"
	"time"

	"IndexPulse/internal/domain/models"
	"IndexPulse/internal/domain/repository"
	"IndexPulse/internal/handler/api"
	"IndexPulse/internal/index"
	"IndexPulse/internal/marketdata"
	"IndexPulse/internal/performance"
	internalrepo "IndexPulse/internal/repository"
	"IndexPulse/internal/resilience"
	"IndexPulse/internal/usecase"
	"IndexPulse/pkg/cache"
	pkgch "IndexPulse/pkg/clickhouse"
	"IndexPulse/pkg/config"
	xhttp "IndexPulse/pkg/http"
	pkgkafka "IndexPulse/pkg/kafka"
	applogger "IndexPulse/pkg/logger"
	"IndexPulse/pkg/metrics"
	"IndexPulse/pkg/queue"
	"IndexPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client and applies schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema()); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideRedisCache connects to Redis. Returns nil when Redis is disabled
// or unreachable; the cache layer degrades rather than blocking startup.
func ProvideRedisCache(cfg *config.Config, l *applogger.Logger) *cache.RedisCache {
	if !cfg.Redis.Enabled {
		return nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		l.Warn("redis unavailable, cache degraded", applogger.Error(err))
		return nil
	}
	return rc
}

// ProvideCacheService picks the cache implementation: layered over Redis
// when available, in-memory when Redis is disabled, noop pass-through
// when Redis was wanted but is unreachable.
func ProvideCacheService(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	if rc != nil {
		return cache.NewLayeredCache(rc)
	}
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache()
	}
	return cache.NewNoopCache()
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRateLimiter creates the shared-quota rate limiter. The credit
// window lives in the cache so several workers split one budget.
func ProvideRateLimiter(cfg *config.Config, svc cache.Service, l *applogger.Logger) *resilience.RateLimiter {
	return resilience.NewRateLimiter(
		cfg.Provider.RateLimit.Budget,
		cfg.Provider.RateLimit.Window,
		resilience.WithWindowStore(internalrepo.NewCacheWindowStore(svc, "provider")),
		resilience.WithRateLimiterLogger(l),
	)
}

// ProvideCircuitBreaker creates the provider circuit breaker.
func ProvideCircuitBreaker(cfg *config.Config, m repository.Metrics, l *applogger.Logger) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(
		cfg.Provider.Breaker.FailureThreshold,
		cfg.Provider.Breaker.RecoveryTimeout,
		resilience.WithBreakerLogger(l),
		resilience.WithStateChangeHook(m.RecordCircuitState),
	)
}

// ProvideRetryPolicy creates the bounded retry policy.
func ProvideRetryPolicy(cfg *config.Config, l *applogger.Logger) *resilience.RetryPolicy {
	return resilience.NewRetryPolicy(
		cfg.Provider.Retry.MaxRetries,
		cfg.Provider.Retry.BaseDelay,
		resilience.WithRetryLogger(l),
	)
}

// ProvideMarketDataAPI creates the raw TwelveData REST client.
func ProvideMarketDataAPI(cfg *config.Config, l *applogger.Logger) marketdata.API {
	return marketdata.NewTwelveDataClient(
		cfg.Provider.BaseURL,
		cfg.Provider.APIKey,
		cfg.Provider.Timeout,
		l,
	)
}

// ProvideProvider composes the guarded market-data provider.
func ProvideProvider(
	apiClient marketdata.API,
	limiter *resilience.RateLimiter,
	breaker *resilience.CircuitBreaker,
	retry *resilience.RetryPolicy,
	svc cache.Service,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) marketdata.Provider {
	return marketdata.NewResilient(apiClient, limiter, breaker, retry, svc, m, l, marketdata.ResilientConfig{
		BatchLimit: cfg.Provider.BatchLimit,
		PriceTTL:   cfg.Provider.CacheTTL.Prices,
		QuoteTTL:   cfg.Provider.CacheTTL.Quotes,
		FXTTL:      cfg.Provider.CacheTTL.FX,
	})
}

// ProvideQuoteStream creates the live quote stream; nil when disabled.
func ProvideQuoteStream(cfg *config.Config, l *applogger.Logger) repository.QuoteStream {
	if !cfg.Provider.StreamEnabled {
		return nil
	}
	return marketdata.NewStream(
		cfg.Provider.APIKey,
		cfg.Provider.WebSocketURL,
		cfg.Provider.Symbols,
		cfg.Provider.ReconnectDelay,
		cfg.Provider.PingInterval,
		l,
	)
}

// ProvidePriceStore creates the ClickHouse price repository.
func ProvidePriceStore(ch *pkgch.Client, l *applogger.Logger) repository.PriceStore {
	s := internalrepo.NewCHPriceStore(ch)
	s.SetLogger(l)
	return s
}

// ProvideIndexStore creates the ClickHouse index repository.
func ProvideIndexStore(ch *pkgch.Client, l *applogger.Logger) repository.IndexStore {
	s := internalrepo.NewCHIndexStore(ch)
	s.SetLogger(l)
	return s
}

// ProvideRiskStore creates the ClickHouse risk-metrics repository.
func ProvideRiskStore(ch *pkgch.Client, l *applogger.Logger) repository.RiskStore {
	s := internalrepo.NewCHRiskStore(ch)
	s.SetLogger(l)
	return s
}

// ProvideKafkaProducer creates a Kafka producer; nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher creates the index publisher; noop when Kafka is off.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config, l *applogger.Logger) repository.Publisher {
	if producer == nil {
		return internalrepo.NoopPublisher{}
	}
	p := internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic, "")
	p.SetLogger(l)
	return p
}

// ProvideIndexEngine creates the index computation engine.
func ProvideIndexEngine(cfg *config.Config, l *applogger.Logger) *index.Engine {
	drop, maxRet, minRet, outlierStd, minPrice := cfg.StrategyParams()
	return index.NewEngine(models.StrategyConfig{
		DailyDropThreshold:  drop,
		MaxDailyReturn:      maxRet,
		MinDailyReturn:      minRet,
		OutlierStdThreshold: outlierStd,
		RebalanceFrequency:  cfg.Strategy.RebalanceFrequency,
		MinPriceThreshold:   minPrice,
	}, l)
}

// ProvideCalculator creates the performance calculator.
func ProvideCalculator(cfg *config.Config, l *applogger.Logger) *performance.Calculator {
	return performance.NewCalculator(cfg.Performance.RiskFreeRate, l)
}

// ProvideRefresh wires the refresh cycle.
func ProvideRefresh(
	provider marketdata.Provider,
	prices repository.PriceStore,
	indexes repository.IndexStore,
	risks repository.RiskStore,
	publisher repository.Publisher,
	engine *index.Engine,
	calc *performance.Calculator,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.Refresh {
	return usecase.NewRefresh(provider, prices, indexes, risks, publisher, engine, calc, m, l, usecase.RefreshConfig{
		Symbols:   cfg.Provider.Symbols,
		Benchmark: cfg.Provider.Benchmark,
		Lookback:  cfg.Refresh.Lookback,
		Timeout:   cfg.Refresh.Timeout,
		Retention: cfg.Refresh.Retention,
	})
}

// ProvideJobQueue creates the Redis-backed job queue with the refresh
// job registered; nil when Redis is unavailable.
func ProvideJobQueue(cfg *config.Config, rc *cache.RedisCache, refresh *usecase.Refresh, l *applogger.Logger) *queue.RedisQueue {
	if rc == nil {
		l.Warn("redis unavailable, scheduled refreshes disabled")
		return nil
	}
	workers := cfg.Refresh.Workers
	if workers <= 0 {
		workers = 1
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    workers,
		QueueSize:  64,
		RetryLimit: 3,
		RetryDelay: time.Minute,
	}, rc.Client(), queue.ModeProducerConsumer)
	q.RegisterJob(usecase.NewRefreshJob(refresh, l))
	return q
}

// ProvideQuery wires the read-side usecase.
func ProvideQuery(provider marketdata.Provider, indexes repository.IndexStore, risks repository.RiskStore) *usecase.Query {
	return usecase.NewQuery(provider, indexes, risks)
}

// ProvideHTTPHandler creates the Echo route handler.
func ProvideHTTPHandler(l *applogger.Logger, query *usecase.Query, jobQueue *queue.RedisQueue) xhttp.Handler {
	var jobs queue.QueueService
	if jobQueue != nil {
		jobs = jobQueue
	}
	return api.NewIndexHandler(l, query, jobs)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	jobQueue *queue.RedisQueue,
	stream repository.QuoteStream,
	m repository.Metrics,
	publisher repository.Publisher,
	chClient *pkgch.Client,
) *server.App {
	return server.New(cfg, l, handler, jobQueue, stream, m, publisher, chClient)
}
