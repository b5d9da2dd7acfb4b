package marketdata

import (
	"context"
	"errors"
	"strings"
	"time"

	"IndexPulse/internal/domain/models"
	drepo "IndexPulse/internal/domain/repository"
	"IndexPulse/internal/resilience"
	"IndexPulse/pkg/cache"
	applogger "IndexPulse/pkg/logger"
)

const (
	cacheNamespace = "provider"

	// staleTTL keeps a long-lived second copy of every cached payload so a
	// provider outage can be served from stale data instead of failing.
	staleTTL = 7 * 24 * time.Hour

	// moveWarnThreshold flags single-day moves as data-quality warnings.
	moveWarnThreshold = 0.5
)

// ResilientConfig tunes the provider orchestration.
type ResilientConfig struct {
	BatchLimit int
	PriceTTL   time.Duration
	QuoteTTL   time.Duration
	FXTTL      time.Duration
}

func (c *ResilientConfig) applyDefaults() {
	if c.BatchLimit <= 0 {
		c.BatchLimit = 8
	}
	if c.PriceTTL <= 0 {
		c.PriceTTL = 6 * time.Hour
	}
	if c.QuoteTTL <= 0 {
		c.QuoteTTL = 30 * time.Second
	}
	if c.FXTTL <= 0 {
		c.FXTTL = 5 * time.Minute
	}
}

// Resilient wraps a raw provider API with the rate limiter, circuit
// breaker, retry policy and read-through cache, composed explicitly in
// that order. Failures in the wrapper never corrupt downstream state:
// symbols that cannot be served are simply absent from results.
type Resilient struct {
	api     API
	limiter *resilience.RateLimiter
	breaker *resilience.CircuitBreaker
	retry   *resilience.RetryPolicy
	cache   cache.Service
	metrics drepo.Metrics
	logger  *applogger.Logger
	cfg     ResilientConfig
}

// NewResilient composes the acquisition layer around api.
func NewResilient(
	api API,
	limiter *resilience.RateLimiter,
	breaker *resilience.CircuitBreaker,
	retry *resilience.RetryPolicy,
	cacheSvc cache.Service,
	metrics drepo.Metrics,
	logger *applogger.Logger,
	cfg ResilientConfig,
) *Resilient {
	cfg.applyDefaults()
	if cacheSvc == nil {
		cacheSvc = cache.NewNoopCache()
	}
	return &Resilient{
		api:     api,
		limiter: limiter,
		breaker: breaker,
		retry:   retry,
		cache:   cacheSvc,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

var _ Provider = (*Resilient)(nil)

// FetchHistoricalPrices partitions symbols into cache hits and misses,
// fetches the misses in provider-sized batches through the guard stack,
// and falls back to stale cache per batch on failure.
func (r *Resilient) FetchHistoricalPrices(ctx context.Context, symbols []string, start, end time.Time, interval string) (map[string]models.PriceSeries, error) {
	if interval == "" {
		interval = IntervalDay
	}
	result := make(map[string]models.PriceSeries, len(symbols))

	var misses []string
	for _, sym := range symbols {
		key := r.priceKey(sym, start, end, interval)
		var series models.PriceSeries
		if err := r.cache.Get(ctx, key, &series); err == nil {
			r.recordCache("prices", true)
			result[sym] = series
			continue
		}
		r.recordCache("prices", false)
		misses = append(misses, sym)
	}

	var lastErr error
	for _, batch := range chunk(misses, r.cfg.BatchLimit) {
		if err := r.limiter.Acquire(ctx, len(batch)); err != nil {
			return result, err
		}

		var fetched map[string]models.PriceSeries
		err := r.breaker.Call(func() error {
			return r.retry.Do(ctx, "prices", func() error {
				var apiErr error
				fetched, apiErr = r.api.TimeSeries(ctx, batch, start, end, interval)
				return apiErr
			})
		})
		if err != nil {
			lastErr = err
			r.recordCall("prices", callOutcome(err))
			r.serveStalePrices(ctx, batch, start, end, interval, result)
			continue
		}
		r.recordCall("prices", "ok")

		for sym, series := range fetched {
			clean, ok := r.sanitize(series)
			if !ok {
				continue
			}
			result[sym] = clean
			key := r.priceKey(sym, start, end, interval)
			if err := r.cache.Set(ctx, key, clean, r.cfg.PriceTTL); err != nil && r.logger != nil {
				r.logger.Warn("price cache write failed", applogger.Error(err))
			}
			_ = r.cache.Set(ctx, staleVariant(key), clean, staleTTL)
		}
	}

	if len(result) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return result, nil
}

// GetQuotes follows the same guard stack with a much shorter TTL.
func (r *Resilient) GetQuotes(ctx context.Context, symbols []string) (map[string]models.Quote, error) {
	result := make(map[string]models.Quote, len(symbols))

	var misses []string
	for _, sym := range symbols {
		key := r.quoteKey(sym)
		var q models.Quote
		if err := r.cache.Get(ctx, key, &q); err == nil {
			r.recordCache("quotes", true)
			result[sym] = q
			continue
		}
		r.recordCache("quotes", false)
		misses = append(misses, sym)
	}

	var lastErr error
	for _, batch := range chunk(misses, r.cfg.BatchLimit) {
		if err := r.limiter.Acquire(ctx, len(batch)); err != nil {
			return result, err
		}

		var fetched map[string]models.Quote
		err := r.breaker.Call(func() error {
			return r.retry.Do(ctx, "quotes", func() error {
				var apiErr error
				fetched, apiErr = r.api.Quotes(ctx, batch)
				return apiErr
			})
		})
		if err != nil {
			lastErr = err
			r.recordCall("quotes", callOutcome(err))
			for _, sym := range batch {
				var q models.Quote
				if cerr := r.cache.Get(ctx, staleVariant(r.quoteKey(sym)), &q); cerr == nil {
					result[sym] = q
				}
			}
			continue
		}
		r.recordCall("quotes", "ok")

		for sym, q := range fetched {
			result[sym] = q
			key := r.quoteKey(sym)
			_ = r.cache.Set(ctx, key, q, r.cfg.QuoteTTL)
			_ = r.cache.Set(ctx, staleVariant(key), q, staleTTL)
			if r.metrics != nil {
				r.metrics.RecordQuote(sym, q.Price)
			}
		}
	}

	if len(result) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return result, nil
}

// GetExchangeRate returns the conversion rate for a currency pair.
// Same-currency requests short-circuit to 1.0 without a network call.
func (r *Resilient) GetExchangeRate(ctx context.Context, from, to string) (models.ExchangeRate, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return models.ExchangeRate{From: from, To: to, Rate: 1.0, Timestamp: time.Now().UTC()}, nil
	}

	key := cache.BuildKey(cacheNamespace, "fx", map[string]string{"from": from, "to": to})
	var cached models.ExchangeRate
	if err := r.cache.Get(ctx, key, &cached); err == nil {
		r.recordCache("fx", true)
		return cached, nil
	}
	r.recordCache("fx", false)

	if err := r.limiter.Acquire(ctx, 1); err != nil {
		return models.ExchangeRate{}, err
	}

	var rate models.ExchangeRate
	err := r.breaker.Call(func() error {
		return r.retry.Do(ctx, "fx", func() error {
			var apiErr error
			rate, apiErr = r.api.ExchangeRate(ctx, from, to)
			return apiErr
		})
	})
	if err != nil {
		r.recordCall("fx", callOutcome(err))
		if cerr := r.cache.Get(ctx, staleVariant(key), &cached); cerr == nil {
			return cached, nil
		}
		return models.ExchangeRate{}, err
	}
	r.recordCall("fx", "ok")

	_ = r.cache.Set(ctx, key, rate, r.cfg.FXTTL)
	_ = r.cache.Set(ctx, staleVariant(key), rate, staleTTL)
	return rate, nil
}

// ValidateSymbols reports which symbols the provider recognizes.
func (r *Resilient) ValidateSymbols(ctx context.Context, symbols []string) (map[string]bool, error) {
	quotes, err := r.GetQuotes(ctx, symbols)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		_, ok := quotes[sym]
		out[sym] = ok
	}
	return out, nil
}

// HealthCheck reports provider health from the circuit state.
func (r *Resilient) HealthCheck(ctx context.Context) models.HealthStatus {
	status := models.HealthHealthy
	switch r.breaker.State() {
	case resilience.StateOpen:
		status = models.HealthUnhealthy
	case resilience.StateHalfOpen:
		status = models.HealthDegraded
	}

	components := map[string]string{
		"circuit": r.breaker.State().String(),
		"cache":   "available",
	}
	if _, err := r.cache.Exists(ctx, "provider:health"); err != nil {
		components["cache"] = "unavailable"
		if status == models.HealthHealthy {
			status = models.HealthDegraded
		}
	}

	return models.HealthStatus{
		Status:     status,
		Components: components,
		Timestamp:  time.Now().Unix(),
	}
}

// sanitize drops rows failing sanity checks and flags suspicious moves.
// Returns ok=false when nothing survives.
func (r *Resilient) sanitize(series models.PriceSeries) (models.PriceSeries, bool) {
	clean := models.PriceSeries{Symbol: series.Symbol}
	clean.Points = make([]models.PricePoint, 0, len(series.Points))

	var prevClose float64
	for _, p := range series.Points {
		if p.Close <= 0 {
			continue
		}
		if prevClose > 0 {
			move := (p.Close - prevClose) / prevClose
			if move > moveWarnThreshold || move < -moveWarnThreshold {
				// Data-quality warning, not a rejection.
				if r.logger != nil {
					r.logger.Warn("suspicious single-day move",
						applogger.String("symbol", series.Symbol),
						applogger.String("date", p.Date.Format("2006-01-02")),
						applogger.Float64("move", move),
					)
				}
			}
		}
		prevClose = p.Close
		clean.Points = append(clean.Points, p)
	}

	if len(clean.Points) == 0 {
		if r.logger != nil {
			verr := &DataValidationError{Symbol: series.Symbol, Reason: "no valid close prices"}
			r.logger.Warn("series dropped", applogger.Error(verr))
		}
		return models.PriceSeries{}, false
	}
	return clean, true
}

func (r *Resilient) serveStalePrices(ctx context.Context, batch []string, start, end time.Time, interval string, result map[string]models.PriceSeries) {
	for _, sym := range batch {
		key := staleVariant(r.priceKey(sym, start, end, interval))
		var series models.PriceSeries
		if err := r.cache.Get(ctx, key, &series); err == nil {
			if r.logger != nil {
				r.logger.Warn("serving stale prices", applogger.String("symbol", sym))
			}
			result[sym] = series
		}
	}
}

func (r *Resilient) priceKey(symbol string, start, end time.Time, interval string) string {
	params := map[string]string{
		"symbol":   symbol,
		"start":    start.Format("2006-01-02"),
		"interval": interval,
	}
	if !end.IsZero() {
		params["end"] = end.Format("2006-01-02")
	}
	return cache.BuildKey(cacheNamespace, "prices", params)
}

func (r *Resilient) quoteKey(symbol string) string {
	return cache.BuildKey(cacheNamespace, "quotes", map[string]string{"symbol": symbol})
}

func (r *Resilient) recordCall(op, outcome string) {
	if r.metrics != nil {
		r.metrics.RecordProviderCall(op, outcome)
	}
}

func (r *Resilient) recordCache(op string, hit bool) {
	if r.metrics != nil {
		r.metrics.RecordCacheLookup(op, hit)
	}
}

func staleVariant(key string) string {
	return "stale:" + key
}

func callOutcome(err error) string {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return "circuit_open"
	}
	return resilience.KindOf(err).String()
}

func chunk(items []string, size int) [][]string {
	if len(items) == 0 {
		return nil
	}
	out := make([][]string, 0, (len(items)+size-1)/size)
	for size < len(items) {
		items, out = items[size:], append(out, items[:size:size])
	}
	return append(out, items)
}
