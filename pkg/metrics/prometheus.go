package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	providerCalls   *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	circuitState    *prometheus.GaugeVec
	refreshDuration prometheus.Histogram
	indexLevel      prometheus.Gauge
	lastQuote       *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		providerCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexpulse_provider_calls_total",
				Help: "Provider calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		cacheLookups: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexpulse_cache_lookups_total",
				Help: "Cache lookups by operation and result",
			},
			[]string{"operation", "result"},
		),
		circuitState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "indexpulse_circuit_state",
				Help: "Circuit breaker state (1 = active state)",
			},
			[]string{"state"},
		),
		refreshDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "indexpulse_refresh_duration_seconds",
				Help:    "Duration of refresh cycles in seconds",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
			},
		),
		indexLevel: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexpulse_index_level",
				Help: "Latest computed index level",
			},
		),
		lastQuote: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "indexpulse_last_quote",
				Help: "Last quoted price for a symbol",
			},
			[]string{"symbol"},
		),
	}
}

// RecordProviderCall records the outcome of one guarded provider call.
func (r *Recorder) RecordProviderCall(operation, outcome string) {
	r.providerCalls.WithLabelValues(operation, outcome).Inc()
}

// RecordCacheLookup records a cache hit or miss.
func (r *Recorder) RecordCacheLookup(operation string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(operation, result).Inc()
}

// RecordCircuitState marks the given state active and all others inactive.
func (r *Recorder) RecordCircuitState(state string) {
	for _, s := range []string{"closed", "open", "half_open"} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		r.circuitState.WithLabelValues(s).Set(v)
	}
}

// RecordRefreshDuration records one refresh cycle duration in seconds.
func (r *Recorder) RecordRefreshDuration(seconds float64) {
	r.refreshDuration.Observe(seconds)
}

// RecordIndexLevel records the latest index level.
func (r *Recorder) RecordIndexLevel(value float64) {
	r.indexLevel.Set(value)
}

// RecordQuote records the last quoted price for a symbol.
func (r *Recorder) RecordQuote(symbol string, price float64) {
	r.lastQuote.WithLabelValues(symbol).Set(price)
}
