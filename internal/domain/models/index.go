package models

import "time"

// IndexValue is one point of the computed index series. The series is
// base-100 normalized: the first computed date is exactly 100.0.
type IndexValue struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Allocation is the weight of one asset in the index on one date.
// Weights over included assets sum to 1.0 per date.
type Allocation struct {
	Date   time.Time `json:"date"`
	Symbol string    `json:"symbol"`
	Weight float64   `json:"weight"`
}

// RiskMetrics holds the risk/return statistics computed for one date.
type RiskMetrics struct {
	Date             time.Time `json:"date"`
	SharpeRatio      float64   `json:"sharpe_ratio"`
	SortinoRatio     float64   `json:"sortino_ratio"`
	CalmarRatio      float64   `json:"calmar_ratio"`
	MaxDrawdown      float64   `json:"max_drawdown"`
	CurrentDrawdown  float64   `json:"current_drawdown"`
	Volatility       float64   `json:"volatility"`
	Beta             float64   `json:"beta"`
	Alpha            float64   `json:"alpha"`
	Correlation      float64   `json:"correlation"`
	InformationRatio float64   `json:"information_ratio"`
	VaR95            float64   `json:"var_95"`
	VaR99            float64   `json:"var_99"`
}

// StrategyConfig is the externally supplied parameter bag for the index
// engine. Read-only to the engine.
type StrategyConfig struct {
	DailyDropThreshold  float64 `yaml:"daily_drop_threshold"`
	MaxDailyReturn      float64 `yaml:"max_daily_return"`
	MinDailyReturn      float64 `yaml:"min_daily_return"`
	OutlierStdThreshold float64 `yaml:"outlier_std_threshold"`
	RebalanceFrequency  string  `yaml:"rebalance_frequency"`
	MinPriceThreshold   float64 `yaml:"min_price_threshold"`
}

// RefreshReport describes the outcome of one refresh cycle. A refresh is
// partial-success: failed symbols are listed, not fatal, unless no symbol
// produced data at all.
type RefreshReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Succeeded  []string  `json:"succeeded"`
	Failed     []string  `json:"failed"`
	Points     int       `json:"points"`
	IndexDates int       `json:"index_dates"`
}

// Health states reported by HealthCheck.
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// HealthStatus is the provider/system health snapshot.
type HealthStatus struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
	Timestamp  int64             `json:"timestamp"`
}
