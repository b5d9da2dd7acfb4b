package repository

import (
	"context"
	"database/sql"
	"fmt"

	"IndexPulse/internal/domain/models"
	pkgch "IndexPulse/pkg/clickhouse"
	applogger "IndexPulse/pkg/logger"
)

// CHRiskStore implements RiskStore backed by ClickHouse. One row per
// computation date; re-running a date collapses through the
// ReplacingMergeTree engine.
type CHRiskStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHRiskStore(ch *pkgch.Client) *CHRiskStore {
	return &CHRiskStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHRiskStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHRiskStore) UpsertMetrics(ctx context.Context, m models.RiskMetrics) error {
	const q = `
        INSERT INTO indexpulse.risk_metrics
            (date, sharpe_ratio, sortino_ratio, calmar_ratio, max_drawdown,
             current_drawdown, volatility, beta, alpha, correlation,
             information_ratio, var_95, var_99)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, q,
		m.Date, m.SharpeRatio, m.SortinoRatio, m.CalmarRatio, m.MaxDrawdown,
		m.CurrentDrawdown, m.Volatility, m.Beta, m.Alpha, m.Correlation,
		m.InformationRatio, m.VaR95, m.VaR99,
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse upsert_metrics error", applogger.Error(err))
		}
		return fmt.Errorf("upsert risk metrics: %w", err)
	}
	return nil
}

func (s *CHRiskStore) GetLatest(ctx context.Context) (models.RiskMetrics, error) {
	const q = `
        SELECT date, sharpe_ratio, sortino_ratio, calmar_ratio, max_drawdown,
               current_drawdown, volatility, beta, alpha, correlation,
               information_ratio, var_95, var_99
        FROM indexpulse.risk_metrics FINAL
        ORDER BY date DESC
        LIMIT 1
    `
	var m models.RiskMetrics
	err := s.db.QueryRowContext(ctx, q).Scan(
		&m.Date, &m.SharpeRatio, &m.SortinoRatio, &m.CalmarRatio, &m.MaxDrawdown,
		&m.CurrentDrawdown, &m.Volatility, &m.Beta, &m.Alpha, &m.Correlation,
		&m.InformationRatio, &m.VaR95, &m.VaR99,
	)
	if err == sql.ErrNoRows {
		return models.RiskMetrics{}, fmt.Errorf("no risk metrics yet: %w", err)
	}
	if err != nil {
		return models.RiskMetrics{}, fmt.Errorf("get latest metrics: %w", err)
	}
	m.Date = m.Date.UTC()
	return m, nil
}
