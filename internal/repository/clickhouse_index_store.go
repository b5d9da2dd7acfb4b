package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"IndexPulse/internal/domain/models"
	pkgch "IndexPulse/pkg/clickhouse"
	applogger "IndexPulse/pkg/logger"
)

// CHIndexStore implements IndexStore backed by ClickHouse. Replace
// semantics come from versioned writes: a new series is inserted under a
// fresh version and only becomes visible once its marker row lands in
// index_versions. Readers always select the max committed version, so a
// crashed half-written replace is never observable.
type CHIndexStore struct {
	db  *sql.DB
	l   *applogger.Logger
	now func() time.Time
}

func NewCHIndexStore(ch *pkgch.Client) *CHIndexStore {
	return &CHIndexStore{db: ch.DB(), now: time.Now}
}

// SetLogger injects a structured logger.
func (s *CHIndexStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHIndexStore) ReplaceSeries(ctx context.Context, values []models.IndexValue, allocs []models.Allocation) error {
	if len(values) == 0 {
		return fmt.Errorf("refusing to replace index with empty series")
	}
	start := s.now()
	version := uint64(start.UnixNano())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO indexpulse.index_values (version, date, value) VALUES (?, ?, ?)
    `)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare index insert: %w", err)
	}
	for _, v := range values {
		if _, err := stmt.ExecContext(ctx, version, v.Date, v.Value); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert index value: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index values: %w", err)
	}

	tx, err = s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin allocations batch: %w", err)
	}
	stmt, err = tx.PrepareContext(ctx, `
        INSERT INTO indexpulse.allocations (version, date, symbol, weight) VALUES (?, ?, ?, ?)
    `)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare allocations insert: %w", err)
	}
	for _, a := range allocs {
		if _, err := stmt.ExecContext(ctx, version, a.Date, a.Symbol, a.Weight); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert allocation: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit allocations: %w", err)
	}

	// Commit marker: the version is invisible until this row exists.
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO indexpulse.index_versions (version) VALUES (?)`, version); err != nil {
		return fmt.Errorf("commit index version: %w", err)
	}

	if s.l != nil {
		s.l.Info("index series replaced",
			applogger.Int("values", len(values)),
			applogger.Int("allocations", len(allocs)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHIndexStore) GetSeries(ctx context.Context, from, to time.Time) ([]models.IndexValue, error) {
	const q = `
        SELECT date, value
        FROM indexpulse.index_values
        WHERE version = (SELECT max(version) FROM indexpulse.index_versions)
          AND date >= ? AND date <= ?
        ORDER BY date ASC
    `
	rows, err := s.db.QueryContext(ctx, q, from, to)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse index get_series query error", applogger.Error(err))
		}
		return nil, fmt.Errorf("get index series: %w", err)
	}
	defer rows.Close()

	var out []models.IndexValue
	for rows.Next() {
		var v models.IndexValue
		if err := rows.Scan(&v.Date, &v.Value); err != nil {
			return nil, fmt.Errorf("scan index value: %w", err)
		}
		v.Date = v.Date.UTC()
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHIndexStore) GetAllocations(ctx context.Context, date time.Time) ([]models.Allocation, error) {
	const q = `
        SELECT date, symbol, weight
        FROM indexpulse.allocations
        WHERE version = (SELECT max(version) FROM indexpulse.index_versions)
          AND date = ?
        ORDER BY symbol ASC
    `
	rows, err := s.db.QueryContext(ctx, q, date)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse allocations query error", applogger.Error(err))
		}
		return nil, fmt.Errorf("get allocations: %w", err)
	}
	defer rows.Close()

	var out []models.Allocation
	for rows.Next() {
		var a models.Allocation
		if err := rows.Scan(&a.Date, &a.Symbol, &a.Weight); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		a.Date = a.Date.UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// PruneVersions drops everything older than the newest keep committed
// versions. Called from the retention job, not the hot path.
func (s *CHIndexStore) PruneVersions(ctx context.Context, keep int) error {
	if keep < 1 {
		keep = 1
	}
	const pick = `
        SELECT version FROM indexpulse.index_versions
        ORDER BY version DESC LIMIT 1 OFFSET ?
    `
	var cutoff uint64
	err := s.db.QueryRowContext(ctx, pick, keep-1).Scan(&cutoff)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("pick prune cutoff: %w", err)
	}

	for _, q := range []string{
		`ALTER TABLE indexpulse.index_values DELETE WHERE version < ?`,
		`ALTER TABLE indexpulse.allocations DELETE WHERE version < ?`,
		`ALTER TABLE indexpulse.index_versions DELETE WHERE version < ?`,
	} {
		if _, err := s.db.ExecContext(ctx, q, cutoff); err != nil {
			return fmt.Errorf("prune versions: %w", err)
		}
	}
	return nil
}
