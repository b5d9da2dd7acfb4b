package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"IndexPulse/internal/domain/models"
	pkgch "IndexPulse/pkg/clickhouse"
	applogger "IndexPulse/pkg/logger"
)

// CHPriceStore implements PriceStore backed by ClickHouse. Duplicate
// (symbol, date) rows collapse through the ReplacingMergeTree engine;
// reads use FINAL so callers never observe the pre-merge duplicates.
type CHPriceStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHPriceStore(ch *pkgch.Client) *CHPriceStore {
	return &CHPriceStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHPriceStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHPriceStore) UpsertPrices(ctx context.Context, points []models.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin prices batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO indexpulse.prices (symbol, date, close, open, high, low, volume)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare prices insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, p.Symbol, p.Date, p.Close, p.Open, p.High, p.Low, p.Volume); err != nil {
			_ = tx.Rollback()
			if s.l != nil {
				s.l.Error("clickhouse upsert_prices exec error",
					applogger.String("symbol", p.Symbol),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("insert price: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit prices batch: %w", err)
	}

	if s.l != nil {
		s.l.Info("clickhouse upsert_prices ok",
			applogger.Int("rows", len(points)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHPriceStore) GetSeries(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	const q = `
        SELECT symbol, date, close, open, high, low, volume
        FROM indexpulse.prices FINAL
        WHERE symbol = ? AND date >= ? AND date <= ?
        ORDER BY date ASC
    `
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_series query error",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return models.PriceSeries{}, fmt.Errorf("get series: %w", err)
	}
	defer rows.Close()

	series := models.PriceSeries{Symbol: symbol}
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.Symbol, &p.Date, &p.Close, &p.Open, &p.High, &p.Low, &p.Volume); err != nil {
			return models.PriceSeries{}, fmt.Errorf("scan price: %w", err)
		}
		series.Points = append(series.Points, p)
	}
	if err := rows.Err(); err != nil {
		return models.PriceSeries{}, fmt.Errorf("rows: %w", err)
	}
	return series, nil
}

// GetCloseMatrix builds the date-indexed close matrix for the given
// symbols. Dates come from the union of all observations; a symbol
// without an observation on a date gets a NaN cell.
func (s *CHPriceStore) GetCloseMatrix(ctx context.Context, symbols []string, from, to time.Time) (models.PriceMatrix, error) {
	if len(symbols) == 0 {
		return models.PriceMatrix{}, nil
	}
	start := time.Now()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(symbols)), ",")
	q := fmt.Sprintf(`
        SELECT symbol, date, close
        FROM indexpulse.prices FINAL
        WHERE symbol IN (%s) AND date >= ? AND date <= ?
        ORDER BY date ASC, symbol ASC
    `, placeholders)

	args := make([]interface{}, 0, len(symbols)+2)
	for _, sym := range symbols {
		args = append(args, sym)
	}
	args = append(args, from, to)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse close_matrix query error", applogger.Error(err))
		}
		return models.PriceMatrix{}, fmt.Errorf("get close matrix: %w", err)
	}
	defer rows.Close()

	type obs struct {
		symbol string
		date   time.Time
		close  float64
	}
	var all []obs
	dateSet := make(map[time.Time]struct{})
	for rows.Next() {
		var o obs
		if err := rows.Scan(&o.symbol, &o.date, &o.close); err != nil {
			return models.PriceMatrix{}, fmt.Errorf("scan close: %w", err)
		}
		o.date = o.date.UTC()
		all = append(all, o)
		dateSet[o.date] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return models.PriceMatrix{}, fmt.Errorf("rows: %w", err)
	}

	matrix := models.PriceMatrix{
		Dates:  make([]time.Time, 0, len(dateSet)),
		Closes: make(map[string][]float64, len(symbols)),
	}
	for d := range dateSet {
		matrix.Dates = append(matrix.Dates, d)
	}
	sort.Slice(matrix.Dates, func(i, j int) bool { return matrix.Dates[i].Before(matrix.Dates[j]) })

	idx := make(map[time.Time]int, len(matrix.Dates))
	for i, d := range matrix.Dates {
		idx[d] = i
	}
	for _, sym := range symbols {
		col := make([]float64, len(matrix.Dates))
		for i := range col {
			col[i] = math.NaN()
		}
		matrix.Closes[sym] = col
	}
	for _, o := range all {
		if col, ok := matrix.Closes[o.symbol]; ok {
			col[idx[o.date]] = o.close
		}
	}

	if s.l != nil {
		s.l.Info("clickhouse close_matrix ok",
			applogger.Int("symbols", len(symbols)),
			applogger.Int("dates", len(matrix.Dates)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return matrix, nil
}

func (s *CHPriceStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	const q = `ALTER TABLE indexpulse.prices DELETE WHERE date < ?`
	if _, err := s.db.ExecContext(ctx, q, cutoff); err != nil {
		return fmt.Errorf("delete old prices: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse price retention applied",
			applogger.String("cutoff", cutoff.Format("2006-01-02")))
	}
	return nil
}
