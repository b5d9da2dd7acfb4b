package repository

// Schema returns the idempotent DDL for all IndexPulse tables. Price and
// risk rows dedup through ReplacingMergeTree on their natural key; index
// rows are versioned and a version only becomes visible once its marker
// row lands in index_versions.
func Schema() []string {
	return []string{
		`CREATE DATABASE IF NOT EXISTS indexpulse`,

		`CREATE TABLE IF NOT EXISTS indexpulse.prices (
            symbol      LowCardinality(String),
            date        Date,
            close       Float64,
            open        Float64,
            high        Float64,
            low         Float64,
            volume      Float64,
            inserted_at DateTime DEFAULT now()
        ) ENGINE = ReplacingMergeTree(inserted_at)
        ORDER BY (symbol, date)`,

		`CREATE TABLE IF NOT EXISTS indexpulse.index_values (
            version UInt64,
            date    Date,
            value   Float64
        ) ENGINE = MergeTree
        ORDER BY (version, date)`,

		`CREATE TABLE IF NOT EXISTS indexpulse.allocations (
            version UInt64,
            date    Date,
            symbol  LowCardinality(String),
            weight  Float64
        ) ENGINE = MergeTree
        ORDER BY (version, date, symbol)`,

		`CREATE TABLE IF NOT EXISTS indexpulse.index_versions (
            version      UInt64,
            committed_at DateTime DEFAULT now()
        ) ENGINE = MergeTree
        ORDER BY version`,

		`CREATE TABLE IF NOT EXISTS indexpulse.risk_metrics (
            date              Date,
            sharpe_ratio      Float64,
            sortino_ratio     Float64,
            calmar_ratio      Float64,
            max_drawdown      Float64,
            current_drawdown  Float64,
            volatility        Float64,
            beta              Float64,
            alpha             Float64,
            correlation       Float64,
            information_ratio Float64,
            var_95            Float64,
            var_99            Float64,
            inserted_at       DateTime DEFAULT now()
        ) ENGINE = ReplacingMergeTree(inserted_at)
        ORDER BY date`,
	}
}
