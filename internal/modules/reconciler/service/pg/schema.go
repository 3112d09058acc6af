package pg

import (
	"context"
	"fmt"

	"trade_ledger/pkg/db"
)

// Table shapes the reconciler relies on. The partial unique index is the
// authoritative duplicate-open guard; application-level checks alone are not
// trusted.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS trades (
		id BIGSERIAL PRIMARY KEY,
		ticker TEXT NOT NULL,
		direction TEXT NOT NULL DEFAULT '',
		entry_date TIMESTAMPTZ,
		entry_price NUMERIC,
		exit_price NUMERIC,
		end_date TIMESTAMPTZ,
		stop_loss NUMERIC,
		leverage NUMERIC,
		entry_summary TEXT,
		orphan_close BOOLEAN NOT NULL DEFAULT FALSE,
		source TEXT,
		source_filename TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		is_duplicate BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_open_trade_on_fields
		ON trades (ticker, direction, entry_date, entry_price)
		WHERE end_date IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_trades_open_lookup
		ON trades (ticker, direction, entry_date DESC, id DESC)
		WHERE end_date IS NULL`,
	`CREATE TABLE IF NOT EXISTS imported_files (
		id BIGSERIAL PRIMARY KEY,
		filename TEXT NOT NULL,
		file_hash TEXT NOT NULL UNIQUE,
		imported_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS execution_fingerprints (
		id BIGSERIAL PRIMARY KEY,
		row_hash TEXT NOT NULL UNIQUE,
		source TEXT,
		source_filename TEXT,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the tables and indexes if missing. Statements run one
// by one; pgx's extended protocol rejects multi-statement strings.
func EnsureSchema(ctx context.Context, conn db.Transaction) error {
	for _, stmt := range schemaStatements {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pg.EnsureSchema: %w", err)
		}
	}
	return nil
}
