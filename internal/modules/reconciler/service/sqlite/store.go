// Package sqlite is the embedded fallback trade store. SQLite has no
// skip-locked reads, so a store-wide mutex serializes the matching step:
// only one reconciliation is in flight at a time. Good enough for a single
// process and for tests, never for correctness claims under concurrent load
// across processes.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"trade_ledger/internal/models"
	"trade_ledger/internal/modules/reconciler/service"

	"github.com/bytedance/sonic"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ticker TEXT NOT NULL,
	direction TEXT NOT NULL DEFAULT '',
	entry_date DATETIME,
	entry_price TEXT,
	exit_price TEXT,
	end_date DATETIME,
	stop_loss TEXT,
	leverage TEXT,
	entry_summary TEXT,
	orphan_close BOOLEAN NOT NULL DEFAULT 0,
	source TEXT,
	source_filename TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	is_duplicate BOOLEAN NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS uniq_open_trade_on_fields
	ON trades (ticker, direction, entry_date, entry_price)
	WHERE end_date IS NULL;

CREATE TABLE IF NOT EXISTS imported_files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	filename TEXT NOT NULL,
	file_hash TEXT NOT NULL UNIQUE,
	imported_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS execution_fingerprints (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	row_hash TEXT NOT NULL UNIQUE,
	source TEXT,
	source_filename TEXT,
	applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

type Options struct {
	OpenDedupIncludesOrphans bool
}

type Store struct {
	db   *sql.DB
	opts Options

	// mu is the serialized critical section replacing row-level locking.
	mu sync.Mutex
}

func New(path string, opts Options) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite.New: %w", err)
	}
	return &Store{db: db, opts: opts}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowSummary struct {
	RawSide    string `json:"raw_side,omitempty"`
	Reason     string `json:"reason,omitempty"`
	SourceLine int    `json:"source_line,omitempty"`
}

func (s *Store) ApplyOpen(ctx context.Context, rec *models.ExecutionRecord) (outcome service.ApplyOutcome, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("sqlite.ApplyOpen: %w", err)
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		fresh, fErr := insertFingerprint(ctx, tx, rec)
		if fErr != nil {
			return fErr
		}
		if !fresh {
			outcome = service.OutcomeDuplicateRow
			return nil
		}

		if s.opts.OpenDedupIncludesOrphans {
			var n int
			qErr := tx.QueryRowContext(ctx, `
				SELECT COUNT(1) FROM trades
				WHERE ticker = ? AND direction = ? AND orphan_close
				  AND end_date = ? AND exit_price = ?`,
				rec.Instrument, string(rec.Direction), rec.Timestamp.UTC(), decimalArg(rec.Price),
			).Scan(&n)
			if qErr != nil {
				return qErr
			}
			if n > 0 {
				outcome = service.OutcomeDuplicateOpen
				return nil
			}
		}

		summary, sErr := sonic.Marshal(rowSummary{
			RawSide:    rec.RawSide,
			Reason:     rec.Reason,
			SourceLine: rec.SourceLine,
		})
		if sErr != nil {
			return sErr
		}

		resExec, iErr := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO trades
				(ticker, direction, entry_date, entry_price, stop_loss, leverage,
				 entry_summary, source, source_filename)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.Instrument,
			string(rec.Direction),
			rec.Timestamp.UTC(),
			decimalArg(rec.Price),
			decimalArg(rec.StopLoss),
			decimalArg(rec.Leverage),
			string(summary),
			rec.Source,
			rec.SourceFilename,
		)
		if iErr != nil {
			return iErr
		}
		n, aErr := resExec.RowsAffected()
		if aErr != nil {
			return aErr
		}
		if n == 0 {
			outcome = service.OutcomeDuplicateOpen
			return nil
		}
		outcome = service.OutcomeApplied
		return nil
	})
	return outcome, err
}

func (s *Store) ApplyClose(ctx context.Context, rec *models.ExecutionRecord, orphanOnMiss bool) (outcome service.ApplyOutcome, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("sqlite.ApplyClose: %w", err)
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		fresh, fErr := insertFingerprint(ctx, tx, rec)
		if fErr != nil {
			return fErr
		}
		if !fresh {
			outcome = service.OutcomeDuplicateRow
			return nil
		}

		// LIFO select; the mutex stands in for row locks here.
		var id int64
		qErr := tx.QueryRowContext(ctx, `
			SELECT id FROM trades
			WHERE ticker = ? AND direction = ? AND end_date IS NULL
			ORDER BY entry_date DESC, id DESC
			LIMIT 1`,
			rec.Instrument, string(rec.Direction),
		).Scan(&id)
		if qErr == nil {
			_, uErr := tx.ExecContext(ctx, `
				UPDATE trades SET exit_price = ?, end_date = ? WHERE id = ?`,
				decimalArg(rec.Price), rec.Timestamp.UTC(), id,
			)
			if uErr != nil {
				return uErr
			}
			outcome = service.OutcomeApplied
			return nil
		}
		if !errors.Is(qErr, sql.ErrNoRows) {
			return qErr
		}

		if !orphanOnMiss {
			outcome = service.OutcomeNoMatch
			return sql.ErrNoRows // roll back the fingerprint with the tx
		}

		summary, sErr := sonic.Marshal(rowSummary{
			RawSide:    rec.RawSide,
			Reason:     rec.Reason,
			SourceLine: rec.SourceLine,
		})
		if sErr != nil {
			return sErr
		}

		_, iErr := tx.ExecContext(ctx, `
			INSERT INTO trades
				(ticker, direction, exit_price, end_date, entry_summary,
				 orphan_close, is_duplicate, source, source_filename)
			VALUES (?, ?, ?, ?, ?, 1, 1, ?, ?)`,
			rec.Instrument,
			string(rec.Direction),
			decimalArg(rec.Price),
			rec.Timestamp.UTC(),
			string(summary),
			rec.Source,
			rec.SourceFilename,
		)
		if iErr != nil {
			return iErr
		}
		outcome = service.OutcomeOrphaned
		return nil
	})

	if outcome == service.OutcomeNoMatch && errors.Is(err, sql.ErrNoRows) {
		err = nil
	}
	return outcome, err
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertFingerprint(ctx context.Context, tx *sql.Tx, rec *models.ExecutionRecord) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO execution_fingerprints (row_hash, source, source_filename)
		VALUES (?, ?, ?)`,
		rec.Fingerprint(), rec.Source, rec.SourceFilename,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func decimalArg(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}
