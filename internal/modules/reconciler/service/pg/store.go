package pg

import (
	"context"
	"errors"
	"fmt"

	"trade_ledger/internal/models"
	"trade_ledger/internal/modules/reconciler/service"
	"trade_ledger/pkg/db"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type Options struct {
	// OpenDedupIncludesOrphans makes an OPEN whose key fields equal an
	// existing orphan row's exit fields a duplicate instead of a new trade.
	OpenDedupIncludesOrphans bool
}

// Store is the Postgres trade store. Close matching uses
// FOR UPDATE SKIP LOCKED, so concurrent importers never block on each other
// and never select the same open trade twice.
type Store struct {
	db   db.TxManager
	opts Options
}

func New(m db.TxManager, opts Options) *Store {
	return &Store{
		db:   m,
		opts: opts,
	}
}

// rowSummary is the provenance blob written into trades.entry_summary.
type rowSummary struct {
	RawSide    string `json:"raw_side,omitempty"`
	Reason     string `json:"reason,omitempty"`
	SourceLine int    `json:"source_line,omitempty"`
}

func (s *Store) ApplyOpen(ctx context.Context, rec *models.ExecutionRecord) (outcome service.ApplyOutcome, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.ApplyOpen: %w", err)
		}
	}()

	err = s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		fresh, fErr := insertFingerprint(ctxTx, tx, rec)
		if fErr != nil {
			return fErr
		}
		if !fresh {
			outcome = service.OutcomeDuplicateRow
			return nil
		}

		if s.opts.OpenDedupIncludesOrphans {
			var exists bool
			qErr := tx.QueryRow(ctxTx, `
				SELECT EXISTS (
					SELECT 1 FROM trades
					WHERE ticker = $1 AND direction = $2 AND orphan_close
					  AND end_date = $3 AND exit_price = $4
				)`,
				rec.Instrument, string(rec.Direction), rec.Timestamp, decimalArg(rec.Price),
			).Scan(&exists)
			if qErr != nil {
				return qErr
			}
			if exists {
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

		tag, iErr := tx.Exec(ctxTx, `
			INSERT INTO trades
				(ticker, direction, entry_date, entry_price, stop_loss, leverage,
				 entry_summary, source, source_filename)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (ticker, direction, entry_date, entry_price)
				WHERE end_date IS NULL
				DO NOTHING`,
			rec.Instrument,
			string(rec.Direction),
			rec.Timestamp,
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
		if tag.RowsAffected() == 0 {
			// An identical trade is already open. Expected when export
			// windows overlap; the fingerprint above keeps it skipped on
			// the next run too.
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
			err = fmt.Errorf("pg.ApplyClose: %w", err)
		}
	}()

	err = s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		fresh, fErr := insertFingerprint(ctxTx, tx, rec)
		if fErr != nil {
			return fErr
		}
		if !fresh {
			outcome = service.OutcomeDuplicateRow
			return nil
		}

		// LIFO: newest entry first, id as tiebreak. Rows locked by other
		// in-flight transactions are invisible to this select, so a
		// contended close falls through to the next-most-recent open trade
		// instead of blocking.
		var id int64
		qErr := tx.QueryRow(ctxTx, `
			UPDATE trades
			SET exit_price = $1, end_date = $2
			WHERE id = (
				SELECT id FROM trades
				WHERE ticker = $3 AND direction = $4 AND end_date IS NULL
				ORDER BY entry_date DESC, id DESC
				LIMIT 1
				FOR UPDATE SKIP LOCKED
			)
			RETURNING id`,
			decimalArg(rec.Price),
			rec.Timestamp,
			rec.Instrument,
			string(rec.Direction),
		).Scan(&id)
		if qErr == nil {
			outcome = service.OutcomeApplied
			return nil
		}
		if !errors.Is(qErr, pgx.ErrNoRows) {
			return qErr
		}

		if !orphanOnMiss {
			// Roll the fingerprint back with the tx so a later attempt is
			// not treated as a duplicate.
			outcome = service.OutcomeNoMatch
			return pgx.ErrNoRows
		}

		summary, sErr := sonic.Marshal(rowSummary{
			RawSide:    rec.RawSide,
			Reason:     rec.Reason,
			SourceLine: rec.SourceLine,
		})
		if sErr != nil {
			return sErr
		}

		_, iErr := tx.Exec(ctxTx, `
			INSERT INTO trades
				(ticker, direction, exit_price, end_date, entry_summary,
				 orphan_close, is_duplicate, source, source_filename)
			VALUES ($1, $2, $3, $4, $5, TRUE, TRUE, $6, $7)`,
			rec.Instrument,
			string(rec.Direction),
			decimalArg(rec.Price),
			rec.Timestamp,
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

	if outcome == service.OutcomeNoMatch && errors.Is(err, pgx.ErrNoRows) {
		err = nil
	}
	return outcome, err
}

func insertFingerprint(ctx context.Context, tx pgx.Tx, rec *models.ExecutionRecord) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO execution_fingerprints (row_hash, source, source_filename)
		VALUES ($1, $2, $3)
		ON CONFLICT (row_hash) DO NOTHING`,
		rec.Fingerprint(), rec.Source, rec.SourceFilename,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// decimalArg binds a nullable decimal as text; Postgres casts it to NUMERIC
// without any float round trip.
func decimalArg(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}
