package service

import (
	"context"
	"fmt"
	"time"

	"trade_ledger/internal/models"
	"trade_ledger/pkg/logger"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// Options control the close-contention policy and the malformed-row policy.
// They are per-orchestrator, not per-file.
type Options struct {
	// CloseRetries is how many extra lock-select attempts a close gets before
	// it is recorded as an orphan. Zero means orphan on the first miss.
	CloseRetries int
	// CloseRetryBackoff is slept between attempts.
	CloseRetryBackoff time.Duration
	// ContinueOnMalformed keeps going past rejected rows instead of aborting
	// the file. This is the default wiring; one bad row should not block an
	// otherwise valid export.
	ContinueOnMalformed bool
}

// Reconciler applies an ordered stream of execution records to the trade
// store: opens insert, closes match LIFO against open trades. All
// concurrency safety lives in the store (skip-locked selection on Postgres,
// a serialized critical section on the embedded fallback); the reconciler
// only decides between retry and orphan when a close finds nothing.
type Reconciler struct {
	store  TradeStore
	ledger FileLedger
	opts   Options
}

func NewReconciler(store TradeStore, ledger FileLedger, opts Options) *Reconciler {
	return &Reconciler{
		store:  store,
		ledger: ledger,
		opts:   opts,
	}
}

// Reconcile processes one file's records in file order. Returns
// ErrAlreadyImported when the content hash is in the ledger; the partial
// result is still returned so callers can log it. Storage errors abort the
// file mid-way: already-applied rows stay committed and a retried run skips
// them via their fingerprints.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	fileHash string,
	filename string,
	records []*models.ExecutionRecord,
) (res *models.ImportResult, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Reconciler.Reconcile: %w", err)
		}
	}()

	res = &models.ImportResult{
		RunID:    ulid.Make().String(),
		Filename: filename,
	}

	imported, err := r.ledger.AlreadyImported(ctx, fileHash)
	if err != nil {
		return res, err
	}
	if imported {
		return res, ErrAlreadyImported
	}

	for _, rec := range records {
		if mErr := validate(rec); mErr != nil {
			res.Malformed++
			if !r.opts.ContinueOnMalformed {
				return res, mErr
			}
			logger.Warn("run %s: skipping row: %v", res.RunID, mErr)
			continue
		}

		switch rec.Role {
		case models.RoleOpen:
			if err = r.applyOpen(ctx, rec, res); err != nil {
				return res, err
			}
		case models.RoleClose:
			if err = r.applyClose(ctx, rec, res); err != nil {
				return res, err
			}
		}
	}

	if err = r.ledger.RecordImported(ctx, filename, fileHash); err != nil {
		return res, err
	}

	return res, nil
}

func (r *Reconciler) applyOpen(ctx context.Context, rec *models.ExecutionRecord, res *models.ImportResult) error {
	outcome, err := r.store.ApplyOpen(ctx, rec)
	if err != nil {
		return err
	}
	switch outcome {
	case OutcomeApplied:
		res.Opened++
	case OutcomeDuplicateRow, OutcomeDuplicateOpen:
		res.SkippedDuplicate++
	}
	return nil
}

func (r *Reconciler) applyClose(ctx context.Context, rec *models.ExecutionRecord, res *models.ImportResult) error {
	attempts := r.opts.CloseRetries + 1
	var outcome ApplyOutcome
	for i := 0; i < attempts; i++ {
		last := i == attempts-1

		var err error
		outcome, err = r.store.ApplyClose(ctx, rec, last)
		if err != nil {
			return err
		}
		if outcome != OutcomeNoMatch {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.opts.CloseRetryBackoff):
		}
	}

	switch outcome {
	case OutcomeApplied:
		res.Closed++
	case OutcomeDuplicateRow:
		res.SkippedDuplicate++
	case OutcomeOrphaned:
		res.Orphaned++
		logger.Warn("orphan close: %s %s @ %s (%s:%d)",
			rec.Instrument, rec.Direction, nullDecimalString(rec.Price), rec.SourceFilename, rec.SourceLine)
	}
	return nil
}

func validate(rec *models.ExecutionRecord) *MalformedRecordError {
	reason := ""
	switch {
	case rec.Instrument == "":
		reason = "missing instrument"
	case rec.Role != models.RoleOpen && rec.Role != models.RoleClose:
		reason = "missing open/close role"
	case rec.Timestamp.IsZero():
		reason = "missing timestamp"
	}
	if reason == "" {
		return nil
	}
	return &MalformedRecordError{
		Filename: rec.SourceFilename,
		Line:     rec.SourceLine,
		Reason:   reason,
	}
}

func nullDecimalString(d decimal.NullDecimal) string {
	if !d.Valid {
		return "?"
	}
	return d.Decimal.String()
}
