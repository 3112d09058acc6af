package service

import (
	"context"

	"trade_ledger/internal/models"
)

// ApplyOutcome is what the store reports for one execution record.
type ApplyOutcome int

const (
	// OutcomeApplied: a trade row was opened or closed.
	OutcomeApplied ApplyOutcome = iota
	// OutcomeDuplicateRow: the row fingerprint was already recorded, nothing changed.
	OutcomeDuplicateRow
	// OutcomeDuplicateOpen: an identical open trade already exists, insert was a no-op.
	OutcomeDuplicateOpen
	// OutcomeNoMatch: no open trade could be selected and the caller did not
	// ask for an orphan row. The close was not applied; retry or orphan it.
	OutcomeNoMatch
	// OutcomeOrphaned: the close was recorded as an orphan row.
	OutcomeOrphaned
)

// TradeStore is the only write path into the trades table. Both operations
// are atomic: the fingerprint marker and the trade mutation commit together
// or not at all.
//
// ApplyClose with orphanOnMiss=false reports OutcomeNoMatch when every open
// trade for the key is locked by another worker or none exists; with
// orphanOnMiss=true it records an orphan row instead.
type TradeStore interface {
	ApplyOpen(ctx context.Context, rec *models.ExecutionRecord) (ApplyOutcome, error)
	ApplyClose(ctx context.Context, rec *models.ExecutionRecord, orphanOnMiss bool) (ApplyOutcome, error)
}

// FileLedger tracks fully processed source files by content hash.
type FileLedger interface {
	AlreadyImported(ctx context.Context, fileHash string) (bool, error)
	RecordImported(ctx context.Context, filename, fileHash string) error
}
