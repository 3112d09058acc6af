package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one round trip: an entry execution and, eventually, an exit.
// Entry fields are set at open and never touched again; exit fields are set
// exactly once by the matching close. Orphan rows carry only exit fields.
type Trade struct {
	ID           int64
	Ticker       string
	Direction    Direction
	EntryDate    *time.Time
	EntryPrice   decimal.NullDecimal
	ExitPrice    decimal.NullDecimal
	EndDate      *time.Time
	StopLoss     decimal.NullDecimal
	Leverage     decimal.NullDecimal
	EntrySummary string
	OrphanClose  bool
	Source       string
	SourceFile   string
	CreatedAt    time.Time
	IsDuplicate  bool // legacy alias of OrphanClose, kept in step with it
}

func (t *Trade) IsOpen() bool {
	return t.EndDate == nil
}
