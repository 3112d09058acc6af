package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

type Role string

const (
	RoleOpen  Role = "OPEN"
	RoleClose Role = "CLOSE"
)

// ExecutionRecord is one normalized fill taken from a source file. It is
// built once per CSV line, consumed once by the reconciler and then dropped;
// only the resulting trade row is persisted.
type ExecutionRecord struct {
	Instrument string
	Direction  Direction
	Role       Role
	Timestamp  time.Time // normalized to UTC before reaching the reconciler
	Price      decimal.NullDecimal
	Size       decimal.NullDecimal
	Leverage   decimal.NullDecimal
	StopLoss   decimal.NullDecimal
	Reason     string // TP/SL when the side string carries it, else empty

	Source         string
	SourceFilename string
	SourceLine     int
	RawSide        string
}

// Fingerprint returns the stable row hash used for per-row idempotency.
// Only identifying fields participate; provenance like the line number does
// not, so the same row seen in two overlapping exports hashes the same.
func (r *ExecutionRecord) Fingerprint() string {
	parts := []string{
		r.Source,
		r.Instrument,
		string(r.Direction),
		string(r.Role),
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		nullDecimalKey(r.Price),
		nullDecimalKey(r.Size),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func nullDecimalKey(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
