package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"trade_ledger/internal/models"

	"github.com/shopspring/decimal"
)

// Exchange exports rename columns between versions; each field has a list
// of accepted headers, first match wins. "--" cells count as empty.
var (
	tickerColumns   = []string{"Underlying Asset", "Ticker", "symbol"}
	sideColumns     = []string{"Side"}
	priceColumns    = []string{"Avg Fill", "Price"}
	quantityColumns = []string{"Filled", "Quantity"}
	timeColumns     = []string{"Order Time", "Time"}
	leverageColumns = []string{"Leverage"}
)

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"01/02/2006 15:04:05",
	"2006/01/02 15:04:05",
	time.RFC3339,
}

// parseRecords reads every data row of an export into execution records.
// Rows are not validated here; the reconciler owns the malformed-row policy
// and its counters.
func parseRecords(r io.Reader, source, filename string, loc *time.Location) ([]*models.ExecutionRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	var out []*models.ExecutionRecord
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line+1, err)
		}
		line++

		cell := func(columns []string) string {
			for _, c := range columns {
				i, ok := index[c]
				if !ok || i >= len(row) {
					continue
				}
				v := strings.TrimSpace(row[i])
				if v != "" && v != "--" {
					return v
				}
			}
			return ""
		}

		rawSide := cell(sideColumns)
		role, direction, reason := inferRoleAndDirection(rawSide)

		rec := &models.ExecutionRecord{
			Instrument:     cell(tickerColumns),
			Direction:      direction,
			Role:           role,
			Price:          parseUnitDecimal(cell(priceColumns)),
			Size:           parseUnitDecimal(cell(quantityColumns)),
			Leverage:       parseLeverage(cell(leverageColumns)),
			Reason:         reason,
			Source:         source,
			SourceFilename: filename,
			SourceLine:     line,
			RawSide:        rawSide,
		}
		if ts, ok := parseTimestamp(cell(timeColumns), loc); ok {
			rec.Timestamp = ts
		}

		// Opens with a missing fill size get zero rather than a reject;
		// matches the source system's behavior for sparse exports.
		if rec.Role == models.RoleOpen && !rec.Size.Valid {
			rec.Size = decimal.NewNullDecimal(decimal.Zero)
		}

		out = append(out, rec)
	}
	return out, nil
}

// parseUnitDecimal handles cells like "3.192 USDT", "100 ICP" or "85711.3":
// the first whitespace-separated token is the number.
func parseUnitDecimal(s string) decimal.NullDecimal {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(fields[0])
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// parseLeverage handles "10X" / "10x" / "10".
func parseLeverage(s string) decimal.NullDecimal {
	s = strings.TrimSuffix(strings.TrimSuffix(strings.TrimSpace(s), "X"), "x")
	return parseUnitDecimal(s)
}

// parseTimestamp reads a naive timestamp in loc and normalizes it to UTC.
// The reconciler itself is timezone-agnostic and only ever compares
// instants.
func parseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseFile(path, source string, loc *time.Location) ([]*models.ExecutionRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return parseRecords(f, source, baseName(path), loc)
}
