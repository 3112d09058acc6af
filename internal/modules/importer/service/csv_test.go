package service

import (
	"strings"
	"testing"
	"time"

	"trade_ledger/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleExport = `Underlying Asset,Side,Avg Fill,Filled,Order Time,Leverage
BTC,Open Long,30000.5 USDT,0.01 BTC,2025-03-14 09:00:00,10X
BTC,Close Long (TP),32000 USDT,0.01 BTC,2025-03-14 11:00:00,10X
ICP,Open Short,3.192 USDT,100 ICP,2025-03-14 09:30:00,--
,Open Long,--,--,2025-03-14 10:00:00,--
`

func TestParseRecords(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("UTC")
	require.NoError(t, err)

	recs, err := parseRecords(strings.NewReader(sampleExport), "blofin_order_history", "export.csv", loc)
	require.NoError(t, err)
	require.Len(t, recs, 4)

	btc := recs[0]
	assert.Equal(t, "BTC", btc.Instrument)
	assert.Equal(t, models.RoleOpen, btc.Role)
	assert.Equal(t, models.DirectionLong, btc.Direction)
	assert.True(t, btc.Price.Valid)
	assert.True(t, btc.Price.Decimal.Equal(decimal.RequireFromString("30000.5")))
	assert.True(t, btc.Size.Decimal.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, btc.Leverage.Valid)
	assert.True(t, btc.Leverage.Decimal.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC), btc.Timestamp)
	assert.Equal(t, 2, btc.SourceLine)

	tp := recs[1]
	assert.Equal(t, models.RoleClose, tp.Role)
	assert.Equal(t, "TP", tp.Reason)

	icp := recs[2]
	assert.Equal(t, "ICP", icp.Instrument)
	assert.True(t, icp.Size.Decimal.Equal(decimal.NewFromInt(100)))
	assert.False(t, icp.Leverage.Valid)

	// Missing ticker and price: still produced, the reconciler owns the
	// reject. An open with no fill size defaults to zero.
	empty := recs[3]
	assert.Equal(t, "", empty.Instrument)
	assert.False(t, empty.Price.Valid)
	assert.True(t, empty.Size.Valid)
	assert.True(t, empty.Size.Decimal.IsZero())
}

func TestParseRecordsColumnAliases(t *testing.T) {
	t.Parallel()

	legacy := "Ticker,Side,Price,Quantity,Time\nETH,Open Short,2000,2,2025-03-14 12:00:00\n"
	recs, err := parseRecords(strings.NewReader(legacy), "test", "legacy.csv", time.UTC)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "ETH", recs[0].Instrument)
	assert.True(t, recs[0].Price.Decimal.Equal(decimal.NewFromInt(2000)))
}

func TestParseTimestampZone(t *testing.T) {
	t.Parallel()

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// Naive timestamps read in the source zone, normalized to UTC.
	got, ok := parseTimestamp("2025-03-14 10:00:00", berlin)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC), got)

	_, ok = parseTimestamp("not a time", time.UTC)
	assert.False(t, ok)
	_, ok = parseTimestamp("", time.UTC)
	assert.False(t, ok)
}

func TestParseUnitDecimal(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"3.192 USDT": "3.192",
		"100 ICP":    "100",
		"85711.3":    "85711.3",
		"0.01 BTC":   "0.01",
	}
	for in, want := range cases {
		d := parseUnitDecimal(in)
		require.True(t, d.Valid, "input=%q", in)
		assert.True(t, d.Decimal.Equal(decimal.RequireFromString(want)), "input=%q", in)
	}

	assert.False(t, parseUnitDecimal("").Valid)
	assert.False(t, parseUnitDecimal("garbage").Valid)
}

func TestFingerprintStability(t *testing.T) {
	t.Parallel()

	loc := time.UTC
	a, err := parseRecords(strings.NewReader(sampleExport), "blofin_order_history", "export.csv", loc)
	require.NoError(t, err)
	b, err := parseRecords(strings.NewReader(sampleExport), "blofin_order_history", "other_name.csv", loc)
	require.NoError(t, err)

	// Same rows from a re-export under a different filename fingerprint the
	// same; distinct rows never collide.
	seen := map[string]bool{}
	for i := range a {
		assert.Equal(t, a[i].Fingerprint(), b[i].Fingerprint())
		assert.False(t, seen[a[i].Fingerprint()])
		seen[a[i].Fingerprint()] = true
	}
}
