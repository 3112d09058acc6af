package pg

import (
	"context"
	"fmt"

	"trade_ledger/internal/models"

	"github.com/shopspring/decimal"
)

// SourceCount is one row of the per-source breakdown.
type SourceCount struct {
	Source string
	Count  int
}

// Stats is the post-import summary shown by the verify tool.
type Stats struct {
	Total    int
	BySource []SourceCount
	Open     int
	Closed   int
	Orphans  int
}

func (s *Store) Stats(ctx context.Context) (stats Stats, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Stats: %w", err)
		}
	}()

	conn := s.db.Conn()

	err = conn.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE end_date IS NULL),
			COUNT(*) FILTER (WHERE end_date IS NOT NULL),
			COUNT(*) FILTER (WHERE orphan_close)
		FROM trades`).Scan(&stats.Total, &stats.Open, &stats.Closed, &stats.Orphans)
	if err != nil {
		return stats, err
	}

	rows, err := conn.Query(ctx, `
		SELECT COALESCE(source, '(null)'), COUNT(*)
		FROM trades
		GROUP BY source
		ORDER BY COUNT(*) DESC`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var sc SourceCount
		if err = rows.Scan(&sc.Source, &sc.Count); err != nil {
			return stats, err
		}
		stats.BySource = append(stats.BySource, sc)
	}
	return stats, rows.Err()
}

func (s *Store) RecentTrades(ctx context.Context, limit int) (trades []models.Trade, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.RecentTrades: %w", err)
		}
	}()

	rows, err := s.db.Conn().Query(ctx, `
		SELECT id, ticker, direction, entry_date, entry_price::text,
		       exit_price::text, end_date, entry_summary, orphan_close,
		       COALESCE(source, ''), COALESCE(source_filename, ''),
		       created_at, is_duplicate
		FROM trades
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t            models.Trade
			direction    string
			entry, exit  *string
			entrySummary *string
		)
		if err = rows.Scan(
			&t.ID, &t.Ticker, &direction, &t.EntryDate, &entry,
			&exit, &t.EndDate, &entrySummary, &t.OrphanClose,
			&t.Source, &t.SourceFile, &t.CreatedAt, &t.IsDuplicate,
		); err != nil {
			return nil, err
		}
		t.Direction = models.Direction(direction)
		if t.EntryPrice, err = scanDecimal(entry); err != nil {
			return nil, err
		}
		if t.ExitPrice, err = scanDecimal(exit); err != nil {
			return nil, err
		}
		if entrySummary != nil {
			t.EntrySummary = *entrySummary
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func scanDecimal(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
