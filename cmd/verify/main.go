// verify prints post-import statistics: totals, per-source counts, open vs
// closed, and the most recent trades. Read-only; safe to run anytime.
package main

import (
	"context"
	"fmt"
	"os"

	"trade_ledger/internal/modules/reconciler/service/pg"
	"trade_ledger/pkg/db"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

func main() {
	viper.AutomaticEnv()
	_ = viper.BindEnv("dsn", "DATABASE_DSN")
	_ = viper.BindEnv("limit", "VERIFY_LIMIT")
	viper.SetDefault("limit", 10)

	dsn := viper.GetString("dsn")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_DSN not set")
		os.Exit(1)
	}

	if err := run(context.Background(), dsn, viper.GetInt("limit")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dsn string, limit int) error {
	pool, err := db.NewPool(ctx, db.PoolConfig{DSN: dsn})
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	defer pool.Close()

	store := pg.New(db.NewPgTxManager(pool), pg.Options{})

	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Total trades: %d\n", stats.Total)
	fmt.Println("\nTrades by source:")
	for _, sc := range stats.BySource {
		fmt.Printf("  %s: %d\n", sc.Source, sc.Count)
	}
	fmt.Printf("\nOpen trades: %d\nClosed trades: %d\nOrphan closes: %d\n",
		stats.Open, stats.Closed, stats.Orphans)

	trades, err := store.RecentTrades(ctx, limit)
	if err != nil {
		return err
	}

	fmt.Printf("\nMost recent %d trades:\n", limit)
	for _, t := range trades {
		entry, exit := "-", "-"
		if t.EntryPrice.Valid {
			entry = t.EntryPrice.Decimal.String()
		}
		if t.ExitPrice.Valid {
			exit = t.ExitPrice.Decimal.String()
		}
		flag := ""
		if t.OrphanClose {
			flag = " [orphan]"
		}
		fmt.Printf("  #%d %s %s entry=%s exit=%s%s (%s)\n",
			t.ID, t.Ticker, t.Direction, entry, exit, flag,
			t.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
