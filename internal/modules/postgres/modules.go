package postgres

import (
	"context"
	"fmt"
	"trade_ledger/internal/modules/config"
	"trade_ledger/pkg/db"

	"go.uber.org/fx"
)

// Module provides the master pool tx manager. With no DSN configured it
// provides nil and the reconciler module falls back to the embedded store.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(ctx context.Context, cfg *config.Config) (*db.PgTxManager, error) {
				if cfg.DB == "" {
					return nil, nil
				}

				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				err = poolMaster.Ping(ctx)
				if err != nil {
					return nil, err
				}

				return db.NewPgTxManager(poolMaster), nil
			},
		),
	)
}
