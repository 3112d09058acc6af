package reconciler

import (
	"context"
	"trade_ledger/internal/modules/config"
	"trade_ledger/internal/modules/reconciler/service"
	"trade_ledger/internal/modules/reconciler/service/pg"
	"trade_ledger/internal/modules/reconciler/service/sqlite"
	"trade_ledger/pkg/db"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("reconciler",
		// Store selection: Postgres when a DSN is configured, otherwise the
		// serialized sqlite fallback. Both faces of the store come from the
		// same instance so fingerprints and trades share transactions.
		fx.Provide(
			func(
				ctx context.Context,
				cfg *config.Config,
				m *db.PgTxManager,
				lc fx.Lifecycle,
			) (service.TradeStore, service.FileLedger, error) {
				if cfg.DB != "" {
					if err := pg.EnsureSchema(ctx, m.Conn()); err != nil {
						return nil, nil, err
					}
					store := pg.New(m, pg.Options{
						OpenDedupIncludesOrphans: cfg.OpenDedupIncludesOrphans,
					})
					return store, store, nil
				}

				store, err := sqlite.New(cfg.SQLitePath, sqlite.Options{
					OpenDedupIncludesOrphans: cfg.OpenDedupIncludesOrphans,
				})
				if err != nil {
					return nil, nil, err
				}
				lc.Append(fx.Hook{
					OnStop: func(_ context.Context) error {
						return store.Close()
					},
				})
				return store, store, nil
			},
		),

		fx.Provide(
			func(store service.TradeStore, ledger service.FileLedger, cfg *config.Config) *service.Reconciler {
				return service.NewReconciler(store, ledger, service.Options{
					CloseRetries:        cfg.CloseRetries,
					CloseRetryBackoff:   cfg.CloseRetryBackoff,
					ContinueOnMalformed: cfg.ContinueOnMalformed,
				})
			},
		),
	)
}
