package main

import (
	"context"
	"log"
	"os"

	"trade_ledger/internal/modules/config"
	"trade_ledger/internal/modules/importer"
	"trade_ledger/internal/modules/postgres"
	"trade_ledger/internal/modules/reconciler"
	"trade_ledger/pkg/logger"
	"trade_ledger/pkg/tracing"

	"go.uber.org/fx"
)

func main() {
	if err := logger.Init(os.Getenv("LOG_DEV") != ""); err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()
	logger.SetServiceName("trade_ledger.importer")

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		postgres.Module(),
		reconciler.Module(),
		importer.Module(),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) error {
			if !cfg.Tracing.Enabled {
				return nil
			}
			tracing.SetServiceName("trade_ledger.importer")
			_, closeTracer, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Tracing.Host,
				Port: cfg.Tracing.Port,
			})
			if err != nil {
				return err
			}
			lc.Append(fx.Hook{
				OnStop: func(_ context.Context) error {
					closeTracer()
					return nil
				},
			})
			return nil
		}),
	)
	app.Run()
}
