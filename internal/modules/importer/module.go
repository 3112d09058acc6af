package importer

import (
	"context"
	"trade_ledger/internal/modules/config"
	"trade_ledger/internal/modules/importer/service"
	"trade_ledger/internal/notify"
	"trade_ledger/pkg/logger"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("importer",
		// Notifier: stdout unless telegram credentials are configured.
		fx.Provide(
			func(cfg *config.Config) notify.Notifier {
				if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
					if tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID); err == nil {
						return tg
					}
				}
				return notify.NewStdout()
			},
		),

		fx.Provide(
			service.New, // func(*config.Config, *reconciler.Reconciler, notify.Notifier) (*service.Service, error)
		),

		// One-shot batch run: import everything, then shut the app down.
		fx.Invoke(func(
			lc fx.Lifecycle,
			s *service.Service,
			sd fx.Shutdowner,
			ctx context.Context,
		) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go func() {
						if err := s.Run(ctx); err != nil {
							logger.Error("import run failed: %v", err)
						}
						_ = sd.Shutdown()
					}()
					return nil
				},
			})
		}),
	)
}
