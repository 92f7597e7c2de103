package evaluation

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("evaluation",
	fx.Provide(NewLoader),
	fx.Provide(NewStore),
	fx.Provide(NewService),
	fx.Invoke(registerStore),
)

// registerStore performs the initial snapshot load and starts the
// background refresh loop. A failed first load does not abort startup;
// the service reports not ready until a refresh succeeds.
func registerStore(lc fx.Lifecycle, store *Store, log *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			if err := store.Refresh(startCtx); err != nil {
				log.Warn("initial snapshot load failed, starting cold", zap.Error(err))
			}
			go func() {
				defer close(done)
				store.run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
