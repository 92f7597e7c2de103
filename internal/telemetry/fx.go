package telemetry

import (
	"context"

	"github.com/beaconhq/beacon/internal/evaluation"
	"go.uber.org/fx"
)

var Module = fx.Module("telemetry",
	fx.Provide(
		New,
		func(e *Emitter) evaluation.TelemetrySink { return e },
	),
	fx.Invoke(registerEmitter),
)

func registerEmitter(lc fx.Lifecycle, emitter *Emitter) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				emitter.run(ctx)
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
