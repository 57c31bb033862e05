package snapshot

import (
	"context"

	"go.uber.org/fx"

	"tilebridge/pkg/config"
	"tilebridge/pkg/logger"
	"tilebridge/pkg/state"
)

// Module is the fx module for scheduled snapshots.
var Module = fx.Module("snapshot",
	fx.Provide(ProvideScheduler),
)

// ProvideScheduler returns nil when no schedule is configured.
func ProvideScheduler(
	lc fx.Lifecycle,
	log *logger.Logger,
	kv state.KV,
	cfg *config.Config,
) (*Scheduler, error) {
	if cfg.State.SnapshotSchedule == "" {
		return nil, nil
	}

	scheduler, err := NewScheduler(log.Named("snapshot"), kv, cfg.State.SnapshotSchedule, cfg.State.SnapshotPath)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start()
		},
		OnStop: func(ctx context.Context) error {
			if err := scheduler.Stop(); err != nil {
				return err
			}
			// Final snapshot so a clean shutdown never loses the last state.
			return scheduler.RunNow(ctx)
		},
	})

	return scheduler, nil
}
