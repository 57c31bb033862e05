package gateway

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"tilebridge/pkg/bridge"
	"tilebridge/pkg/config"
	"tilebridge/pkg/logger"
	"tilebridge/pkg/shortcuts"
	"tilebridge/pkg/snapshot"
)

const shutdownTimeout = 5 * time.Second

// Module provides the script gateway. The server is always constructed so
// its handler can be mounted elsewhere; it only listens when gateway.port is set.
var Module = fx.Module("gateway",
	fx.Provide(ProvideServer),
)

// ProvideServer builds the gateway and binds its listener to the host lifecycle.
func ProvideServer(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *logger.Logger,
	b *bridge.Bridge,
	registry *shortcuts.Registry,
	snapshots *snapshot.Scheduler,
) *Server {
	log = log.Named("gateway")
	s := NewServer(cfg, log, b, registry, snapshots)

	if cfg.Gateway.Port == 0 {
		log.Info("Script gateway disabled", zap.String("hint", "set gateway.port to enable"))
		return s
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := s.Start(); err != nil {
				return err
			}
			log.Info("Script gateway listening",
				zap.String("addr", s.Addr()),
				zap.Bool("auth", cfg.Gateway.Secret != ""),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return s.Stop(stopCtx)
		},
	})

	return s
}
