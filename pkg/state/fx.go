package state

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"tilebridge/pkg/config"
	"tilebridge/pkg/logger"
)

// Module is the fx module for state management.
var Module = fx.Module("state",
	fx.Provide(NewKVStore),
)

// FromConfig maps the file configuration onto a store Config.
func FromConfig(cfg *config.Config) *Config {
	return &Config{
		Backend:       BackendType(cfg.State.Backend),
		FilePath:      cfg.State.FilePath,
		AutoSave:      cfg.State.AutoSave,
		SaveInterval:  time.Duration(cfg.State.SaveIntervalS) * time.Second,
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		RedisPrefix:   cfg.State.Prefix,
		SQLitePath:    cfg.State.SQLitePath,
	}
}

// NewKVStore creates a new KV store for fx.
func NewKVStore(
	lc fx.Lifecycle,
	log *logger.Logger,
	cfg *config.Config,
) (KV, error) {
	stateConfig := FromConfig(cfg)

	store, err := NewKV(context.Background(), log.Named("state"), stateConfig)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("State store initialized", zap.String("backend", string(stateConfig.Backend)))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return store.Close()
		},
	})

	return store, nil
}
