package bridge

import (
	"time"

	"go.uber.org/fx"

	"tilebridge/pkg/config"
	"tilebridge/pkg/logger"
	"tilebridge/pkg/shortcuts"
	"tilebridge/pkg/state"
)

// Module provides the Bridge.
var Module = fx.Module("bridge",
	fx.Provide(ProvideBridge),
)

// ProvideBridge wires the bridge to the state store, the shortcut
// registry and the hot-reloading config watcher.
func ProvideBridge(
	kv state.KV,
	registry *shortcuts.Registry,
	watcher *config.Watcher,
	cfg *config.Config,
	log *logger.Logger,
) (*Bridge, error) {
	return New(Options{
		KV:        kv,
		Shortcuts: NewRegistryRelay(registry),
		ScriptLog: NewScriptRelay(log.Named("script")),
		Config:    watcher,
		Log:       log.Named("bridge"),
		OpTimeout: time.Duration(cfg.State.OpTimeoutMS) * time.Millisecond,
	})
}
