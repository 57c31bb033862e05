package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"tilebridge/pkg/logger"
)

// ChangeHandler is called with the new configuration after a reload.
type ChangeHandler func(*Config) error

// Watcher holds the live configuration and reloads it when the file changes.
// It is the source scripts read through jsConfig.
type Watcher struct {
	loader   *Loader
	log      *logger.Logger
	config   *Config
	handlers []ChangeHandler
	mu       sync.RWMutex
	watching bool
}

// NewWatcher creates a new configuration watcher around an already loaded config.
func NewWatcher(loader *Loader, cfg *Config, log *logger.Logger) *Watcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Watcher{
		loader: loader,
		log:    log,
		config: cfg,
	}
}

// AddHandler registers a handler to be called when configuration changes.
func (w *Watcher) AddHandler(handler ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start begins watching the configuration file for changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}
	w.watching = true
	w.mu.Unlock()

	w.loader.viper.OnConfigChange(func(e fsnotify.Event) {
		w.mu.RLock()
		active := w.watching
		w.mu.RUnlock()
		if !active {
			return
		}
		if err := w.Reload(); err != nil {
			w.log.Warn("Config reload failed, keeping previous config",
				zap.String("file", e.Name),
				zap.Error(err))
		}
	})
	w.loader.viper.WatchConfig()

	return nil
}

// Stop stops reacting to file changes. Viper keeps its fsnotify watch open
// until the process exits, so the callback only checks this flag.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watching = false
}

// Reload reads and validates the file again. An invalid file leaves the
// current config in place.
func (w *Watcher) Reload() error {
	newConfig, err := w.loader.Load("")
	if err != nil {
		return err
	}
	if err := ValidateConfig(newConfig); err != nil {
		return err
	}

	w.mu.Lock()
	w.config = newConfig
	w.mu.Unlock()

	w.log.Info("Configuration reloaded", zap.Strings("layouts", newConfig.Tiling.EnabledLayouts))
	w.notifyHandlers(newConfig)
	return nil
}

// GetConfig returns the current configuration.
func (w *Watcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Snapshot returns a copy of the current tiling configuration in script form.
func (w *Watcher) Snapshot() (map[string]any, error) {
	cfg := w.GetConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg.Tiling.Snapshot(), nil
}

func (w *Watcher) notifyHandlers(cfg *Config) {
	w.mu.RLock()
	handlers := make([]ChangeHandler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(cfg); err != nil {
			w.log.Warn("Config change handler failed", zap.Error(err))
		}
	}
}
