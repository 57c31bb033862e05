package bridge

import (
	"context"

	"go.uber.org/zap"

	"tilebridge/pkg/logger"
	"tilebridge/pkg/shortcuts"
)

// ShortcutDescriptor describes an action a script wants bound to a key.
type ShortcutDescriptor struct {
	ID                string
	Description       string
	DefaultKeybinding string
	// Callback runs when the shortcut fires. Nil for callers that cannot
	// receive callbacks.
	Callback func(ctx context.Context) error
}

// ShortcutRegistrar can register shortcuts with the host.
type ShortcutRegistrar interface {
	RegisterShortcut(desc ShortcutDescriptor) error
}

// ScriptLogger receives values scripts log.
type ScriptLogger interface {
	Log(value any)
}

// ConfigSource provides a read-only view of the native configuration.
type ConfigSource interface {
	Snapshot() (map[string]any, error)
}

// RegistryRelay forwards shortcut registrations to a shortcuts.Registry.
type RegistryRelay struct {
	registry *shortcuts.Registry
}

// NewRegistryRelay wraps registry.
func NewRegistryRelay(registry *shortcuts.Registry) *RegistryRelay {
	return &RegistryRelay{registry: registry}
}

// RegisterShortcut implements ShortcutRegistrar.
func (r *RegistryRelay) RegisterShortcut(desc ShortcutDescriptor) error {
	return r.registry.Register(&shortcuts.Action{
		ID:                desc.ID,
		Description:       desc.Description,
		DefaultKeybinding: desc.DefaultKeybinding,
		Handler:           shortcuts.Handler(desc.Callback),
	})
}

// ScriptRelay writes script log calls to the host logger.
type ScriptRelay struct {
	log *logger.Logger
}

// NewScriptRelay creates a relay logging through log.
func NewScriptRelay(log *logger.Logger) *ScriptRelay {
	return &ScriptRelay{log: log}
}

// Log implements ScriptLogger.
func (r *ScriptRelay) Log(value any) {
	r.log.Info("Script log", zap.String("source", "script"), zap.Any("value", value))
}

type nopRegistrar struct{}

func (nopRegistrar) RegisterShortcut(ShortcutDescriptor) error { return nil }

type nopScriptLogger struct{}

func (nopScriptLogger) Log(any) {}

type emptyConfig struct{}

func (emptyConfig) Snapshot() (map[string]any, error) { return map[string]any{}, nil }
