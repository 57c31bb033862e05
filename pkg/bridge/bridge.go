// Package bridge exposes persistent window-manager state to tiling scripts.
//
// The Bridge composes three independent components over one backing KV:
// window and layout KeyedStateStores, a WindowListRegistry and a
// SurfaceGroupIndex. Its methods are total: backend failures are logged
// and resolved to "", NoSurfaceGroup or a no-op, because scripts have no
// way to recover from them.
package bridge

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tilebridge/pkg/logger"
	"tilebridge/pkg/state"
)

// Options configures a Bridge. Only KV is required.
type Options struct {
	KV        state.KV
	Shortcuts ShortcutRegistrar
	ScriptLog ScriptLogger
	Config    ConfigSource
	Log       *logger.Logger

	// OpTimeout bounds each façade call. Zero means no deadline.
	OpTimeout time.Duration
}

// Bridge is the single owner of the state components.
type Bridge struct {
	log       *logger.Logger
	opTimeout time.Duration

	windows    *KeyedStateStore
	layouts    *KeyedStateStore
	windowList *WindowListRegistry
	surfaces   *SurfaceGroupIndex

	shortcuts ShortcutRegistrar
	scriptLog ScriptLogger
	config    ConfigSource
}

// New builds a bridge over opts.KV.
func New(opts Options) (*Bridge, error) {
	log := opts.Log
	if log == nil {
		log = logger.NewNop()
	}
	if opts.KV == nil {
		opts.KV = state.NewMemoryStore()
	}

	windows, err := NewKeyedStateStore(opts.KV, NamespaceWindow)
	if err != nil {
		return nil, err
	}
	layouts, err := NewKeyedStateStore(opts.KV, NamespaceLayout)
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		log:        log,
		opTimeout:  opts.OpTimeout,
		windows:    windows,
		layouts:    layouts,
		windowList: NewWindowListRegistry(opts.KV),
		surfaces:   NewSurfaceGroupIndex(opts.KV, log),
		shortcuts:  opts.Shortcuts,
		scriptLog:  opts.ScriptLog,
		config:     opts.Config,
	}
	if b.shortcuts == nil {
		b.shortcuts = nopRegistrar{}
	}
	if b.scriptLog == nil {
		b.scriptLog = nopScriptLogger{}
	}
	if b.config == nil {
		b.config = emptyConfig{}
	}
	return b, nil
}

// Windows returns the window-state store.
func (b *Bridge) Windows() *KeyedStateStore { return b.windows }

// Layouts returns the layout-state store.
func (b *Bridge) Layouts() *KeyedStateStore { return b.layouts }

// WindowList returns the window list registry.
func (b *Bridge) WindowList() *WindowListRegistry { return b.windowList }

// Surfaces returns the surface group index.
func (b *Bridge) Surfaces() *SurfaceGroupIndex { return b.surfaces }

func (b *Bridge) opContext(parent context.Context) (context.Context, context.CancelFunc) {
	if b.opTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, b.opTimeout)
}

// GetWindowState returns the blob stored for a window, or "".
func (b *Bridge) GetWindowState(key string) string {
	return b.getState(context.Background(), b.windows, key)
}

// PutWindowState stores a window blob, replacing any previous value.
func (b *Bridge) PutWindowState(key, value string) {
	b.putState(context.Background(), b.windows, key, value)
}

// GetLayoutState returns the blob stored for a layout key, or "".
func (b *Bridge) GetLayoutState(key string) string {
	return b.getState(context.Background(), b.layouts, key)
}

// PutLayoutState stores a layout blob, replacing any previous value.
func (b *Bridge) PutLayoutState(key, value string) {
	b.putState(context.Background(), b.layouts, key, value)
}

// GetWindowList returns the stored window list, or "" if none was written.
func (b *Bridge) GetWindowList() string {
	return b.getWindowList(context.Background())
}

// PutWindowList replaces the window list wholesale.
func (b *Bridge) PutWindowList(list string) {
	b.putWindowList(context.Background(), list)
}

// GetSurfaceGroup returns NoSurfaceGroup for unassigned cells.
func (b *Bridge) GetSurfaceGroup(desktop, screen int) int {
	return b.getSurfaceGroup(context.Background(), desktop, screen)
}

// SetSurfaceGroup assigns a cell. Storing NoSurfaceGroup makes the cell
// read as unassigned again.
func (b *Bridge) SetSurfaceGroup(desktop, screen, group int) {
	b.setSurfaceGroup(context.Background(), desktop, screen, group)
}

// RegisterShortcut relays desc to the shortcut subsystem. Rejections are
// logged.
func (b *Bridge) RegisterShortcut(desc ShortcutDescriptor) {
	if err := b.TryRegisterShortcut(desc); err != nil {
		b.log.Error("Failed to register shortcut", zap.String("id", desc.ID), zap.Error(err))
	}
}

// TryRegisterShortcut relays desc and returns the subsystem's rejection,
// for callers that can report it back to the script.
func (b *Bridge) TryRegisterShortcut(desc ShortcutDescriptor) error {
	return b.shortcuts.RegisterShortcut(desc)
}

// Log relays value to the script log sink.
func (b *Bridge) Log(value any) {
	b.scriptLog.Log(value)
}

// JSConfig returns a fresh snapshot of the native configuration, or an
// empty map when it is unavailable.
func (b *Bridge) JSConfig() map[string]any {
	snap, err := b.config.Snapshot()
	if err != nil {
		b.log.Error("Config snapshot unavailable", zap.Error(err))
		return map[string]any{}
	}
	if snap == nil {
		return map[string]any{}
	}
	return snap
}

func (b *Bridge) getState(ctx context.Context, store *KeyedStateStore, key string) string {
	ctx, cancel := b.opContext(ctx)
	defer cancel()

	value, err := store.Get(ctx, key)
	if err != nil {
		b.log.Error("State read failed", zap.String("namespace", string(store.Namespace())), zap.Error(err))
		return ""
	}
	return value
}

func (b *Bridge) putState(ctx context.Context, store *KeyedStateStore, key, value string) {
	ctx, cancel := b.opContext(ctx)
	defer cancel()

	if err := store.Put(ctx, key, value); err != nil {
		b.log.Error("State write failed", zap.String("namespace", string(store.Namespace())), zap.Error(err))
	}
}

func (b *Bridge) getWindowList(ctx context.Context) string {
	ctx, cancel := b.opContext(ctx)
	defer cancel()

	list, err := b.windowList.Get(ctx)
	if err != nil {
		b.log.Error("Window list read failed", zap.Error(err))
		return ""
	}
	return list
}

func (b *Bridge) putWindowList(ctx context.Context, list string) {
	ctx, cancel := b.opContext(ctx)
	defer cancel()

	if err := b.windowList.Put(ctx, list); err != nil {
		b.log.Error("Window list write failed", zap.Error(err))
	}
}

func (b *Bridge) getSurfaceGroup(ctx context.Context, desktop, screen int) int {
	ctx, cancel := b.opContext(ctx)
	defer cancel()

	group, err := b.surfaces.Get(ctx, desktop, screen)
	if err != nil {
		b.log.Error("Surface group read failed", zap.Error(err))
		return NoSurfaceGroup
	}
	return group
}

func (b *Bridge) setSurfaceGroup(ctx context.Context, desktop, screen, group int) {
	ctx, cancel := b.opContext(ctx)
	defer cancel()

	if err := b.surfaces.Set(ctx, desktop, screen, group); err != nil {
		b.log.Error("Surface group write failed", zap.Error(err))
	}
}
