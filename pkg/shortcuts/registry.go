// Package shortcuts is the host-side shortcut subsystem. Scripts register
// named actions with a default key binding; the host triggers them.
package shortcuts

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// ErrNotFound is returned when triggering or removing an unknown action.
var ErrNotFound = errors.New("shortcut not found")

// Handler runs when a shortcut is triggered.
type Handler func(ctx context.Context) error

// Action is a registered shortcut.
type Action struct {
	// ID is the unique, normalized shortcut name.
	ID string
	// Description is shown to the user next to the binding.
	Description string
	// DefaultKeybinding is the suggested key sequence, e.g. "Meta+J".
	DefaultKeybinding string
	// Handler may be nil for actions that only reserve a binding.
	Handler Handler
}

// Registry manages shortcut registration and lookup.
type Registry struct {
	actions map[string]*Action
	mu      sync.RWMutex
}

// NewRegistry creates a new shortcut registry.
func NewRegistry() *Registry {
	return &Registry{
		actions: make(map[string]*Action),
	}
}

// NormalizeID trims and lower-cases a shortcut id.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Register registers an action. Registering an existing id replaces it,
// since scripts re-register all their shortcuts every time they load.
func (r *Registry) Register(action *Action) error {
	if action == nil {
		return fmt.Errorf("action cannot be nil")
	}

	id := NormalizeID(action.ID)
	if id == "" {
		return fmt.Errorf("shortcut id cannot be empty")
	}

	stored := *action
	stored.ID = id

	r.mu.Lock()
	r.actions[id] = &stored
	r.mu.Unlock()
	return nil
}

// Unregister removes an action.
func (r *Registry) Unregister(id string) error {
	id = NormalizeID(id)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.actions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.actions, id)
	return nil
}

// Get retrieves an action by id.
func (r *Registry) Get(id string) (*Action, bool) {
	id = NormalizeID(id)

	r.mu.RLock()
	defer r.mu.RUnlock()

	action, ok := r.actions[id]
	if !ok {
		return nil, false
	}
	cp := *action
	return &cp, true
}

// List returns all registered actions sorted by id.
func (r *Registry) List() []*Action {
	r.mu.RLock()
	actions := make([]*Action, 0, len(r.actions))
	for _, a := range r.actions {
		cp := *a
		actions = append(actions, &cp)
	}
	r.mu.RUnlock()

	slices.SortFunc(actions, func(a, b *Action) int {
		return strings.Compare(a.ID, b.ID)
	})
	return actions
}

// Trigger runs the handler of an action. The registry lock is not held
// while the handler runs, so handlers may re-register shortcuts.
func (r *Registry) Trigger(ctx context.Context, id string) error {
	action, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, NormalizeID(id))
	}
	if action.Handler == nil {
		return nil
	}
	if err := action.Handler(ctx); err != nil {
		return fmt.Errorf("shortcut %s: %w", action.ID, err)
	}
	return nil
}
