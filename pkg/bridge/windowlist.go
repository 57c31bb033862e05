package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"tilebridge/pkg/state"
)

const windowListKey = "list"

// WindowListRegistry holds the single serialized list of known windows.
// Writes replace the whole value; the registry never inspects it.
type WindowListRegistry struct {
	kv state.KV
	mu sync.Mutex
}

// NewWindowListRegistry binds a registry to the windowlist namespace of kv.
func NewWindowListRegistry(kv state.KV) *WindowListRegistry {
	return &WindowListRegistry{kv: state.Namespaced(kv, string(NamespaceWindowList))}
}

// Get returns the stored list, or "" if none was written.
func (r *WindowListRegistry) Get(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, _, err := r.kv.Get(ctx, windowListKey)
	if err != nil {
		return "", fmt.Errorf("get window list: %w", err)
	}
	return list, nil
}

// Put replaces the list.
func (r *WindowListRegistry) Put(ctx context.Context, list string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.kv.Set(ctx, windowListKey, list); err != nil {
		return fmt.Errorf("put window list: %w", err)
	}
	return nil
}

// EncodeWindowList serializes window ids the way scripts store them: a JSON
// array of strings.
func EncodeWindowList(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeWindowList parses a list written by EncodeWindowList. An empty
// string decodes to an empty list.
func DecodeWindowList(list string) ([]string, error) {
	if list == "" {
		return []string{}, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(list), &ids); err != nil {
		return nil, fmt.Errorf("malformed window list: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
