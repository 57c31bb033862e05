package bridge

import (
	"context"
	"fmt"
	"sync"

	"tilebridge/pkg/state"
)

// KeyedStateStore maps opaque keys to opaque values inside one namespace.
// A key that was never written reads as "".
type KeyedStateStore struct {
	ns Namespace
	kv state.KV
	mu sync.Mutex
}

// NewKeyedStateStore binds a store to the window or layout namespace of kv.
func NewKeyedStateStore(kv state.KV, ns Namespace) (*KeyedStateStore, error) {
	if ns != NamespaceWindow && ns != NamespaceLayout {
		return nil, fmt.Errorf("%w: keyed state cannot use %q", ErrUnknownNamespace, ns)
	}
	return &KeyedStateStore{
		ns: ns,
		kv: state.Namespaced(kv, string(ns)),
	}, nil
}

// Namespace returns the namespace the store is bound to.
func (s *KeyedStateStore) Namespace() Namespace { return s.ns }

// Get returns the stored value, or "" when key was never written.
func (s *KeyedStateStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, _, err := s.kv.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("get %s state %q: %w", s.ns, key, err)
	}
	return value, nil
}

// Put stores or overwrites value.
func (s *KeyedStateStore) Put(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(ctx, key, value); err != nil {
		return fmt.Errorf("put %s state %q: %w", s.ns, key, err)
	}
	return nil
}
