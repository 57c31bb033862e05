package state

import (
	"context"
	"strings"
)

// NamespaceSeparator joins a namespace and a key in the parent store.
const NamespaceSeparator = ":"

// Namespace is a view over a parent KV where every key is prefixed with
// "<name>:". Keys from other namespaces are invisible through it and Clear
// only touches its own keys.
type Namespace struct {
	parent KV
	name   string
	prefix string
}

// Namespaced returns a view of kv restricted to the given namespace.
func Namespaced(kv KV, name string) *Namespace {
	return &Namespace{
		parent: kv,
		name:   name,
		prefix: name + NamespaceSeparator,
	}
}

// Name returns the namespace name.
func (n *Namespace) Name() string { return n.name }

func (n *Namespace) Get(ctx context.Context, key string) (string, bool, error) {
	return n.parent.Get(ctx, n.prefix+key)
}

func (n *Namespace) Set(ctx context.Context, key string, value string) error {
	return n.parent.Set(ctx, n.prefix+key, value)
}

func (n *Namespace) Delete(ctx context.Context, key string) error {
	return n.parent.Delete(ctx, n.prefix+key)
}

func (n *Namespace) Exists(ctx context.Context, key string) (bool, error) {
	return n.parent.Exists(ctx, n.prefix+key)
}

func (n *Namespace) Keys(ctx context.Context) ([]string, error) {
	all, err := n.parent.Keys(ctx)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, k := range all {
		if rest, ok := strings.CutPrefix(k, n.prefix); ok {
			keys = append(keys, rest)
		}
	}
	return keys, nil
}

func (n *Namespace) Clear(ctx context.Context) error {
	keys, err := n.Keys(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := n.parent.Delete(ctx, n.prefix+k); err != nil {
			return err
		}
	}
	return nil
}

func (n *Namespace) GetAll(ctx context.Context) (map[string]string, error) {
	all, err := n.parent.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	result := make(map[string]string)
	for k, v := range all {
		if rest, ok := strings.CutPrefix(k, n.prefix); ok {
			result[rest] = v
		}
	}
	return result, nil
}

// Close is a no-op; the parent store owns the backend.
func (n *Namespace) Close() error { return nil }
