// Package state provides the backing key-value storage of the bridge with
// multiple backend support. Values are opaque strings and are returned
// byte-for-byte.
package state

import (
	"context"
	"time"
)

// KV is the interface for key-value storage backends.
type KV interface {
	// Get retrieves a value. ok is false when the key was never set.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores or overwrites a value.
	Set(ctx context.Context, key string, value string) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns all keys in the store, in no particular order.
	Keys(ctx context.Context) ([]string, error)

	// Exists checks if a key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// Clear removes all data from the store.
	Clear(ctx context.Context) error

	// GetAll returns a copy of all data.
	GetAll(ctx context.Context) (map[string]string, error)

	// Close releases the backend. File backends flush pending writes.
	Close() error
}

// BackendType represents the storage backend type.
type BackendType string

const (
	BackendMemory BackendType = "memory"
	BackendFile   BackendType = "file"
	BackendRedis  BackendType = "redis"
	BackendSQLite BackendType = "sqlite"
)

// Config configures the state store.
type Config struct {
	Backend BackendType

	// File backend
	FilePath     string
	AutoSave     bool
	SaveInterval time.Duration

	// Redis backend
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// SQLite backend
	SQLitePath string
}
