package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/lib-x/entsqlite"
	"go.uber.org/zap"

	"tilebridge/pkg/logger"
)

const (
	sqliteTable    = "bridge_state"
	sqliteKeyCol   = "state_key"
	sqliteValueCol = "state_value"

	sqliteSchema = "CREATE TABLE IF NOT EXISTS " + sqliteTable + " (" +
		sqliteKeyCol + " TEXT NOT NULL PRIMARY KEY, " +
		sqliteValueCol + " TEXT NOT NULL)"

	sqliteDSN = "file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)"
)

// SQLiteStore keeps state in a single SQLite table through the ent SQL
// builder. One connection is used so writes are serialized.
type SQLiteStore struct {
	log  *logger.Logger
	drv  *entsql.Driver
	path string
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(ctx context.Context, log *logger.Logger, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating sqlite directory: %w", err)
	}

	drv, err := entsql.Open(dialect.SQLite, fmt.Sprintf(sqliteDSN, path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite state: %w", err)
	}
	drv.DB().SetMaxOpenConns(1)

	s := &SQLiteStore{log: log, drv: drv, path: path}
	if err := s.ensureSchema(ctx); err != nil {
		_ = drv.Close()
		return nil, err
	}

	log.Info("Opened SQLite state", zap.String("path", path))
	return s, nil
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	if err := s.drv.Exec(ctx, sqliteSchema, []any{}, nil); err != nil {
		return fmt.Errorf("ensure sqlite schema: %w", err)
	}
	return nil
}

// Get retrieves a value from the store.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	t := entsql.Table(sqliteTable)
	query, args := builder().Select(t.C(sqliteValueCol)).
		From(t).
		Where(entsql.EQ(t.C(sqliteKeyCol), key)).
		Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return "", false, fmt.Errorf("sqlite get: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return "", false, rows.Err()
	}
	var value string
	if err := rows.Scan(&value); err != nil {
		return "", false, fmt.Errorf("sqlite scan: %w", err)
	}
	return value, true, nil
}

// Set upserts a value.
func (s *SQLiteStore) Set(ctx context.Context, key string, value string) error {
	query, args := builder().Insert(sqliteTable).
		Columns(sqliteKeyCol, sqliteValueCol).
		Values(key, value).
		OnConflict(
			entsql.ConflictColumns(sqliteKeyCol),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("sqlite set: %w", err)
	}
	return nil
}

// Delete removes a value.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	query, args := builder().Delete(sqliteTable).
		Where(entsql.EQ(sqliteKeyCol, key)).
		Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("sqlite delete: %w", err)
	}
	return nil
}

// Keys returns all keys in the store.
func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	return keys, nil
}

// Exists checks if a key exists.
func (s *SQLiteStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

// Clear removes all rows.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	query, args := builder().Delete(sqliteTable).Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("sqlite clear: %w", err)
	}
	return nil
}

// GetAll returns a copy of all data.
func (s *SQLiteStore) GetAll(ctx context.Context) (map[string]string, error) {
	t := entsql.Table(sqliteTable)
	query, args := builder().Select(t.C(sqliteKeyCol), t.C(sqliteValueCol)).
		From(t).
		Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("sqlite list: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("sqlite scan: %w", err)
		}
		result[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite rows: %w", err)
	}
	return result, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.drv.Close()
}
