package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dfryer1193/goblog-images/blog/domain"
	"github.com/dfryer1193/goblog-images/shared/db"
)

var _ KV = (*SQLiteStore)(nil)

// SQLiteStore implements KV on the image_cache table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store over an already migrated database.
func NewSQLiteStore(sqlDB *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db: sqlDB,
	}
}

const getEntryQuery = `
	SELECT data
	FROM image_cache
	WHERE key = ?
`

// Get retrieves a cached blob by key
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("cache key cannot be empty")
	}

	var data []byte
	err := db.GetExecutor(ctx, s.db).QueryRowContext(ctx, getEntryQuery, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	return data, nil
}

// Entries are never mutated; a concurrent writer that lost the race wrote the
// same bytes anyway.
const insertEntryQuery = `
	INSERT INTO image_cache (key, data, created_at)
	VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(key) DO NOTHING
`

// Set stores a blob under key unless the key already exists
func (s *SQLiteStore) Set(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return fmt.Errorf("cache key cannot be empty")
	}

	_, err := db.GetExecutor(ctx, s.db).ExecContext(ctx, insertEntryQuery, key, data)
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

const listPrefixQuery = `
	SELECT key FROM image_cache WHERE substr(key, 1, ?) = ?
`

const deleteEntryQuery = `
	DELETE FROM image_cache WHERE key = ?
`

// DeletePrefix enumerates and deletes every entry under prefix in one transaction
func (s *SQLiteStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, fmt.Errorf("prefix cannot be empty")
	}

	deleted := 0
	err := db.RunInTransaction(ctx, s.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, s.db)

		keys, err := listKeys(txCtx, executor, prefix)
		if err != nil {
			return err
		}

		for _, key := range keys {
			if _, err := executor.ExecContext(txCtx, deleteEntryQuery, key); err != nil {
				return fmt.Errorf("failed to delete cache entry %s: %w", key, err)
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func listKeys(ctx context.Context, executor db.Executor, prefix string) ([]string, error) {
	rows, err := executor.QueryContext(ctx, listPrefixQuery, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan cache key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cache entries: %w", err)
	}
	return keys, nil
}

// Close is a no-op; the connection belongs to the db.Database that opened it.
func (s *SQLiteStore) Close() error {
	return nil
}
