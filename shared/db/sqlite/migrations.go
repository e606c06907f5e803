package sqlite

import (
	"database/sql"
	"fmt"
)

// migration represents a single database migration
type migration struct {
	version int
	name    string
	up      string
}

// migrations is the ordered list of all database migrations.
// Each migration must be idempotent.
var migrations = []migration{
	{
		version: 1,
		name:    "create_image_cache_table",
		up: `
			CREATE TABLE IF NOT EXISTS image_cache (
				key TEXT PRIMARY KEY,
				data BLOB NOT NULL,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
	{
		version: 2,
		name:    "index_image_cache_created_at",
		up: `
			CREATE INDEX IF NOT EXISTS idx_image_cache_created_at
			ON image_cache(created_at DESC);
		`,
	},
}

// runMigrations executes all pending migrations
func runMigrations(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	currentVersion := 0
	err = conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if err := applyMigration(conn, m); err != nil {
			return err
		}
	}

	return nil
}

func applyMigration(conn *sql.DB, m migration) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %d: %w", m.version, err)
	}

	if _, err := tx.Exec(m.up); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to execute migration %d (%s): %w", m.version, m.name, err)
	}

	_, err = tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		m.version,
		m.name,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %d: %w", m.version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
	}
	return nil
}
