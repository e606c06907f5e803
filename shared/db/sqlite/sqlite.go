package sqlite

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/dfryer1193/goblog-images/shared/db"
	_ "modernc.org/sqlite"
)

const (
	// defaultPath is used when neither the config nor SQLITE_DB_PATH name a file
	defaultPath = "./image-cache.db"
)

type SQLiteConfig struct {
	Path string
}

// NewSQLiteConfig reads the database path from SQLITE_DB_PATH, falling back to
// ./image-cache.db.
func NewSQLiteConfig() *SQLiteConfig {
	path := os.Getenv("SQLITE_DB_PATH")
	if path == "" {
		path = defaultPath
	}

	return &SQLiteConfig{
		Path: path,
	}
}

// SQLiteDB implements the db.Database interface for SQLite
type SQLiteDB struct {
	dbPath string
	db     *sql.DB
}

var _ db.Database = (*SQLiteDB)(nil)

// NewSQLiteDB creates a new, unconnected SQLite database instance.
func NewSQLiteDB(cfg *SQLiteConfig) *SQLiteDB {
	return &SQLiteDB{
		dbPath: cfg.Path,
	}
}

// Connect opens the database file, applies pragmas and runs pending migrations.
func (s *SQLiteDB) Connect() error {
	if s.db != nil {
		return fmt.Errorf("database already connected")
	}

	conn, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",   // readers don't block the single writer
		"PRAGMA synchronous=NORMAL", // WAL makes NORMAL durable enough for a cache
		"PRAGMA busy_timeout=5000",  // wait up to 5 seconds if database is locked
		"PRAGMA cache_size=-64000",  // 64MB page cache (negative means KB)
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	s.db = conn

	if err := runMigrations(conn); err != nil {
		conn.Close()
		s.db = nil
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil
	return err
}

// DB returns the underlying *sql.DB instance
func (s *SQLiteDB) DB() *sql.DB {
	return s.db
}

// Path returns the file the database was configured with.
func (s *SQLiteDB) Path() string {
	return s.dbPath
}
