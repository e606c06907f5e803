package main

import (
	"fmt"

	"github.com/dfryer1193/goblog-images/blog/application"
	"github.com/dfryer1193/goblog-images/blog/persistence"
	"github.com/dfryer1193/goblog-images/internal/config"
	"github.com/dfryer1193/goblog-images/shared/db"
	"github.com/dfryer1193/goblog-images/shared/db/sqlite"
	"github.com/rs/zerolog/log"
)

// sqliteKV ties a SQLiteStore to the connection it runs on so closing the
// store closes the database.
type sqliteKV struct {
	*persistence.SQLiteStore
	database db.Database
}

func (s sqliteKV) Close() error {
	return s.database.Close()
}

func openStore(cfg *config.Config) (persistence.KV, error) {
	switch cfg.Cache.Backend {
	case config.BackendSQLite:
		database := sqlite.NewSQLiteDB(&sqlite.SQLiteConfig{Path: cfg.Cache.SQLitePath})
		if err := database.Connect(); err != nil {
			return nil, fmt.Errorf("failed to open sqlite cache: %w", err)
		}
		log.Info().Str("path", database.Path()).Msg("Using sqlite image cache")
		return sqliteKV{SQLiteStore: persistence.NewSQLiteStore(database.DB()), database: database}, nil
	case config.BackendLevelDB:
		store, err := persistence.OpenLevelDBStore(cfg.Cache.LevelDBPath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.Cache.LevelDBPath).Msg("Using leveldb image cache")
		return store, nil
	case config.BackendMemory:
		log.Warn().Msg("Using in-memory image cache; resized images are lost on restart")
		return persistence.NewMemoryStore(0), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// buildRegistry indexes the posts under ContentDir and then the manifest, so
// manifest entries win on conflicting ids.
func buildRegistry(cfg *config.Config) (*application.ImageIndex, error) {
	index := application.NewImageIndex()

	if cfg.ContentDir != "" {
		n, err := index.ScanPosts(cfg.ContentDir, application.NewImageReferenceExtractor())
		if err != nil {
			return nil, err
		}
		log.Info().Str("dir", cfg.ContentDir).Int("images", n).Msg("Indexed post images")
	}

	if cfg.Manifest != "" {
		n, err := index.LoadManifest(cfg.Manifest)
		if err != nil {
			return nil, err
		}
		log.Info().Str("manifest", cfg.Manifest).Int("images", n).Msg("Loaded image manifest")
	}

	return index, nil
}
