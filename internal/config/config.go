package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dfryer1193/goblog-images/shared/db/sqlite"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	BackendSQLite  = "sqlite"
	BackendLevelDB = "leveldb"
	BackendMemory  = "memory"

	envPrefix = "IMAGES_"
)

type CacheConfig struct {
	Backend     string `yaml:"backend"`
	SQLitePath  string `yaml:"sqlite_path"`
	LevelDBPath string `yaml:"leveldb_path"`
}

type WorkerConfig struct {
	QueueSize  int           `yaml:"queue_size"`
	JobTimeout time.Duration `yaml:"job_timeout"`
}

// Config holds everything the server needs at startup. Values come from
// Default, then an optional YAML file, then IMAGES_* environment variables.
// Command line flags are applied last by the caller.
type Config struct {
	Addr            string        `yaml:"addr"`
	ContentDir      string        `yaml:"content_dir"`
	Manifest        string        `yaml:"manifest"`
	Cache           CacheConfig   `yaml:"cache"`
	Worker          WorkerConfig  `yaml:"worker"`
	MaxWidth        int           `yaml:"max_width"`
	CacheBustParam  string        `yaml:"cache_bust_param"`
	DedupeInFlight  bool          `yaml:"dedupe_in_flight"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func Default() *Config {
	return &Config{
		Addr:       ":8080",
		ContentDir: "./posts",
		Cache: CacheConfig{
			Backend:     BackendSQLite,
			SQLitePath:  sqlite.NewSQLiteConfig().Path,
			LevelDBPath: "./image-cache.leveldb",
		},
		Worker: WorkerConfig{
			QueueSize:  64,
			JobTimeout: 30 * time.Second,
		},
		MaxWidth:        4096,
		CacheBustParam:  "__frsh_c",
		LogLevel:        "info",
		ShutdownTimeout: 5 * time.Second,
	}
}

// Load builds a Config from the defaults, the YAML file at path (skipped when
// path is empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	integer := func(name string, dst *int) error {
		v, ok := lookup(envPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s %q: %w", envPrefix, name, v, err)
		}
		*dst = n
		return nil
	}
	duration := func(name string, dst *time.Duration) error {
		v, ok := lookup(envPrefix + name)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s %q: %w", envPrefix, name, v, err)
		}
		*dst = d
		return nil
	}

	str("ADDR", &c.Addr)
	str("CONTENT_DIR", &c.ContentDir)
	str("MANIFEST", &c.Manifest)
	str("CACHE_BACKEND", &c.Cache.Backend)
	str("LEVELDB_PATH", &c.Cache.LevelDBPath)
	str("CACHE_BUST_PARAM", &c.CacheBustParam)
	str("LOG_LEVEL", &c.LogLevel)
	if v, ok := lookup("SQLITE_DB_PATH"); ok {
		c.Cache.SQLitePath = v
	}
	if v, ok := lookup(envPrefix + "DEDUPE_IN_FLIGHT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sDEDUPE_IN_FLIGHT %q: %w", envPrefix, v, err)
		}
		c.DedupeInFlight = b
	}

	for _, set := range []func() error{
		func() error { return integer("QUEUE_SIZE", &c.Worker.QueueSize) },
		func() error { return integer("MAX_WIDTH", &c.MaxWidth) },
		func() error { return duration("JOB_TIMEOUT", &c.Worker.JobTimeout) },
		func() error { return duration("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout) },
	} {
		if err := set(); err != nil {
			return err
		}
	}
	return nil
}

// Validate reports the first setting the server cannot start with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must be set")
	}
	if c.ContentDir == "" && c.Manifest == "" {
		return fmt.Errorf("one of content_dir or manifest must be set")
	}

	switch c.Cache.Backend {
	case BackendSQLite:
		if c.Cache.SQLitePath == "" {
			return fmt.Errorf("cache.sqlite_path must be set for the sqlite backend")
		}
	case BackendLevelDB:
		if c.Cache.LevelDBPath == "" {
			return fmt.Errorf("cache.leveldb_path must be set for the leveldb backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown cache.backend %q", c.Cache.Backend)
	}

	if c.Worker.QueueSize <= 0 {
		return fmt.Errorf("worker.queue_size must be positive, got %d", c.Worker.QueueSize)
	}
	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker.job_timeout must be positive, got %s", c.Worker.JobTimeout)
	}
	if c.MaxWidth <= 0 {
		return fmt.Errorf("max_width must be positive, got %d", c.MaxWidth)
	}
	if c.CacheBustParam == "" {
		return fmt.Errorf("cache_bust_param must be set")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %s", c.ShutdownTimeout)
	}
	if lvl, err := zerolog.ParseLevel(c.LogLevel); err != nil || lvl == zerolog.NoLevel {
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}

// Level returns the zerolog level named by LogLevel. Call Validate first.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
