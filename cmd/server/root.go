package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dfryer1193/goblog-images/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "server",
		Short:         "Serve resized blog images",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().String("config", "", "path to a YAML config file")
	root.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")

	root.AddCommand(newServeCmd(), newPurgeCmd())
	return root
}

// loadConfig resolves the config file, the environment and the command's
// flags into a validated Config and configures logging from it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd.Flags(), cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogging(cfg)
	return cfg, nil
}

// applyFlags copies every flag the user set explicitly onto cfg.
func applyFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	var err error
	visit := func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "log-level":
			cfg.LogLevel = f.Value.String()
		case "addr":
			cfg.Addr = f.Value.String()
		case "content-dir":
			cfg.ContentDir = f.Value.String()
		case "manifest":
			cfg.Manifest = f.Value.String()
		case "cache-backend":
			cfg.Cache.Backend = f.Value.String()
		case "sqlite-path":
			cfg.Cache.SQLitePath = f.Value.String()
		case "leveldb-path":
			cfg.Cache.LevelDBPath = f.Value.String()
		case "cache-bust-param":
			cfg.CacheBustParam = f.Value.String()
		case "queue-size":
			cfg.Worker.QueueSize, err = flags.GetInt(f.Name)
		case "max-width":
			cfg.MaxWidth, err = flags.GetInt(f.Name)
		case "job-timeout":
			cfg.Worker.JobTimeout, err = flags.GetDuration(f.Name)
		case "shutdown-timeout":
			cfg.ShutdownTimeout, err = flags.GetDuration(f.Name)
		case "dedupe-in-flight":
			cfg.DedupeInFlight, err = flags.GetBool(f.Name)
		}
	}
	flags.Visit(visit)
	return err
}

// addStoreFlags registers the flags every command that opens the cache needs.
func addStoreFlags(flags *pflag.FlagSet) {
	flags.String("cache-backend", "", "cache backend: sqlite, leveldb or memory")
	flags.String("sqlite-path", "", "SQLite cache database file")
	flags.String("leveldb-path", "", "LevelDB cache directory")
}

func addServeFlags(flags *pflag.FlagSet) {
	flags.String("addr", "", "listen address")
	flags.String("content-dir", "", "directory of markdown posts to index images from")
	flags.String("manifest", "", "YAML manifest mapping image ids to files")
	flags.String("cache-bust-param", "", "query parameter that marks a URL as immutable")
	flags.Int("queue-size", 0, "maximum number of queued resize jobs")
	flags.Int("max-width", 0, "largest width a client may request")
	flags.Duration("job-timeout", time.Duration(0), "deadline for a resize job, counted from enqueue")
	flags.Duration("shutdown-timeout", time.Duration(0), "grace period for in-flight requests on shutdown")
	flags.Bool("dedupe-in-flight", false, "collapse concurrent misses for the same image and width")
}

func setupLogging(cfg *config.Config) {
	zerolog.SetGlobalLevel(cfg.Level())
	if fi, err := os.Stderr.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
