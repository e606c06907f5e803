package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dfryer1193/goblog-images/internal/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFlags(t *testing.T) {
	var got *config.Config
	cmd := &cobra.Command{
		Use: "test",
		RunE: func(cmd *cobra.Command, args []string) error {
			got = config.Default()
			return applyFlags(cmd.Flags(), got)
		},
	}
	cmd.Flags().String("log-level", "", "")
	addStoreFlags(cmd.Flags())
	addServeFlags(cmd.Flags())

	cmd.SetArgs([]string{
		"--addr", ":7000",
		"--cache-backend", "memory",
		"--queue-size", "3",
		"--job-timeout", "2s",
		"--dedupe-in-flight",
		"--log-level", "warn",
	})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, ":7000", got.Addr)
	assert.Equal(t, config.BackendMemory, got.Cache.Backend)
	assert.Equal(t, 3, got.Worker.QueueSize)
	assert.Equal(t, 2*time.Second, got.Worker.JobTimeout)
	assert.True(t, got.DedupeInFlight)
	assert.Equal(t, "warn", got.LogLevel)

	// Flags left alone keep the configured values.
	assert.Equal(t, config.Default().MaxWidth, got.MaxWidth)
	assert.Equal(t, config.Default().CacheBustParam, got.CacheBustParam)
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{config.BackendSQLite, config.BackendLevelDB, config.BackendMemory} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.Cache.Backend = backend
			cfg.Cache.SQLitePath = filepath.Join(dir, "cache.db")
			cfg.Cache.LevelDBPath = filepath.Join(dir, "cache.leveldb")

			kv, err := openStore(cfg)
			require.NoError(t, err)

			ctx := context.Background()
			require.NoError(t, kv.Set(ctx, "v1-images/k.png", []byte("data")))
			data, err := kv.Get(ctx, "v1-images/k.png")
			require.NoError(t, err)
			assert.Equal(t, []byte("data"), data)
			assert.NoError(t, kv.Close())
		})
	}

	cfg := config.Default()
	cfg.Cache.Backend = "tape"
	_, err := openStore(cfg)
	assert.Error(t, err)
}

func TestBuildRegistry(t *testing.T) {
	dir := t.TempDir()
	posts := filepath.Join(dir, "posts")
	require.NoError(t, os.MkdirAll(posts, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(posts, "hello.md"), []byte("![a](a.png)\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(posts, "a.png"), []byte("not really"), 0o644))
	manifest := filepath.Join(dir, "images.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte("images:\n  hello/a.png: other.png\n  extra: b.png\n"), 0o644))

	cfg := config.Default()
	cfg.ContentDir = posts
	cfg.Manifest = manifest

	index, err := buildRegistry(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, index.Len())

	p, ok := index.Lookup("hello/a.png")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "other.png"), p, "manifest entries win")

	cfg.ContentDir = filepath.Join(dir, "nope")
	_, err = buildRegistry(cfg)
	assert.Error(t, err)
}

func TestPurgeCmd(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cache.db")

	cfg := config.Default()
	cfg.Cache.SQLitePath = dbPath
	kv, err := openStore(cfg)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, "v0-images/old.png", []byte("old")))
	require.NoError(t, kv.Set(ctx, "v1-images/new.png", []byte("new")))
	require.NoError(t, kv.Close())

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"purge", "--sqlite-path", dbPath, "--log-level", "error"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "purged 1 entries\n", out.String())

	kv, err = openStore(cfg)
	require.NoError(t, err)
	defer kv.Close()
	_, err = kv.Get(ctx, "v0-images/old.png")
	assert.Error(t, err)
	data, err := kv.Get(ctx, "v1-images/new.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data)
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.ContentDir = t.TempDir()
	cfg.Cache.Backend = config.BackendMemory

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}
