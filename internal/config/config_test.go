package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, home, content string) {
	t.Helper()
	dir := filepath.Join(home, DefaultConfigDir)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(content), 0o600))
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	cfg, err := newLoaderAt(home).Load()
	require.NoError(t, err)

	assert.Equal(t, "docker.io", cfg.Registry)
	assert.Equal(t, "table", cfg.Output)
	assert.Equal(t, filepath.Join(home, DefaultCacheDir), cfg.Cache.Dir)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TagListTTL)
	assert.Equal(t, 4, cfg.Fetch.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.False(t, cfg.Fetch.PlainHTTP)
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	writeConfig(t, home, `
registry: ghcr.io
output: json
cache:
  dir: ~/custom-cache
  tag_list_ttl: 90s
fetch:
  concurrency: 12
  plain_http: true
auth:
  ghcr.io:
    username: alice
    password: s3cret
`)

	cfg, err := newLoaderAt(home).Load()
	require.NoError(t, err)

	assert.Equal(t, "ghcr.io", cfg.Registry)
	assert.Equal(t, "json", cfg.Output)
	assert.Equal(t, filepath.Join(home, "custom-cache"), cfg.Cache.Dir)
	assert.Equal(t, 90*time.Second, cfg.Cache.TagListTTL)
	assert.Equal(t, 12, cfg.Fetch.Concurrency)
	assert.True(t, cfg.Fetch.PlainHTTP)

	auth, ok := cfg.Auth["ghcr.io"]
	require.True(t, ok)
	assert.Equal(t, "alice", auth.Username)
	assert.Equal(t, "s3cret", auth.Password)
}

func TestLoadInvalid(t *testing.T) {
	t.Parallel()

	t.Run("bad output", func(t *testing.T) {
		t.Parallel()
		home := t.TempDir()
		writeConfig(t, home, "output: yaml\n")
		_, err := newLoaderAt(home).Load()
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("concurrency out of range", func(t *testing.T) {
		t.Parallel()
		home := t.TempDir()
		writeConfig(t, home, "fetch:\n  concurrency: 500\n")
		_, err := newLoaderAt(home).Load()
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestPath(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	l := newLoaderAt(home)
	assert.Equal(t, filepath.Join(home, DefaultConfigDir, DefaultConfigFile), l.Path())
}
