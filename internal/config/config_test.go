package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 9090
database:
  url: postgres://app:secret@db/mailroom
sync:
  chunk_size: 25
  workers: 4
  tag_mode: replace
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.Equal(t, "postgres://app:secret@db/mailroom", cfg.Database.URL)
	assert.Equal(t, 25, cfg.Sync.ChunkSize)
	assert.Equal(t, 4, cfg.Sync.Workers)
	assert.Equal(t, TagModeReplace, cfg.Sync.TagMode)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.Server.Addr())
	assert.Equal(t, 50, cfg.Sync.ChunkSize)
	assert.Equal(t, 1, cfg.Sync.Workers)
	assert.Equal(t, TagModePreserve, cfg.Sync.TagMode)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
sync:
  chunk_size: 25
`)

	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("PORT", "7070")
	t.Setenv("SYNC_CHUNK_SIZE", "10")
	t.Setenv("SYNC_WORKERS", "8")
	t.Setenv("SYNC_TAG_MODE", "replace")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Sync.ChunkSize)
	assert.Equal(t, 8, cfg.Sync.Workers)
	assert.Equal(t, TagModeReplace, cfg.Sync.TagMode)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestLoadFromEnvMissingFileStillWorks(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, 8080, cfg.Server.Port)
}
