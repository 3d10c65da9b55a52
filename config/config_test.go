package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, "document_exchange", cfg.Bus.Exchange)
	assert.Contains(t, cfg.Ingest.AllowedTypes, ".pdf")
	assert.Equal(t, int64(50*1024*1024), cfg.Ingest.MaxFileSize)
	assert.Equal(t, "archive", cfg.Routing.DefaultDestination)
	assert.NotEmpty(t, cfg.Maintenance.TrimInterval)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Bus.Exchange, cfg.Bus.Exchange)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  port: 9000
bus:
  exchange: staging_exchange
routing:
  destinations:
    invoice: erp_inbox
  defaultDestination: cold_storage
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.App.Port)
	assert.Equal(t, "staging_exchange", cfg.Bus.Exchange)
	assert.Equal(t, "erp_inbox", cfg.Routing.Destinations["invoice"])
	assert.Equal(t, "cold_storage", cfg.Routing.DefaultDestination)
	// untouched sections keep their defaults
	assert.Equal(t, "localhost:6379", cfg.Bus.RedisAddr)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bus:\n  redisAddr: file:6379\n"), 0644))

	t.Setenv("REDIS_ADDR", "env:6379")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env:6379", cfg.Bus.RedisAddr)
	assert.Equal(t, "env:6379", cfg.Notify.RedisAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
}
