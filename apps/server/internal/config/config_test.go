package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Store.Mode)
	assert.Equal(t, "memory", cfg.LockMode)
	assert.Equal(t, 5*time.Second, cfg.LockTTL)
	assert.Equal(t, 4096, cfg.CacheSize)
	assert.Equal(t, 0.2, cfg.Exploration)
	assert.Equal(t, ":8080", cfg.ListenAddr)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORE_MODE", "sqlite")
	t.Setenv("LOCK_MODE", "Redis")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("CACHE_SIZE", "not-a-number")
	t.Setenv("RL_EXPLORATION", "0.05")
	t.Setenv("SIGNAL_TIMEOUT", "-1s")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Mode)
	assert.Equal(t, "redis", cfg.LockMode)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.Equal(t, 4096, cfg.CacheSize, "invalid values fall back")
	assert.Equal(t, 0.05, cfg.Exploration)
	assert.Equal(t, 200*time.Millisecond, cfg.SignalTimeout)
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LISTEN_ADDR=:9999\nPERSONA_ID=shark\n"), 0o600))
	t.Setenv("PERSONA_ID", "owl")
	t.Cleanup(func() { os.Unsetenv("LISTEN_ADDR") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "owl", cfg.PersonaID)
}

func TestValidateRejectsBadModes(t *testing.T) {
	t.Setenv("CACHE_MODE", "disk")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)

	t.Setenv("CACHE_MODE", "memory")
	t.Setenv("RL_EXPLORATION", "1.5")
	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
