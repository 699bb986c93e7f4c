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
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 12, cfg.TokenLength)
	assert.Equal(t, 12*time.Hour, cfg.SweepInterval)
	assert.Equal(t, 24*time.Hour, cfg.IdleThreshold)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
rooms:
  token_length: 16
  sweep_interval: 1h
  idle_threshold: 2h
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 16, cfg.TokenLength)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, 2*time.Hour, cfg.IdleThreshold)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
`), 0o644))

	t.Setenv("PORT", "7070")
	t.Setenv("IDLE_THRESHOLD", "36h")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, 36*time.Hour, cfg.IdleThreshold)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rooms:
  sweep_interval: soon
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
