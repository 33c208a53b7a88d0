package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NO_COLOR", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultWatchInterval, cfg.WatchInterval)
	assert.False(t, cfg.NoColor)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("OHNO_PORT", "8080")
	t.Setenv("OHNO_HOST", "0.0.0.0")
	t.Setenv("OHNO_WATCH_INTERVAL", "2.5")
	t.Setenv("OHNO_DIR", "/proj/.ohno")
	t.Setenv("OHNO_DB_PATH", "/proj/.ohno/tasks.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 2500*time.Millisecond, cfg.WatchInterval)
	assert.Equal(t, "/proj/.ohno", cfg.Dir)
	assert.Equal(t, "/proj/.ohno/tasks.db", cfg.DBPath)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("OHNO_PORT", "70000")
	_, err := Load()
	require.Error(t, err)
}

func TestNoColorConvention(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.NoColor)

	t.Setenv("NO_COLOR", "")
	t.Setenv("OHNO_NO_COLOR", "true")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.NoColor)
}
