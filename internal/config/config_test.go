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
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "queue.db", cfg.DBPath)
	assert.Equal(t, 3, cfg.Worker.Count)
	assert.Equal(t, time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.Worker.ReapThreshold)
	assert.Equal(t, 8080, cfg.Dashboard.Port)
	assert.False(t, cfg.Verbose)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	content := `
db_path: /var/lib/queuectl/queue.db
worker:
  count: 8
  poll_interval: 250ms
dashboard:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "queuectl.yaml"), []byte(content), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/queuectl/queue.db", cfg.DBPath)
	assert.Equal(t, 8, cfg.Worker.Count)
	assert.Equal(t, 250*time.Millisecond, cfg.Worker.PollInterval)
	assert.Equal(t, 9090, cfg.Dashboard.Port)
	// Unset keys keep their defaults.
	assert.Equal(t, 10*time.Minute, cfg.Worker.ReapThreshold)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("QUEUECTL_DB_PATH", "/tmp/env.db")
	t.Setenv("QUEUECTL_WORKER_COUNT", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/env.db", cfg.DBPath)
	assert.Equal(t, 5, cfg.Worker.Count)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("zero workers", func(t *testing.T) {
		t.Setenv("QUEUECTL_WORKER_COUNT", "0")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "worker.count")
	})

	t.Run("port out of range", func(t *testing.T) {
		t.Setenv("QUEUECTL_DASHBOARD_PORT", "70000")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dashboard.port")
	})
}
