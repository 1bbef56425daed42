package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeTempConfig(t, "substrate.yaml", `
eventBus:
  queueSize: 64
  maxSyncDepth: 4
command:
  maxHistoryDepth: 25
  publishMode: async
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.EventBus.QueueSize)
	assert.Equal(t, 4, cfg.EventBus.MaxSyncDepth)
	assert.Equal(t, 25, cfg.Command.MaxHistoryDepth)
	assert.Equal(t, "async", cfg.Command.PublishMode)

	// Fields absent from the file pick up defaults.
	assert.Equal(t, 128, cfg.EventBus.HistoryLimit)
	assert.Equal(t, time.Hour, cfg.EventBus.HistoryTTL)
}

func TestLoadTOML(t *testing.T) {
	path := writeTempConfig(t, "substrate.toml", `
[eventBus]
queueSize = 32

[command]
maxHistoryDepth = 10
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.EventBus.QueueSize)
	assert.Equal(t, 10, cfg.Command.MaxHistoryDepth)
	assert.Equal(t, "sync", cfg.Command.PublishMode)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := writeTempConfig(t, "substrate.ini", "queueSize=64")

	_, err := Load(path, "")
	require.ErrorIs(t, err, ErrUnsupportedConfigFormat)
}

func TestEnvironmentOverlay(t *testing.T) {
	path := writeTempConfig(t, "substrate.yaml", `
eventBus:
  queueSize: 64
`)

	t.Setenv("SUBSTRATE_QUEUE_SIZE", "512")
	t.Setenv("SUBSTRATE_PUBLISH_MODE", "async")

	cfg, err := Load(path, "substrate")
	require.NoError(t, err)

	// Environment wins over the file.
	assert.Equal(t, 512, cfg.EventBus.QueueSize)
	assert.Equal(t, "async", cfg.Command.PublishMode)
}

func TestEnvironmentOverlayWithoutPrefix(t *testing.T) {
	t.Setenv("MAX_HISTORY_DEPTH", "7")

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Command.MaxHistoryDepth)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)

	assert.Equal(t, 256, cfg.EventBus.QueueSize)
	assert.Equal(t, 8, cfg.EventBus.MaxSyncDepth)
	assert.Equal(t, 100, cfg.Command.MaxHistoryDepth)
	assert.Equal(t, "sync", cfg.Command.PublishMode)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeTempConfig(t, "substrate.yaml", `
command:
  publishMode: broadcast
`)

	_, err := Load(path, "")
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "")
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 256, cfg.EventBus.QueueSize)
	assert.Equal(t, "@every 10m", cfg.EventBus.RetentionSchedule)
	assert.Equal(t, "sync", cfg.Command.PublishMode)
}
