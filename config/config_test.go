package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  dsn: test.db\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "test.db", cfg.Database.DSN)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, 64, cfg.WorkerPool.Queue)
	assert.Equal(t, "strict", cfg.Classifier.StatusRule)
	assert.Equal(t, "drop", cfg.Ingest.UnknownRoomPolicy)
	assert.Equal(t, "home/rooms/+/readings", cfg.MQTT.Topic)
	assert.Equal(t, 10*time.Second, cfg.Ntfy.Timeout)
	assert.Equal(t, 3600, cfg.Push.TTL)
}

func TestLoad_KeepsExplicitValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: 8080
classifier:
  status_rule: threshold
ingest:
  unknown_room_policy: create
worker_pool:
  size: 4
ntfy:
  enabled: true
  topic: house
  timeout_seconds: 3
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "threshold", cfg.Classifier.StatusRule)
	assert.Equal(t, "create", cfg.Ingest.UnknownRoomPolicy)
	assert.Equal(t, 4, cfg.WorkerPool.Size)
	assert.True(t, cfg.Ntfy.Enabled)
	assert.Equal(t, "house", cfg.Ntfy.Topic)
	assert.Equal(t, 3*time.Second, cfg.Ntfy.Timeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
