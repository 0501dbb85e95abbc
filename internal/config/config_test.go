package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "station.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: 0.0.0.0:8080
station:
  name: relay
receptionist:
  interval: 250ms
  batch_size: 10
mongo:
  uri: ""
neighbors:
  - wss://n1.example
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, "relay", cfg.Station.Name)
	assert.Equal(t, 250*time.Millisecond, cfg.Receptionist.Interval)
	assert.Equal(t, 10, cfg.Receptionist.BatchSize)
	assert.Empty(t, cfg.Mongo.URI)
	assert.Equal(t, []string{"wss://n1.example"}, cfg.Neighbors)
	// untouched sections keep defaults
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 20, cfg.Users.Max)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: 0.0.0.0:8080\n")
	t.Setenv("STATION_SERVER_ADDR", "127.0.0.1:7000")
	t.Setenv("STATION_RECEPTIONIST_INTERVAL", "2s")
	t.Setenv("STATION_LOG_DEVELOPMENT", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Receptionist.Interval)
	assert.True(t, cfg.Log.Development)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "receptionist:\n  batch_size: 0\n"))
	assert.ErrorContains(t, err, "batch_size")

	_, err = LoadConfig(writeConfig(t, "server: [not, a, map]\n"))
	assert.Error(t, err)
}
