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
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
App:
  Addr: ":9090"
  RateLimit: 120
  RateWindow: 30s
  RequestTimeout: 15s
  LogLevel: debug
Storage:
  Backend: memory
  Namespace: testing
Channels:
  SendTimeout: 3s
  TokenTTLMargin: 90s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.App.Addr)
	assert.Equal(t, 120, cfg.App.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.App.RateWindow)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, "testing", cfg.Storage.Namespace)
	assert.Equal(t, 3*time.Second, cfg.Channels.SendTimeout)
	assert.Equal(t, 90*time.Second, cfg.Channels.TokenTTLMargin)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
App:
  RateLimit: 0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddress, cfg.App.Addr)
	assert.Equal(t, DefaultRateLimit, cfg.App.RateLimit)
	assert.Equal(t, DefaultRateWindow, cfg.App.RateWindow)
	assert.Equal(t, DefaultLogLevel, cfg.App.LogLevel)
	assert.Equal(t, DefaultStorageBackend, cfg.Storage.Backend)
	assert.Equal(t, DefaultRedisAddr, cfg.Storage.RedisAddr)
	assert.Equal(t, DefaultNamespace, cfg.Storage.Namespace)
	assert.Equal(t, DefaultSendTimeout, cfg.Channels.SendTimeout)
	assert.Equal(t, DefaultTokenTTLMargin, cfg.Channels.TokenTTLMargin)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
App:
  Addr: ":8080"
Storage:
  Backend: redis
  RedisAddr: "10.0.0.1:6379"
`)

	t.Setenv("PUSHER_ADDR", ":7070")
	t.Setenv("PUSHER_REDIS_ADDR", "10.0.0.2:6380")
	t.Setenv("PUSHER_LOG_LEVEL", "warn")
	t.Setenv("PUSHER_STORAGE_BACKEND", "memory")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.App.Addr)
	assert.Equal(t, "10.0.0.2:6380", cfg.Storage.RedisAddr)
	assert.Equal(t, "warn", cfg.App.LogLevel)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, `
Storage:
  Backend: carrier_pigeon
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier_pigeon")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "App: [not: a: mapping")
	_, err := Load(path)
	assert.Error(t, err)
}
