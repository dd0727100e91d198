package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: shopfront
cache:
  version: 3
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "shopfront", cfg.Push.DefaultTitle)
	assert.Equal(t, "New notification", cfg.Push.DefaultBody)
	assert.Equal(t, "/admin", cfg.Push.DefaultURL)
	assert.Equal(t, "shopfront-v3", cfg.Cache.Name())
	assert.Equal(t, "/api/", cfg.Cache.APIPrefix)
	assert.Equal(t, []int{200, 100, 200}, cfg.Push.Display.Vibrate)
	assert.True(t, cfg.Push.Display.RequireInteraction)
	assert.True(t, cfg.Push.Display.Renotify)
	assert.Equal(t, 1000, cfg.Diagnostics.StepDelay)
	assert.Equal(t, 2000, cfg.Diagnostics.LocalTestDelay)

	for _, name := range knownWorkers {
		w, ok := cfg.Workers[name]
		assert.True(t, ok, name)
		assert.True(t, w.Enabled, name)
		assert.Equal(t, 30000, w.Timeout, name)
	}
}

func TestLoadFromFile_MissingVAPIDKeyIsNotAnError(t *testing.T) {
	t.Setenv("VAPID_PUBLIC_KEY", "")
	path := writeConfig(t, `
app:
  name: shopfront
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Push.VAPIDPublicKey)
}

func TestLoadFromFile_EnvOverrides(t *testing.T) {
	t.Setenv("VAPID_PUBLIC_KEY", "BPublicKeyFromEnv")
	t.Setenv("CACHE_ADMIN", "/dashboard")
	path := writeConfig(t, `
cache:
  admin_prefix: ${CACHE_ADMIN}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "BPublicKeyFromEnv", cfg.Push.VAPIDPublicKey)
	assert.Equal(t, "/dashboard", cfg.Cache.AdminPrefix)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown cache backend", body: "cache:\n  backend: disk\n"},
		{name: "redis backend without address", body: "cache:\n  backend: redis\n"},
		{name: "bad permission policy", body: "agent:\n  permission: maybe\n"},
		{name: "kafka without brokers", body: "kafka:\n  enabled: true\n"},
		{name: "tracing without endpoint", body: "observability:\n  tracing_enabled: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestWorkerConfigHelpers(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"push": {Enabled: false, Timeout: 500},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "push"))
	assert.True(t, IsWorkerEnabled(cfg, "fetch"))
	assert.Equal(t, 500, GetWorkerConfig(cfg, "push").Timeout)
	assert.Equal(t, 30000, GetWorkerConfig(cfg, "fetch").Timeout)
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}

func TestValidateServer(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, ValidateServer(cfg))

	cfg.Database.Postgres = PostgresConfig{Host: "db", Database: "shop", User: "shop"}
	assert.Error(t, ValidateServer(cfg))

	cfg.Push.VAPIDPublicKey = "pub"
	cfg.Push.VAPIDPrivateKey = "priv"
	assert.NoError(t, ValidateServer(cfg))
}
