package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":3001", cfg.Server.Address)
	assert.Equal(t, []string{"Geral", "Dúvidas", "Projetos"}, cfg.Rooms.Names)
	assert.Equal(t, []string{"Geral"}, cfg.Rooms.DefaultAllowed)
	assert.Equal(t, 50, cfg.Rooms.HistoryWindow)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":3001", cfg.Server.Address)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  address: ":9000"
rooms:
  names: ["Sala"]
  default_allowed: ["Sala"]
  history_window: 10
storage:
  backend: memory
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, []string{"Sala"}, cfg.Rooms.Names)
	assert.Equal(t, 10, cfg.Rooms.HistoryWindow)
	// Untouched sections keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Signal.PingInterval)
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
rooms:
  names: ["Geral", "Geral"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty address", func(c *Config) { c.Server.Address = "" }},
		{"pong not above ping", func(c *Config) { c.Signal.PongTimeout = c.Signal.PingInterval }},
		{"no rooms", func(c *Config) { c.Rooms.Names = nil }},
		{"default allowed unknown room", func(c *Config) { c.Rooms.DefaultAllowed = []string{"Nada"} }},
		{"bad backend", func(c *Config) { c.Storage.Backend = "postgres" }},
		{"redis backend without address", func(c *Config) {
			c.Storage.Backend = "redis"
			c.Storage.Redis.Address = ""
		}},
		{"empty jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"rate limiting misconfigured", func(c *Config) {
			c.RateLimiting.Enabled = true
			c.RateLimiting.HTTP.RequestsPerSecond = 0
		}},
		{"tracing without jaeger url", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.JaegerURL = ""
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COLAB_SERVER_ADDRESS", ":8088")
	t.Setenv("COLAB_STORAGE_BACKEND", "badger")
	t.Setenv("COLAB_JWT_SECRET", "env-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8088", cfg.Server.Address)
	assert.Equal(t, "badger", cfg.Storage.Backend)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
}
