package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestLoad(t *testing.T) {
	// Test basic config loading with defaults
	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load(newViper())
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify API defaults
		assert.Equal(t, "https://discordapp.com/api/v7", cfg.API.BaseURL)
		assert.True(t, cfg.API.Bot)
		assert.Equal(t, 30*time.Second, cfg.API.Timeout)

		// Verify rate limit defaults
		assert.Equal(t, 5, cfg.RateLimit.MaxAttempts)
		assert.Equal(t, 50.0, cfg.RateLimit.GlobalRate)
		assert.Empty(t, cfg.RateLimit.ReleaseOverrides)

		// Verify server defaults
		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 4, cfg.Workers)

		assert.Same(t, cfg, GetConfig())
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		t.Setenv("RELAY_API_TOKEN", "secret")
		t.Setenv("RELAY_API_BOT", "false")
		t.Setenv("RELAY_RATELIMIT_MAX_ATTEMPTS", "3")
		t.Setenv("RELAY_RATELIMIT_GLOBAL_RATE", "12.5")
		t.Setenv("RELAY_API_TIMEOUT", "5s")

		cfg, err := Load(newViper())
		require.NoError(t, err)
		assert.Equal(t, "secret", cfg.API.Token)
		assert.False(t, cfg.API.Bot)
		assert.Equal(t, 3, cfg.RateLimit.MaxAttempts)
		assert.Equal(t, 12.5, cfg.RateLimit.GlobalRate)
		assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
api:
  base_url: http://localhost:9999/api
ratelimit:
  release_overrides:
    "POST /channels/{channel_id}/messages": 750ms
workers: 8
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		v := newViper()
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())

		cfg, err := Load(v)
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:9999/api", cfg.API.BaseURL)
		assert.Equal(t, 8, cfg.Workers)
		assert.Equal(t, 750*time.Millisecond, cfg.RateLimit.ReleaseOverrides["post /channels/{channel_id}/messages"])
	})

	t.Run("NilViper", func(t *testing.T) {
		_, err := Load(nil)
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(newViper())
		require.NoError(t, err)
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "base url scheme", mutate: func(c *Config) { c.API.BaseURL = "ftp://example.com" }},
		{name: "base url empty", mutate: func(c *Config) { c.API.BaseURL = "" }},
		{name: "max attempts", mutate: func(c *Config) { c.RateLimit.MaxAttempts = 0 }},
		{name: "negative rate", mutate: func(c *Config) { c.RateLimit.GlobalRate = -1 }},
		{name: "override key", mutate: func(c *Config) {
			c.RateLimit.ReleaseOverrides = map[string]time.Duration{"/channels": time.Second}
		}},
		{name: "workers", mutate: func(c *Config) { c.Workers = 0 }},
		{name: "port", mutate: func(c *Config) { c.Server.Port = 70000 }},
		{name: "proxy", mutate: func(c *Config) { c.API.Proxy = "not a url" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}

	require.NoError(t, valid().Validate())
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := DefaultConfigPath()
	if path != "" {
		assert.Equal(t, "config.yaml", filepath.Base(path))
	}
}
