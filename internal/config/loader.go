// Package config decodes relay settings merged by viper into a typed Config.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/namelens/relay/internal/appid"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// SetDefaults registers every known key so environment variables bind and
// AllSettings returns a complete tree.
func SetDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.base_url", "https://discordapp.com/api/v7")
	v.SetDefault("api.web_url", "https://canary.discordapp.com")
	v.SetDefault("api.token", "")
	v.SetDefault("api.bot", true)
	v.SetDefault("api.user_agent", "")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.proxy", "")

	// Rate limit defaults
	v.SetDefault("ratelimit.max_attempts", 5)
	v.SetDefault("ratelimit.global_rate", 50.0)
	v.SetDefault("ratelimit.global_burst", 50)
	v.SetDefault("ratelimit.release_overrides", map[string]string{})

	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Logging defaults
	v.SetDefault("logging.level", "info")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)

	// Worker defaults
	v.SetDefault("workers", 4)
}

// BindEnv makes v read RELAY_* variables, with "." mapped to "_".
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(appid.ViperPrefix())
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes the merged settings of v, validates them and stores the
// result for GetConfig.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		return nil, errors.New("viper instance is required")
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	base, err := url.Parse(strings.TrimSpace(c.API.BaseURL))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL))
	}
	if proxy := strings.TrimSpace(c.API.Proxy); proxy != "" {
		if parsed, err := url.Parse(proxy); err != nil || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("api.proxy is not a valid URL: %q", c.API.Proxy))
		}
	}
	if c.API.Timeout < 0 {
		errs = append(errs, errors.New("api.timeout must not be negative"))
	}

	if c.RateLimit.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("ratelimit.max_attempts must be at least 1, got %d", c.RateLimit.MaxAttempts))
	}
	if c.RateLimit.GlobalRate < 0 {
		errs = append(errs, errors.New("ratelimit.global_rate must not be negative"))
	}
	if c.RateLimit.GlobalBurst < 0 {
		errs = append(errs, errors.New("ratelimit.global_burst must not be negative"))
	}
	for key, delay := range c.RateLimit.ReleaseOverrides {
		if len(strings.Fields(key)) != 2 {
			errs = append(errs, fmt.Errorf("ratelimit.release_overrides key %q must be \"METHOD /path\"", key))
		}
		if delay < 0 {
			errs = append(errs, fmt.Errorf("ratelimit.release_overrides[%q] must not be negative", key))
		}
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		errs = append(errs, fmt.Errorf("metrics.port out of range: %d", c.Metrics.Port))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(appid.Get().ConfigName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}
