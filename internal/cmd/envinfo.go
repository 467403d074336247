package cmd

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namelens/relay/internal/appid"
	"github.com/namelens/relay/internal/config"
	"github.com/namelens/relay/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, and version information. The API token is never printed.",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		version := crucible.GetVersion()
		identity := appid.Get()

		logger.Info("=== Relay Environment Information ===")
		logger.Info("")

		logger.Info("Application:")
		logger.Info("  Name:       " + identity.BinaryName)
		logger.Info("  Version:    " + versionInfo.Version)
		logger.Info("  Commit:     " + versionInfo.Commit)
		logger.Info("  Built:      " + versionInfo.BuildDate)
		logger.Info("")

		logger.Info("SSOT:")
		logger.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		logger.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		logger.Info("")

		logger.Info("Runtime:")
		logger.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		logger.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		logger.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		logger.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		logger.Info("")

		cfg, err := loadedConfig()
		if err != nil {
			logger.Warn("Config load failed", zap.Error(err))
			return
		}

		logger.Info("API:")
		logger.Info("  Base URL:       "+cfg.API.BaseURL, zap.String("base_url", cfg.API.BaseURL))
		logger.Info("  Token:          "+maskToken(cfg.API.Token), zap.Bool("token_set", cfg.API.Token != ""))
		logger.Info(fmt.Sprintf("  Bot:            %t", cfg.API.Bot))
		logger.Info("  Timeout:        " + cfg.API.Timeout.String())
		if cfg.API.Proxy != "" {
			logger.Info("  Proxy:          " + cfg.API.Proxy)
		}
		logger.Info("")

		logger.Info("Rate Limits:")
		logger.Info(fmt.Sprintf("  Max Attempts:   %d", cfg.RateLimit.MaxAttempts), zap.Int("max_attempts", cfg.RateLimit.MaxAttempts))
		if cfg.RateLimit.GlobalRate > 0 {
			logger.Info(fmt.Sprintf("  Global Pace:    %.1f/s (burst %d)", cfg.RateLimit.GlobalRate, cfg.RateLimit.GlobalBurst))
		} else {
			logger.Info("  Global Pace:    off")
		}
		keys := make([]string, 0, len(cfg.RateLimit.ReleaseOverrides))
		for key := range cfg.RateLimit.ReleaseOverrides {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			logger.Info(fmt.Sprintf("  Override:       %s = %s", key, cfg.RateLimit.ReleaseOverrides[key]))
		}
		logger.Info(fmt.Sprintf("  Batch Workers:  %d", cfg.Workers), zap.Int("workers", cfg.Workers))
		logger.Info("")

		logger.Info("Server:")
		logger.Info("  Host:           "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		logger.Info(fmt.Sprintf("  Port:           %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		logger.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		logger.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		logger.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		logger.Info("")

		logger.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}

// maskToken keeps the last four characters of long tokens only.
func maskToken(token string) string {
	switch {
	case token == "":
		return "(not set)"
	case len(token) <= 8:
		return "(set)"
	default:
		return "****" + token[len(token)-4:]
	}
}
