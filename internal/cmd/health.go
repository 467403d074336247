package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/namelens/relay/internal/errors"
	"github.com/namelens/relay/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long: `Run a self-health check to verify the application can start successfully.
With --upstream the configured token is also checked against the API.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		if logger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}
		logger.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		logger.Debug("Version check passed", zap.String("version", versionInfo.Version))
		logger.Info("✅ Version information available")

		cfg, err := loadedConfig()
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Configuration not loaded", err)
			return
		}
		logger.Info("✅ Configuration loaded",
			zap.String("base_url", cfg.API.BaseURL),
			zap.Int("max_attempts", cfg.RateLimit.MaxAttempts))

		client, err := newClient(cfg, logger)
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Dispatcher setup failed", errwrap.NewConfigInvalidError(err.Error()))
			return
		}
		logger.Info("✅ Dispatcher ready")

		if upstream, _ := cmd.Flags().GetBool("upstream"); upstream {
			if cfg.API.Token == "" {
				ExitWithCode(logger, foundry.ExitConfigInvalid, "No token configured", errwrap.NewConfigInvalidError("set "+tokenEnvVar()))
				return
			}
			if _, err := client.StaticLogin(cmd.Context(), cfg.API.Token, cfg.API.Bot); err != nil {
				envelope := errwrap.FromDispatchError(cmd.Context(), err)
				ExitWithCode(logger, ExitCodeFor(envelope), "Upstream check failed", envelope)
				return
			}
			logger.Info("✅ Upstream accepted the token")

			if global := client.Snapshot().Global; global.Active {
				logger.Warn("Global rate limit is active", zap.Timep("until", global.Until))
			}
		}

		logger.Info("")
		logger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().Bool("upstream", false, "Also validate the configured token against the API")
}
