package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/namelens/relay/internal/errors"
	"github.com/namelens/relay/internal/observability"
)

var loginCmd = &cobra.Command{
	Use:   "login [TOKEN]",
	Short: "Check that a token is accepted by the API",
	Long: `Fetch the current user with TOKEN (or the configured api.token) and
print it. Exits non-zero when the API rejects the credential.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().Bool("bot", true, "Send the token as a bot credential")
	addOutputFlag(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	formatter, err := formatterFor(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadedConfig()
	if err != nil {
		return err
	}

	token := cfg.API.Token
	if len(args) == 1 {
		token = args[0]
	}
	if strings.TrimSpace(token) == "" {
		return apperrors.NewInvalidInputError("no token given; pass one or set " + tokenEnvVar())
	}
	bot := cfg.API.Bot
	if cmd.Flags().Changed("bot") {
		bot, _ = cmd.Flags().GetBool("bot")
	}

	client, err := newClient(cfg, observability.CLILogger)
	if err != nil {
		return apperrors.NewConfigInvalidError(err.Error())
	}
	resp, err := client.StaticLogin(cmd.Context(), token, bot)
	if err != nil {
		return apperrors.FromDispatchError(cmd.Context(), err)
	}
	return printResponse(cmd, formatter, resp)
}
