package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/namelens/relay/internal/core/api"
	apperrors "github.com/namelens/relay/internal/errors"
	"github.com/namelens/relay/internal/observability"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Print the websocket gateway URL",
	Args:  cobra.NoArgs,
	RunE:  runGateway,
}

func init() {
	rootCmd.AddCommand(gatewayCmd)

	gatewayCmd.Flags().Bool("bot", false, "Use /gateway/bot and print the recommended shard count")
	gatewayCmd.Flags().Bool("zlib", true, "Request zlib-stream compression")
	gatewayCmd.Flags().String("encoding", "json", "Gateway payload encoding")
}

func runGateway(cmd *cobra.Command, _ []string) error {
	cfg, err := loadedConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg, observability.CLILogger)
	if err != nil {
		return apperrors.NewConfigInvalidError(err.Error())
	}

	opts := api.DefaultGatewayOptions()
	opts.Zlib, _ = cmd.Flags().GetBool("zlib")
	opts.Encoding, _ = cmd.Flags().GetString("encoding")

	out := cmd.OutOrStdout()
	if bot, _ := cmd.Flags().GetBool("bot"); bot {
		shards, url, err := client.BotGateway(cmd.Context(), opts)
		if err != nil {
			return apperrors.FromDispatchError(cmd.Context(), err)
		}
		_, err = fmt.Fprintf(out, "%s\nshards: %d\n", url, shards)
		return err
	}

	url, err := client.Gateway(cmd.Context(), opts)
	if err != nil {
		return apperrors.FromDispatchError(cmd.Context(), err)
	}
	_, err = fmt.Fprintln(out, url)
	return err
}
