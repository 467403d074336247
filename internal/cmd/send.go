package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/namelens/relay/internal/core"
	"github.com/namelens/relay/internal/core/api"
	apperrors "github.com/namelens/relay/internal/errors"
	"github.com/namelens/relay/internal/observability"
)

// maxNonceLength is the longest nonce the API accepts.
const maxNonceLength = 25

var sendCmd = &cobra.Command{
	Use:   "send CHANNEL_ID [CONTENT]",
	Short: "Send a message, optionally with attachments",
	Long: `Post a message to a channel. With --file the message is sent as
multipart form data; repeat --file to attach several files.

  relay send 81384788765712384 "deploy finished"
  relay send 81384788765712384 "logs attached" --file build.log`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().Bool("tts", false, "Send as text-to-speech")
	sendCmd.Flags().StringArray("file", nil, "Attach a file (repeatable)")
	sendCmd.Flags().String("nonce", "", "Message nonce (default: random)")
	addOutputFlag(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	formatter, err := formatterFor(cmd)
	if err != nil {
		return err
	}

	channel := core.Channel{ID: strings.TrimSpace(args[0])}
	if channel.ID == "" {
		return apperrors.NewInvalidInputError("channel ID is required")
	}

	msg := api.MessageOptions{}
	if len(args) == 2 {
		msg.Content = args[1]
	}
	msg.TTS, _ = cmd.Flags().GetBool("tts")
	msg.Nonce, _ = cmd.Flags().GetString("nonce")
	if msg.Nonce == "" {
		msg.Nonce = newNonce()
	}

	paths, _ := cmd.Flags().GetStringArray("file")
	files, err := readFiles(paths)
	if err != nil {
		return apperrors.WrapInvalidInput(cmd.Context(), err, "cannot read attachment")
	}
	if msg.Content == "" && len(files) == 0 {
		return apperrors.NewInvalidInputError("nothing to send; give CONTENT or --file")
	}

	cfg, err := loadedConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg, observability.CLILogger)
	if err != nil {
		return apperrors.NewConfigInvalidError(err.Error())
	}

	var resp *core.Response
	if len(files) > 0 {
		resp, err = client.SendFiles(cmd.Context(), channel, files, msg)
	} else {
		resp, err = client.SendMessage(cmd.Context(), channel, msg)
	}
	if err != nil {
		return apperrors.FromDispatchError(cmd.Context(), err)
	}
	return printResponse(cmd, formatter, resp)
}

func readFiles(paths []string) ([]api.File, error) {
	files := make([]api.File, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path) // #nosec G304 -- user-provided attachment path
		if err != nil {
			return nil, err
		}
		files = append(files, api.File{Name: filepath.Base(path), Data: data})
	}
	return files, nil
}

// newNonce returns a random nonce short enough for the API.
func newNonce() string {
	nonce := strings.ReplaceAll(uuid.New().String(), "-", "")
	if len(nonce) > maxNonceLength {
		nonce = nonce[:maxNonceLength]
	}
	return nonce
}
