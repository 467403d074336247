package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namelens/relay/internal/core"
	"github.com/namelens/relay/internal/core/engine"
	apperrors "github.com/namelens/relay/internal/errors"
	"github.com/namelens/relay/internal/observability"
)

var requestCmd = &cobra.Command{
	Use:   "request METHOD TEMPLATE [key=value ...]",
	Short: "Send one API request through the rate limit gate",
	Long: `Send one request. TEMPLATE is the path with {placeholders}, filled from
key=value arguments; ?key=value arguments become query parameters.

  relay request GET /channels/{channel_id}/messages channel_id=123 ?limit=10
  relay request POST /channels/{channel_id}/messages channel_id=123 --json '{"content":"hi"}'`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRequest,
}

func init() {
	rootCmd.AddCommand(requestCmd)

	requestCmd.Flags().String("json", "", "JSON request body")
	requestCmd.Flags().StringArray("header", nil, "Extra header as 'Name: value' (repeatable)")
	requestCmd.Flags().String("reason", "", "Audit log reason")
	requestCmd.Flags().Duration("release-after", 0, "Hold the bucket this long if the response exhausts it")
	addOutputFlag(requestCmd)
}

func runRequest(cmd *cobra.Command, args []string) error {
	formatter, err := formatterFor(cmd)
	if err != nil {
		return err
	}

	params, query, err := parseAssignments(args[2:])
	if err != nil {
		return apperrors.WrapInvalidInput(cmd.Context(), err, "invalid arguments")
	}
	route := core.NewRoute(args[0], args[1], params)
	if err := route.Validate(); err != nil {
		return apperrors.FromDispatchError(cmd.Context(), err)
	}

	opts := engine.RequestOptions{Query: query}
	if body, _ := cmd.Flags().GetString("json"); strings.TrimSpace(body) != "" {
		raw := json.RawMessage(body)
		if !json.Valid(raw) {
			return apperrors.WrapInvalidInput(cmd.Context(), errors.New("--json is not valid JSON"), "invalid request body")
		}
		opts.JSON = raw
	}
	headers, _ := cmd.Flags().GetStringArray("header")
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return apperrors.WrapInvalidInput(cmd.Context(), fmt.Errorf("header %q", h), "headers must be 'Name: value'")
		}
		if opts.Header == nil {
			opts.Header = http.Header{}
		}
		opts.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	opts.Reason, _ = cmd.Flags().GetString("reason")
	opts.ReleaseAfter, _ = cmd.Flags().GetDuration("release-after")

	cfg, err := loadedConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg, observability.CLILogger)
	if err != nil {
		return apperrors.NewConfigInvalidError(err.Error())
	}

	start := time.Now()
	resp, err := client.Request(cmd.Context(), route, opts)
	if err != nil {
		return apperrors.FromDispatchError(cmd.Context(), err)
	}
	if observability.CLILogger != nil {
		observability.CLILogger.Debug("Request completed",
			zap.String("route", route.String()),
			zap.Int("status", resp.StatusCode),
			zap.Int("attempts", resp.Attempts),
			zap.Duration("elapsed", time.Since(start)))
	}
	return printResponse(cmd, formatter, resp)
}
