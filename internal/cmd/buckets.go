package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/namelens/relay/internal/core"
	apperrors "github.com/namelens/relay/internal/errors"
	"github.com/namelens/relay/internal/observability"
)

var bucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "Show rate limit bucket state",
	Long: `Show which buckets are locked, how many requests wait on each, and
whether the global throttle is engaged.

With --server the snapshot is read from a running "relay serve"; otherwise
the state of a fresh local dispatcher is shown.`,
	Args: cobra.NoArgs,
	RunE: runBuckets,
}

func init() {
	rootCmd.AddCommand(bucketsCmd)

	bucketsCmd.Flags().String("server", "", "Base URL of a running relay server, e.g. http://localhost:8080")
	addOutputFlag(bucketsCmd)
}

func runBuckets(cmd *cobra.Command, _ []string) error {
	formatter, err := formatterFor(cmd)
	if err != nil {
		return err
	}

	var snapshot core.GateSnapshot
	if server, _ := cmd.Flags().GetString("server"); server != "" {
		snapshot, err = fetchSnapshot(cmd.Context(), server)
		if err != nil {
			return err
		}
	} else {
		cfg, err := loadedConfig()
		if err != nil {
			return err
		}
		client, err := newClient(cfg, observability.CLILogger)
		if err != nil {
			return apperrors.NewConfigInvalidError(err.Error())
		}
		snapshot = client.Snapshot()
	}

	rendered, err := formatter.FormatSnapshot(snapshot)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func fetchSnapshot(ctx context.Context, server string) (core.GateSnapshot, error) {
	var snapshot core.GateSnapshot

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	endpoint := strings.TrimRight(server, "/") + "/v1/buckets"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return snapshot, apperrors.WrapInvalidInput(ctx, err, "invalid server URL")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return snapshot, apperrors.Wrap(ctx, apperrors.CodeServiceUnavailable, err, "relay server unreachable")
	}
	defer resp.Body.Close() // nolint:errcheck // response body close errors are not actionable

	if resp.StatusCode != http.StatusOK {
		return snapshot, apperrors.Wrap(ctx, apperrors.CodeExternalService,
			fmt.Errorf("GET %s: %s", endpoint, resp.Status), "relay server returned an error")
	}
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return snapshot, apperrors.Wrap(ctx, apperrors.CodeExternalService, err, "invalid bucket snapshot")
	}
	return snapshot, nil
}
