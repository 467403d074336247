package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namelens/relay/internal/core"
	"github.com/namelens/relay/internal/core/engine"
	apperrors "github.com/namelens/relay/internal/errors"
	"github.com/namelens/relay/internal/observability"
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Dispatch many requests from a file",
	Long: `Read requests from a file (one per line, "-" for stdin) and dispatch them
concurrently. Requests that share a bucket still run one at a time.

Line format:
  METHOD /template [key=value ...] [?name=value ...] [reason=text] [json=<body>]

Blank lines and lines starting with # are ignored.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().Int("workers", 0, "Concurrent requests (default: workers from config)")
	batchCmd.Flags().Bool("fail-fast", false, "Exit non-zero when any request failed")
	addOutputFlag(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	formatter, err := formatterFor(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadedConfig()
	if err != nil {
		return err
	}

	workers, err := cmd.Flags().GetInt("workers")
	if err != nil {
		return err
	}
	if workers == 0 {
		workers = cfg.Workers
	}
	if workers < 1 {
		return errors.New("workers must be at least 1")
	}

	calls, err := readBatchCalls(args[0], cmd.InOrStdin())
	if err != nil {
		return apperrors.WrapInvalidInput(cmd.Context(), err, "invalid batch file")
	}
	if len(calls) == 0 {
		return errors.New("no requests found in batch file")
	}

	client, err := newClient(cfg, observability.CLILogger)
	if err != nil {
		return apperrors.NewConfigInvalidError(err.Error())
	}

	startedAt := time.Now()
	result, err := engine.RunBatch(cmd.Context(), calls, workers, client.Do)
	if err != nil {
		return apperrors.FromDispatchError(cmd.Context(), err)
	}

	rendered, err := formatter.FormatBatch(result)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), rendered); err != nil {
		return err
	}

	logThroughput(len(calls), startedAt)

	if failFast, _ := cmd.Flags().GetBool("fail-fast"); failFast && result.Failed > 0 {
		return fmt.Errorf("%d of %d requests failed", result.Failed, len(calls))
	}
	return nil
}

func readBatchCalls(path string, stdin io.Reader) ([]core.Call, error) {
	var reader io.Reader = stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close() // nolint:errcheck // best-effort cleanup on read-only file
		reader = file
	}
	return parseBatch(reader)
}

func parseBatch(r io.Reader) ([]core.Call, error) {
	calls := make([]core.Call, 0)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		call, err := parseCall(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		calls = append(calls, call)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return calls, nil
}

func logThroughput(count int, startedAt time.Time) {
	if observability.CLILogger == nil {
		return
	}
	elapsed := time.Since(startedAt)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(count) / elapsed.Seconds()
	}
	observability.CLILogger.Info("Batch complete",
		zap.Int("requests", count),
		zap.Duration("elapsed", elapsed.Round(time.Millisecond)),
		zap.Float64("requests_per_second", rate))
}
