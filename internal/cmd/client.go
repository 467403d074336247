package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/spf13/cobra"

	"github.com/namelens/relay/internal/appid"
	"github.com/namelens/relay/internal/config"
	"github.com/namelens/relay/internal/core"
	"github.com/namelens/relay/internal/core/api"
	"github.com/namelens/relay/internal/output"
)

// newClient builds the API client and its dispatcher from the loaded config.
func newClient(cfg *config.Config, logger *logging.Logger) (*api.Client, error) {
	return api.New(api.Config{
		BaseURL:          cfg.API.BaseURL,
		WebURL:           cfg.API.WebURL,
		UserAgent:        cfg.API.UserAgent,
		Token:            cfg.API.Token,
		Bot:              cfg.API.Bot,
		Timeout:          cfg.API.Timeout,
		Proxy:            cfg.API.Proxy,
		MaxAttempts:      cfg.RateLimit.MaxAttempts,
		GlobalRate:       cfg.RateLimit.GlobalRate,
		GlobalBurst:      cfg.RateLimit.GlobalBurst,
		ReleaseOverrides: cfg.RateLimit.ReleaseOverrides,
		Logger:           logger,
	})
}

// parseAssignments splits "key=value" arguments. Keys starting with "?"
// become query parameters, everything else fills path placeholders.
func parseAssignments(args []string) (core.Params, url.Values, error) {
	params := core.Params{}
	query := url.Values{}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimPrefix(key, "?") == "" {
			return nil, nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		if name, isQuery := strings.CutPrefix(key, "?"); isQuery {
			query.Add(name, value)
			continue
		}
		params[key] = value
	}
	return params, query, nil
}

// parseCall parses one batch line:
//
//	METHOD /template [key=value ...] [?name=value ...] [reason=text] [json=<rest of line>]
//
// json= must come last; its value may contain spaces.
func parseCall(line string) (core.Call, error) {
	var call core.Call

	head, body, hasBody := strings.Cut(line, " json=")
	fields := strings.Fields(head)
	if len(fields) < 2 {
		return call, fmt.Errorf("expected METHOD /template, got %q", line)
	}

	var reason string
	assignments := make([]string, 0, len(fields)-2)
	for _, field := range fields[2:] {
		if value, ok := strings.CutPrefix(field, "reason="); ok && !strings.Contains(fields[1], "{reason}") {
			reason = value
			continue
		}
		assignments = append(assignments, field)
	}

	params, query, err := parseAssignments(assignments)
	if err != nil {
		return call, err
	}

	call.Route = core.NewRoute(fields[0], fields[1], params)
	if err := call.Route.Validate(); err != nil {
		return call, err
	}
	if len(query) > 0 {
		call.Query = query
	}
	call.Reason = reason

	if hasBody {
		raw := json.RawMessage(strings.TrimSpace(body))
		if !json.Valid(raw) {
			return call, fmt.Errorf("json body is not valid JSON: %s", raw)
		}
		call.JSON = raw
	}
	return call, nil
}

// formatterFor reads the --output flag of cmd.
func formatterFor(cmd *cobra.Command) (output.Formatter, error) {
	value, err := cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}
	format, err := output.ParseFormat(value)
	if err != nil {
		return nil, err
	}
	return output.NewFormatter(format), nil
}

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "table", "Output format: table, json, markdown")
}

func printResponse(cmd *cobra.Command, formatter output.Formatter, resp *core.Response) error {
	rendered, err := formatter.FormatResponse(resp)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func tokenEnvVar() string {
	return appid.EnvVar("api.token")
}
