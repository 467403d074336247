package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/namelens/relay/internal/core"
	"github.com/namelens/relay/internal/core/engine"
)

// GatewayOptions controls the websocket URL query.
type GatewayOptions struct {
	Encoding string
	Version  int
	Zlib     bool
}

// DefaultGatewayOptions returns json encoding, version 6, zlib streaming.
func DefaultGatewayOptions() GatewayOptions {
	return GatewayOptions{Encoding: "json", Version: 6, Zlib: true}
}

// Gateway returns the websocket URL to connect to.
func (c *Client) Gateway(ctx context.Context, opts GatewayOptions) (string, error) {
	resp, err := c.Request(ctx, core.NewRoute(http.MethodGet, "/gateway", nil), engine.RequestOptions{})
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrGatewayNotFound, err)
	}
	return gatewayURL(resp, opts)
}

// BotGateway returns the recommended shard count and the websocket URL.
func (c *Client) BotGateway(ctx context.Context, opts GatewayOptions) (int, string, error) {
	resp, err := c.Request(ctx, core.NewRoute(http.MethodGet, "/gateway/bot", nil), engine.RequestOptions{})
	if err != nil {
		return 0, "", fmt.Errorf("%w: %w", core.ErrGatewayNotFound, err)
	}

	value, err := gatewayURL(resp, opts)
	if err != nil {
		return 0, "", err
	}

	shards := 0
	if raw, ok := resp.Field("shards"); ok {
		if count, ok := raw.(float64); ok {
			shards = int(count)
		}
	}
	return shards, value, nil
}

func gatewayURL(resp *core.Response, opts GatewayOptions) (string, error) {
	raw, ok := resp.Field("url")
	base, isString := raw.(string)
	if !ok || !isString || base == "" {
		return "", fmt.Errorf("%w: response has no url", core.ErrGatewayNotFound)
	}

	if opts.Encoding == "" {
		opts.Encoding = "json"
	}
	if opts.Version == 0 {
		opts.Version = 6
	}

	value := fmt.Sprintf("%s?encoding=%s&v=%s", base, url.QueryEscape(opts.Encoding), strconv.Itoa(opts.Version))
	if opts.Zlib {
		value += "&compress=zlib-stream"
	}
	return value, nil
}
