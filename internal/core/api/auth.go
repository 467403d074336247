package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/namelens/relay/internal/core"
	"github.com/namelens/relay/internal/core/engine"
)

// StaticLogin validates a credential by fetching the current user. The
// previous credential is restored when validation fails.
func (c *Client) StaticLogin(ctx context.Context, token string, bot bool) (*core.Response, error) {
	oldToken, oldBot := c.Token()
	c.SetToken(token, bot)

	resp, err := c.Request(ctx, core.NewRoute(http.MethodGet, "/users/@me", nil), engine.RequestOptions{})
	if err != nil {
		c.SetToken(oldToken, oldBot)
		if httpErr, ok := core.AsHTTPError(err); ok && httpErr.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %w", core.ErrLoginFailure, err)
		}
		return nil, err
	}
	return resp, nil
}

// Logout invalidates the current session.
func (c *Client) Logout(ctx context.Context) (*core.Response, error) {
	return c.Request(ctx, core.NewRoute(http.MethodPost, "/auth/logout", nil), engine.RequestOptions{})
}
