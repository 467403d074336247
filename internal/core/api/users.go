package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/namelens/relay/internal/core"
	"github.com/namelens/relay/internal/core/engine"
)

// Relationships

func (c *Client) RemoveRelationship(ctx context.Context, userID string) (*core.Response, error) {
	route := core.NewRoute(http.MethodDelete, "/users/@me/relationships/{user_id}", core.Params{"user_id": userID})
	return c.Request(ctx, route, engine.RequestOptions{})
}

// AddRelationship sends or accepts a friend request, or blocks when
// relationshipType says so. Zero omits the type.
func (c *Client) AddRelationship(ctx context.Context, userID string, relationshipType int) (*core.Response, error) {
	payload := map[string]any{}
	if relationshipType != 0 {
		payload["type"] = relationshipType
	}
	route := core.NewRoute(http.MethodPut, "/users/@me/relationships/{user_id}", core.Params{"user_id": userID})
	return c.Request(ctx, route, engine.RequestOptions{JSON: payload})
}

func (c *Client) SendFriendRequest(ctx context.Context, username, discriminator string) (*core.Response, error) {
	number, err := strconv.Atoi(discriminator)
	if err != nil {
		return nil, fmt.Errorf("invalid discriminator %q: %w", discriminator, err)
	}
	payload := map[string]any{
		"username":      username,
		"discriminator": number,
	}
	return c.Request(ctx, core.NewRoute(http.MethodPost, "/users/@me/relationships", nil), engine.RequestOptions{JSON: payload})
}

// Misc

func (c *Client) ApplicationInfo(ctx context.Context) (*core.Response, error) {
	return c.Request(ctx, core.NewRoute(http.MethodGet, "/oauth2/applications/@me", nil), engine.RequestOptions{})
}

func (c *Client) GetUserInfo(ctx context.Context, userID string) (*core.Response, error) {
	route := core.NewRoute(http.MethodGet, "/users/{user_id}", core.Params{"user_id": userID})
	return c.Request(ctx, route, engine.RequestOptions{})
}

func (c *Client) GetUserProfile(ctx context.Context, userID string) (*core.Response, error) {
	route := core.NewRoute(http.MethodGet, "/users/{user_id}/profile", core.Params{"user_id": userID})
	return c.Request(ctx, route, engine.RequestOptions{})
}
