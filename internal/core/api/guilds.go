package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/namelens/relay/internal/core"
	"github.com/namelens/relay/internal/core/engine"
)

var guildEditKeys = []string{
	"name", "region", "icon", "afk_timeout", "owner_id",
	"afk_channel_id", "splash", "verification_level", "system_channel_id",
}

var roleEditKeys = []string{"name", "permissions", "color", "hoist", "mentionable"}

func guildRoute(method, path, guildID string, extra core.Params) core.Route {
	params := core.Params{"guild_id": guildID}
	for key, value := range extra {
		params[key] = value
	}
	return core.NewRoute(method, path, params)
}

func (c *Client) LeaveGuild(ctx context.Context, guildID string) (*core.Response, error) {
	return c.Request(ctx, guildRoute(http.MethodDelete, "/users/@me/guilds/{guild_id}", guildID, nil), engine.RequestOptions{})
}

func (c *Client) DeleteGuild(ctx context.Context, guildID string) (*core.Response, error) {
	return c.Request(ctx, guildRoute(http.MethodDelete, "/guilds/{guild_id}", guildID, nil), engine.RequestOptions{})
}

// CreateGuild creates a guild. icon is a data URI or nil.
func (c *Client) CreateGuild(ctx context.Context, name, region string, icon *string) (*core.Response, error) {
	payload := map[string]any{
		"name":   name,
		"icon":   icon,
		"region": region,
	}
	return c.Request(ctx, core.NewRoute(http.MethodPost, "/guilds", nil), engine.RequestOptions{JSON: payload})
}

func (c *Client) EditGuild(ctx context.Context, guildID string, fields map[string]any, reason string) (*core.Response, error) {
	route := guildRoute(http.MethodPatch, "/guilds/{guild_id}", guildID, nil)
	return c.Request(ctx, route, engine.RequestOptions{JSON: pick(fields, guildEditKeys...), Reason: reason})
}

func (c *Client) GetBans(ctx context.Context, guildID string) (*core.Response, error) {
	return c.Request(ctx, guildRoute(http.MethodGet, "/guilds/{guild_id}/bans", guildID, nil), engine.RequestOptions{})
}

func (c *Client) GetVanityCode(ctx context.Context, guildID string) (*core.Response, error) {
	return c.Request(ctx, guildRoute(http.MethodGet, "/guilds/{guild_id}/vanity-url", guildID, nil), engine.RequestOptions{})
}

func (c *Client) ChangeVanityCode(ctx context.Context, guildID, code, reason string) (*core.Response, error) {
	route := guildRoute(http.MethodPatch, "/guilds/{guild_id}/vanity-url", guildID, nil)
	return c.Request(ctx, route, engine.RequestOptions{JSON: map[string]any{"code": code}, Reason: reason})
}

// PruneMembers removes members inactive for the given number of days.
func (c *Client) PruneMembers(ctx context.Context, guildID string, days int, reason string) (*core.Response, error) {
	route := guildRoute(http.MethodPost, "/guilds/{guild_id}/prune", guildID, nil)
	return c.Request(ctx, route, engine.RequestOptions{Query: daysQuery(days), Reason: reason})
}

func (c *Client) EstimatePrunedMembers(ctx context.Context, guildID string, days int) (*core.Response, error) {
	route := guildRoute(http.MethodGet, "/guilds/{guild_id}/prune", guildID, nil)
	return c.Request(ctx, route, engine.RequestOptions{Query: daysQuery(days)})
}

func daysQuery(days int) url.Values {
	return url.Values{"days": []string{strconv.Itoa(days)}}
}

// Emoji

func (c *Client) CreateCustomEmoji(ctx context.Context, guildID, name, image, reason string) (*core.Response, error) {
	route := guildRoute(http.MethodPost, "/guilds/{guild_id}/emojis", guildID, nil)
	return c.Request(ctx, route, engine.RequestOptions{JSON: map[string]any{"name": name, "image": image}, Reason: reason})
}

func (c *Client) DeleteCustomEmoji(ctx context.Context, guildID, emojiID, reason string) (*core.Response, error) {
	route := guildRoute(http.MethodDelete, "/guilds/{guild_id}/emojis/{emoji_id}", guildID, core.Params{"emoji_id": emojiID})
	return c.Request(ctx, route, reasonOptions(reason))
}

func (c *Client) EditCustomEmoji(ctx context.Context, guildID, emojiID, name, reason string) (*core.Response, error) {
	route := guildRoute(http.MethodPatch, "/guilds/{guild_id}/emojis/{emoji_id}", guildID, core.Params{"emoji_id": emojiID})
	return c.Request(ctx, route, engine.RequestOptions{JSON: map[string]any{"name": name}, Reason: reason})
}

// Audit logs

// AuditLogOptions filters the audit log. Limit defaults to 100.
type AuditLogOptions struct {
	Limit      int
	Before     string
	After      string
	UserID     string
	ActionType int
}

func (c *Client) GetAuditLogs(ctx context.Context, guildID string, opts AuditLogOptions) (*core.Response, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if opts.Before != "" {
		query.Set("before", opts.Before)
	}
	if opts.After != "" {
		query.Set("after", opts.After)
	}
	if opts.UserID != "" {
		query.Set("user_id", opts.UserID)
	}
	if opts.ActionType != 0 {
		query.Set("action_type", strconv.Itoa(opts.ActionType))
	}

	route := guildRoute(http.MethodGet, "/guilds/{guild_id}/audit-logs", guildID, nil)
	return c.Request(ctx, route, engine.RequestOptions{Query: query})
}

// Roles

func (c *Client) EditRole(ctx context.Context, guildID, roleID string, fields map[string]any, reason string) (*core.Response, error) {
	route := guildRoute(http.MethodPatch, "/guilds/{guild_id}/roles/{role_id}", guildID, core.Params{"role_id": roleID})
	return c.Request(ctx, route, engine.RequestOptions{JSON: pick(fields, roleEditKeys...), Reason: reason})
}

func (c *Client) DeleteRole(ctx context.Context, guildID, roleID, reason string) (*core.Response, error) {
	route := guildRoute(http.MethodDelete, "/guilds/{guild_id}/roles/{role_id}", guildID, core.Params{"role_id": roleID})
	return c.Request(ctx, route, reasonOptions(reason))
}

func (c *Client) CreateRole(ctx context.Context, guildID string, fields map[string]any, reason string) (*core.Response, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	route := guildRoute(http.MethodPost, "/guilds/{guild_id}/roles", guildID, nil)
	return c.Request(ctx, route, engine.RequestOptions{JSON: fields, Reason: reason})
}

// MoveRolePosition reorders roles; positions is a list of {id, position}.
func (c *Client) MoveRolePosition(ctx context.Context, guildID string, positions []map[string]any, reason string) (*core.Response, error) {
	route := guildRoute(http.MethodPatch, "/guilds/{guild_id}/roles", guildID, nil)
	return c.Request(ctx, route, engine.RequestOptions{JSON: positions, Reason: reason})
}
