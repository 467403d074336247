package api

import (
	"context"
	"net/http"

	"github.com/namelens/relay/internal/core"
	"github.com/namelens/relay/internal/core/engine"
)

var channelEditKeys = []string{"name", "parent_id", "topic", "bitrate", "nsfw", "user_limit", "position", "permission_overwrites"}

// EditChannel updates a channel. Keys outside the editable set are dropped.
func (c *Client) EditChannel(ctx context.Context, channel core.Channel, fields map[string]any, reason string) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodPatch, "/channels/{channel_id}", channel, nil)
	return c.Request(ctx, route, engine.RequestOptions{JSON: pick(fields, channelEditKeys...), Reason: reason})
}

// BulkChannelUpdate reorders guild channels.
func (c *Client) BulkChannelUpdate(ctx context.Context, guildID string, positions []map[string]any, reason string) (*core.Response, error) {
	route := core.NewRoute(http.MethodPatch, "/guilds/{guild_id}/channels", core.Params{"guild_id": guildID})
	return c.Request(ctx, route, engine.RequestOptions{JSON: positions, Reason: reason})
}

// NewChannel describes a channel to create.
type NewChannel struct {
	Name                 string
	Type                 int
	ParentID             string
	PermissionOverwrites []map[string]any
}

func (c *Client) CreateChannel(ctx context.Context, guildID string, channel NewChannel, reason string) (*core.Response, error) {
	payload := map[string]any{
		"name": channel.Name,
		"type": channel.Type,
	}
	if channel.PermissionOverwrites != nil {
		payload["permission_overwrites"] = channel.PermissionOverwrites
	}
	if channel.ParentID != "" {
		payload["parent_id"] = channel.ParentID
	}

	route := core.NewRoute(http.MethodPost, "/guilds/{guild_id}/channels", core.Params{"guild_id": guildID})
	return c.Request(ctx, route, engine.RequestOptions{JSON: payload, Reason: reason})
}

func (c *Client) DeleteChannel(ctx context.Context, channel core.Channel, reason string) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodDelete, "/channels/{channel_id}", channel, nil)
	return c.Request(ctx, route, reasonOptions(reason))
}

// Permission overwrites

// PermissionOverwrite grants or denies permissions to a role or member.
type PermissionOverwrite struct {
	Target string
	Allow  int64
	Deny   int64
	Type   string
}

func (c *Client) EditChannelPermissions(ctx context.Context, channel core.Channel, overwrite PermissionOverwrite, reason string) (*core.Response, error) {
	payload := map[string]any{
		"id":    overwrite.Target,
		"allow": overwrite.Allow,
		"deny":  overwrite.Deny,
		"type":  overwrite.Type,
	}
	route := core.NewChannelRoute(http.MethodPut, "/channels/{channel_id}/permissions/{target}", channel, core.Params{"target": overwrite.Target})
	return c.Request(ctx, route, engine.RequestOptions{JSON: payload, Reason: reason})
}

func (c *Client) DeleteChannelPermissions(ctx context.Context, channel core.Channel, target, reason string) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodDelete, "/channels/{channel_id}/permissions/{target}", channel, core.Params{"target": target})
	return c.Request(ctx, route, reasonOptions(reason))
}

// Webhooks

// CreateWebhook creates a channel webhook. Nil fields are omitted.
func (c *Client) CreateWebhook(ctx context.Context, channel core.Channel, name, avatar *string) (*core.Response, error) {
	payload := map[string]any{}
	if name != nil {
		payload["name"] = *name
	}
	if avatar != nil {
		payload["avatar"] = *avatar
	}
	route := core.NewChannelRoute(http.MethodPost, "/channels/{channel_id}/webhooks", channel, nil)
	return c.Request(ctx, route, engine.RequestOptions{JSON: payload})
}

func (c *Client) ChannelWebhooks(ctx context.Context, channel core.Channel) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodGet, "/channels/{channel_id}/webhooks", channel, nil)
	return c.Request(ctx, route, engine.RequestOptions{})
}

func (c *Client) GuildWebhooks(ctx context.Context, guildID string) (*core.Response, error) {
	route := core.NewRoute(http.MethodGet, "/guilds/{guild_id}/webhooks", core.Params{"guild_id": guildID})
	return c.Request(ctx, route, engine.RequestOptions{})
}

func (c *Client) GetWebhook(ctx context.Context, webhookID string) (*core.Response, error) {
	route := core.NewRoute(http.MethodGet, "/webhooks/{webhook_id}", core.Params{"webhook_id": webhookID})
	return c.Request(ctx, route, engine.RequestOptions{})
}

// Invites

// InviteOptions configures a new invite. Unique defaults to true.
type InviteOptions struct {
	MaxAge    int
	MaxUses   int
	Temporary bool
	Unique    *bool
}

func (c *Client) CreateInvite(ctx context.Context, channel core.Channel, opts InviteOptions, reason string) (*core.Response, error) {
	unique := true
	if opts.Unique != nil {
		unique = *opts.Unique
	}
	payload := map[string]any{
		"max_age":   opts.MaxAge,
		"max_uses":  opts.MaxUses,
		"temporary": opts.Temporary,
		"unique":    unique,
	}
	route := core.NewChannelRoute(http.MethodPost, "/channels/{channel_id}/invites", channel, nil)
	return c.Request(ctx, route, engine.RequestOptions{JSON: payload, Reason: reason})
}

func (c *Client) GetInvite(ctx context.Context, inviteID string) (*core.Response, error) {
	route := core.NewRoute(http.MethodGet, "/invite/{invite_id}", core.Params{"invite_id": inviteID})
	return c.Request(ctx, route, engine.RequestOptions{})
}

func (c *Client) InvitesFrom(ctx context.Context, guildID string) (*core.Response, error) {
	route := core.NewRoute(http.MethodGet, "/guilds/{guild_id}/invites", core.Params{"guild_id": guildID})
	return c.Request(ctx, route, engine.RequestOptions{})
}

func (c *Client) InvitesFromChannel(ctx context.Context, channel core.Channel) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodGet, "/channels/{channel_id}/invites", channel, nil)
	return c.Request(ctx, route, engine.RequestOptions{})
}

func (c *Client) DeleteInvite(ctx context.Context, inviteID, reason string) (*core.Response, error) {
	route := core.NewRoute(http.MethodDelete, "/invite/{invite_id}", core.Params{"invite_id": inviteID})
	return c.Request(ctx, route, reasonOptions(reason))
}
