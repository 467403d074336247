package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/namelens/relay/internal/core"
	"github.com/namelens/relay/internal/core/engine"
)

func memberRoute(method, guildID, userID string) core.Route {
	return core.NewRoute(method, "/guilds/{guild_id}/members/{user_id}", core.Params{"guild_id": guildID, "user_id": userID})
}

// Kick removes a member. The reason travels in the query string rather
// than the audit log header.
func (c *Client) Kick(ctx context.Context, guildID, userID, reason string) (*core.Response, error) {
	opts := engine.RequestOptions{}
	if reason != "" {
		opts.Query = url.Values{"reason": []string{reason}}
	}
	return c.Request(ctx, memberRoute(http.MethodDelete, guildID, userID), opts)
}

// Ban bans a user and deletes deleteMessageDays worth of their messages.
func (c *Client) Ban(ctx context.Context, guildID, userID string, deleteMessageDays int, reason string) (*core.Response, error) {
	route := core.NewRoute(http.MethodPut, "/guilds/{guild_id}/bans/{user_id}", core.Params{"guild_id": guildID, "user_id": userID})

	query := url.Values{}
	query.Set("delete-message-days", strconv.Itoa(deleteMessageDays))
	if reason != "" {
		query.Set("reason", reason)
	}
	return c.Request(ctx, route, engine.RequestOptions{Query: query})
}

func (c *Client) Unban(ctx context.Context, guildID, userID, reason string) (*core.Response, error) {
	route := core.NewRoute(http.MethodDelete, "/guilds/{guild_id}/bans/{user_id}", core.Params{"guild_id": guildID, "user_id": userID})
	return c.Request(ctx, route, reasonOptions(reason))
}

// GuildVoiceState server-mutes or deafens a member. Nil leaves the flag unchanged.
func (c *Client) GuildVoiceState(ctx context.Context, guildID, userID string, mute, deafen *bool, reason string) (*core.Response, error) {
	payload := map[string]any{}
	if mute != nil {
		payload["mute"] = *mute
	}
	if deafen != nil {
		payload["deaf"] = *deafen
	}
	return c.Request(ctx, memberRoute(http.MethodPatch, guildID, userID), engine.RequestOptions{JSON: payload, Reason: reason})
}

// ProfileUpdate changes the current user's account.
type ProfileUpdate struct {
	Password    string
	Username    string
	Avatar      *string
	Email       string
	NewPassword string
}

func (c *Client) EditProfile(ctx context.Context, update ProfileUpdate) (*core.Response, error) {
	payload := map[string]any{
		"password": update.Password,
		"username": update.Username,
		"avatar":   update.Avatar,
	}
	if update.Email != "" {
		payload["email"] = update.Email
	}
	if update.NewPassword != "" {
		payload["new_password"] = update.NewPassword
	}
	return c.Request(ctx, core.NewRoute(http.MethodPatch, "/users/@me", nil), engine.RequestOptions{JSON: payload})
}

func (c *Client) ChangeMyNickname(ctx context.Context, guildID, nickname, reason string) (*core.Response, error) {
	route := core.NewRoute(http.MethodPatch, "/guilds/{guild_id}/members/@me/nick", core.Params{"guild_id": guildID})
	return c.Request(ctx, route, engine.RequestOptions{JSON: map[string]any{"nick": nickname}, Reason: reason})
}

func (c *Client) ChangeNickname(ctx context.Context, guildID, userID, nickname, reason string) (*core.Response, error) {
	return c.EditMember(ctx, guildID, userID, map[string]any{"nick": nickname}, reason)
}

func (c *Client) EditMember(ctx context.Context, guildID, userID string, fields map[string]any, reason string) (*core.Response, error) {
	return c.Request(ctx, memberRoute(http.MethodPatch, guildID, userID), engine.RequestOptions{JSON: fields, Reason: reason})
}

// ReplaceRoles sets the member's full role list.
func (c *Client) ReplaceRoles(ctx context.Context, guildID, userID string, roleIDs []string, reason string) (*core.Response, error) {
	return c.EditMember(ctx, guildID, userID, map[string]any{"roles": roleIDs}, reason)
}

// MoveMember moves a member to another voice channel.
func (c *Client) MoveMember(ctx context.Context, guildID, userID, channelID, reason string) (*core.Response, error) {
	return c.EditMember(ctx, guildID, userID, map[string]any{"channel_id": channelID}, reason)
}

func (c *Client) AddRole(ctx context.Context, guildID, userID, roleID, reason string) (*core.Response, error) {
	route := core.NewRoute(http.MethodPut, "/guilds/{guild_id}/members/{user_id}/roles/{role_id}",
		core.Params{"guild_id": guildID, "user_id": userID, "role_id": roleID})
	return c.Request(ctx, route, reasonOptions(reason))
}

func (c *Client) RemoveRole(ctx context.Context, guildID, userID, roleID, reason string) (*core.Response, error) {
	route := core.NewRoute(http.MethodDelete, "/guilds/{guild_id}/members/{user_id}/roles/{role_id}",
		core.Params{"guild_id": guildID, "user_id": userID, "role_id": roleID})
	return c.Request(ctx, route, reasonOptions(reason))
}
