package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/namelens/relay/internal/core"
	"github.com/namelens/relay/internal/core/engine"
)

// MessageOptions is the content of a new message.
type MessageOptions struct {
	Content string
	TTS     bool
	Embed   map[string]any
	Nonce   string
}

func (m MessageOptions) payload() map[string]any {
	payload := map[string]any{}
	if m.Content != "" {
		payload["content"] = m.Content
	}
	if m.TTS {
		payload["tts"] = true
	}
	if len(m.Embed) > 0 {
		payload["embed"] = m.Embed
	}
	if m.Nonce != "" {
		payload["nonce"] = m.Nonce
	}
	return payload
}

// HistoryOptions selects a page of channel messages.
type HistoryOptions struct {
	Limit  int
	Before string
	After  string
	Around string
}

func (h HistoryOptions) query() url.Values {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(h.Limit))
	if h.Before != "" {
		query.Set("before", h.Before)
	}
	if h.After != "" {
		query.Set("after", h.After)
	}
	if h.Around != "" {
		query.Set("around", h.Around)
	}
	return query
}

// Groups

// StartGroup opens a group DM with the given recipients.
func (c *Client) StartGroup(ctx context.Context, userID string, recipients []string) (*core.Response, error) {
	route := core.NewRoute(http.MethodPost, "/users/{user_id}/channels", core.Params{"user_id": userID})
	return c.Request(ctx, route, engine.RequestOptions{JSON: map[string]any{"recipients": recipients}})
}

func (c *Client) LeaveGroup(ctx context.Context, channel core.Channel) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodDelete, "/channels/{channel_id}", channel, nil)
	return c.Request(ctx, route, engine.RequestOptions{})
}

func (c *Client) AddGroupRecipient(ctx context.Context, channel core.Channel, userID string) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodPut, "/channels/{channel_id}/recipients/{user_id}", channel, core.Params{"user_id": userID})
	return c.Request(ctx, route, engine.RequestOptions{})
}

func (c *Client) RemoveGroupRecipient(ctx context.Context, channel core.Channel, userID string) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodDelete, "/channels/{channel_id}/recipients/{user_id}", channel, core.Params{"user_id": userID})
	return c.Request(ctx, route, engine.RequestOptions{})
}

// EditGroup changes the name or icon of a group DM. Other fields are dropped.
func (c *Client) EditGroup(ctx context.Context, channel core.Channel, fields map[string]any) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodPatch, "/channels/{channel_id}", channel, nil)
	return c.Request(ctx, route, engine.RequestOptions{JSON: pick(fields, "name", "icon")})
}

func (c *Client) ConvertGroup(ctx context.Context, channel core.Channel) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodPost, "/channels/{channel_id}/convert", channel, nil)
	return c.Request(ctx, route, engine.RequestOptions{})
}

// Messages

// StartPrivateMessage opens a DM channel with a user.
func (c *Client) StartPrivateMessage(ctx context.Context, userID string) (*core.Response, error) {
	route := core.NewRoute(http.MethodPost, "/users/@me/channels", nil)
	return c.Request(ctx, route, engine.RequestOptions{JSON: map[string]any{"recipient_id": userID}})
}

func (c *Client) SendMessage(ctx context.Context, channel core.Channel, msg MessageOptions) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodPost, "/channels/{channel_id}/messages", channel, nil)
	return c.Request(ctx, route, engine.RequestOptions{JSON: msg.payload()})
}

func (c *Client) SendTyping(ctx context.Context, channel core.Channel) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodPost, "/channels/{channel_id}/typing", channel, nil)
	return c.Request(ctx, route, engine.RequestOptions{})
}

// AckMessage marks a message read. The ack token returned by the API is
// sent back on the next acknowledgement.
func (c *Client) AckMessage(ctx context.Context, channel core.Channel, messageID string) (*core.Response, error) {
	c.mu.RLock()
	var token any
	if c.ackToken != "" {
		token = c.ackToken
	}
	c.mu.RUnlock()

	route := core.NewChannelRoute(http.MethodPost, "/channels/{channel_id}/messages/{message_id}/ack", channel, core.Params{"message_id": messageID})
	resp, err := c.Request(ctx, route, engine.RequestOptions{JSON: map[string]any{"token": token}})
	if err != nil {
		return nil, err
	}

	if raw, ok := resp.Field("token"); ok {
		next, _ := raw.(string)
		c.mu.Lock()
		c.ackToken = next
		c.mu.Unlock()
	}
	return resp, nil
}

func (c *Client) AckGuild(ctx context.Context, guildID string) (*core.Response, error) {
	route := core.NewRoute(http.MethodPost, "/guilds/{guild_id}/ack", core.Params{"guild_id": guildID})
	return c.Request(ctx, route, engine.RequestOptions{})
}

func (c *Client) DeleteMessage(ctx context.Context, channel core.Channel, messageID, reason string) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodDelete, "/channels/{channel_id}/messages/{message_id}", channel, core.Params{"message_id": messageID})
	return c.Request(ctx, route, reasonOptions(reason))
}

// DeleteMessages bulk deletes messages in one call.
func (c *Client) DeleteMessages(ctx context.Context, channel core.Channel, messageIDs []string, reason string) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodPost, "/channels/{channel_id}/messages/bulk_delete", channel, nil)
	return c.Request(ctx, route, engine.RequestOptions{JSON: map[string]any{"messages": messageIDs}, Reason: reason})
}

func (c *Client) EditMessage(ctx context.Context, channel core.Channel, messageID string, fields map[string]any) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodPatch, "/channels/{channel_id}/messages/{message_id}", channel, core.Params{"message_id": messageID})
	return c.Request(ctx, route, engine.RequestOptions{JSON: fields})
}

func (c *Client) GetMessage(ctx context.Context, channel core.Channel, messageID string) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodGet, "/channels/{channel_id}/messages/{message_id}", channel, core.Params{"message_id": messageID})
	return c.Request(ctx, route, engine.RequestOptions{})
}

// LogsFrom returns a page of channel history.
func (c *Client) LogsFrom(ctx context.Context, channel core.Channel, opts HistoryOptions) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodGet, "/channels/{channel_id}/messages", channel, nil)
	return c.Request(ctx, route, engine.RequestOptions{Query: opts.query()})
}

// Reactions

// AddReaction reacts as the current user. The bucket is held for 250ms
// after exhaustion regardless of the reset header.
func (c *Client) AddReaction(ctx context.Context, channel core.Channel, messageID, emoji string) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodPut, "/channels/{channel_id}/messages/{message_id}/reactions/{emoji}/@me", channel,
		core.Params{"message_id": messageID, "emoji": emoji})
	return c.Request(ctx, route, engine.RequestOptions{})
}

func (c *Client) RemoveReaction(ctx context.Context, channel core.Channel, messageID, emoji, memberID string) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodDelete, "/channels/{channel_id}/messages/{message_id}/reactions/{emoji}/{member_id}", channel,
		core.Params{"message_id": messageID, "emoji": emoji, "member_id": memberID})
	return c.Request(ctx, route, engine.RequestOptions{})
}

func (c *Client) GetReactionUsers(ctx context.Context, channel core.Channel, messageID, emoji string, limit int, after string) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodGet, "/channels/{channel_id}/messages/{message_id}/reactions/{emoji}", channel,
		core.Params{"message_id": messageID, "emoji": emoji})

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if after != "" {
		query.Set("after", after)
	}
	return c.Request(ctx, route, engine.RequestOptions{Query: query})
}

func (c *Client) ClearReactions(ctx context.Context, channel core.Channel, messageID string) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodDelete, "/channels/{channel_id}/messages/{message_id}/reactions", channel, core.Params{"message_id": messageID})
	return c.Request(ctx, route, engine.RequestOptions{})
}

// Pins

func (c *Client) PinMessage(ctx context.Context, channel core.Channel, messageID string) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodPut, "/channels/{channel_id}/pins/{message_id}", channel, core.Params{"message_id": messageID})
	return c.Request(ctx, route, engine.RequestOptions{})
}

func (c *Client) UnpinMessage(ctx context.Context, channel core.Channel, messageID string) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodDelete, "/channels/{channel_id}/pins/{message_id}", channel, core.Params{"message_id": messageID})
	return c.Request(ctx, route, engine.RequestOptions{})
}

func (c *Client) PinsFrom(ctx context.Context, channel core.Channel) (*core.Response, error) {
	route := core.NewChannelRoute(http.MethodGet, "/channels/{channel_id}/pins", channel, nil)
	return c.Request(ctx, route, engine.RequestOptions{})
}
