package core

import (
	"fmt"
	"regexp"
	"strings"
)

// Major parameters scope a rate limit bucket to a single resource.
const (
	ParamChannelID = "channel_id"
	ParamGuildID   = "guild_id"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_.]+)\}`)

// Params maps path template placeholders to their values.
type Params map[string]any

// Channel identifies the channel a route targets.
//
// GuildID is not a major parameter; it only feeds the referer header.
type Channel struct {
	ID      string
	GuildID string
}

// Route is an immutable description of one API endpoint call.
type Route struct {
	Method    string
	Path      string
	Resolved  string
	ChannelID string
	GuildID   string
	Channel   *Channel

	unresolved []string
}

// NewRoute builds a route from a method, a path template with {name}
// placeholders and the values to substitute.
//
// String values are percent-encoded; any other value is inserted verbatim.
func NewRoute(method, path string, params Params) Route {
	return buildRoute(method, path, nil, params)
}

// NewChannelRoute builds a route that targets a channel. The channel ID is
// registered as the channel_id major parameter.
func NewChannelRoute(method, path string, channel Channel, params Params) Route {
	return buildRoute(method, path, &channel, params)
}

func buildRoute(method, path string, channel *Channel, params Params) Route {
	values := make(Params, len(params)+1)
	for key, value := range params {
		values[key] = value
	}
	if channel != nil && channel.ID != "" {
		values[ParamChannelID] = channel.ID
	}

	route := Route{
		Method:    strings.ToUpper(strings.TrimSpace(method)),
		Path:      path,
		ChannelID: paramString(values, ParamChannelID),
		GuildID:   paramString(values, ParamGuildID),
		Channel:   channel,
	}

	route.Resolved = placeholderPattern.ReplaceAllStringFunc(path, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := values[name]
		if !ok || value == nil {
			route.unresolved = append(route.unresolved, name)
			return match
		}
		if text, ok := value.(string); ok {
			return quote(text, "/")
		}
		return fmt.Sprint(value)
	})

	return route
}

// Bucket returns the rate limit bucket key. It is derived from the path
// template and major parameters, never from the resolved URL.
func (r Route) Bucket() string {
	return fmt.Sprintf("%s:%s:%s:%s", r.Method, r.ChannelID, r.GuildID, r.Path)
}

// Key identifies the endpoint regardless of major parameters.
func (r Route) Key() string {
	return r.Method + " " + r.Path
}

// URL joins the resolved path onto base.
func (r Route) URL(base string) string {
	return strings.TrimRight(base, "/") + r.Resolved
}

// Validate reports placeholders that had no value.
func (r Route) Validate() error {
	if r.Method == "" {
		return fmt.Errorf("%w: method is required", ErrInvalidRoute)
	}
	if !strings.HasPrefix(r.Path, "/") {
		return fmt.Errorf("%w: path %q must start with /", ErrInvalidRoute, r.Path)
	}
	if len(r.unresolved) > 0 {
		return fmt.Errorf("%w: missing values for %s in %s", ErrInvalidRoute, strings.Join(r.unresolved, ", "), r.Path)
	}
	return nil
}

func (r Route) String() string {
	return r.Method + " " + r.Resolved
}

func paramString(values Params, key string) string {
	value, ok := values[key]
	if !ok || value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

// QuoteAuditReason percent-encodes an audit log reason, keeping "/" and space.
func QuoteAuditReason(reason string) string {
	return quote(reason, "/ ")
}

// quote percent-encodes everything except unreserved characters and the
// bytes listed in safe.
func quote(value, safe string) string {
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if isUnreserved(c) || strings.IndexByte(safe, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	}
	return false
}
