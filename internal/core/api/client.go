package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"

	"github.com/namelens/relay/internal/core"
	"github.com/namelens/relay/internal/core/engine"
)

const (
	// DefaultBaseURL is the versioned REST root.
	DefaultBaseURL = "https://discordapp.com/api/v7"

	// DefaultWebURL is the web client origin used for the referer header.
	DefaultWebURL = "https://canary.discordapp.com"

	// DefaultUserAgent matches the desktop client.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; WOW64) AppleWebKit/537.36 (KHTML, like Gecko) discord/0.0.179 Chrome/58.0.3029.110 Discord Canary/1.7.9 Safari/537.36"

	// SuperProperties is the base64 client descriptor sent on every request.
	SuperProperties = "eyJvcyI6IldpbmRvd3MiLCJicm93c2VyIjoiRGlzY29yZCBDbGllbnQiLCJyZWxlYXNlX2NoYW5uZWwiOiJjYW5hcnkiLCJjbGllbnRfdmVyc2lvbiI6IjAuMC4xNzkiLCJvc192ZXJzaW9uIjoiMTAuMC4xNTA2MyJ9"

	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 30 * time.Second
)

// Config describes how to build a Client.
type Config struct {
	BaseURL   string
	WebURL    string
	UserAgent string
	Token     string
	Bot       bool
	Timeout   time.Duration

	// Proxy routes every request through the given URL.
	Proxy string

	MaxAttempts      int
	GlobalRate       float64
	GlobalBurst      int
	ReleaseOverrides map[string]time.Duration

	Logger *logging.Logger
}

// Client sends authenticated API requests through a Dispatcher.
type Client struct {
	Dispatcher *engine.Dispatcher
	HTTPClient *http.Client
	WebURL     string
	UserAgent  string

	mu       sync.RWMutex
	token    string
	bot      bool
	ackToken string
}

// New builds a client and its dispatcher.
func New(cfg Config) (*Client, error) {
	httpClient, err := newHTTPClient(cfg.Timeout, cfg.Proxy)
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	dispatcher := engine.NewDispatcher(engine.Options{
		BaseURL:          baseURL,
		Client:           httpClient,
		MaxAttempts:      cfg.MaxAttempts,
		GlobalRate:       cfg.GlobalRate,
		GlobalBurst:      cfg.GlobalBurst,
		ReleaseOverrides: cfg.ReleaseOverrides,
		Logger:           cfg.Logger,
	})

	client := &Client{
		Dispatcher: dispatcher,
		HTTPClient: httpClient,
		WebURL:     cfg.WebURL,
		UserAgent:  cfg.UserAgent,
	}
	client.SetToken(cfg.Token, cfg.Bot)
	return client, nil
}

func newHTTPClient(timeout time.Duration, proxy string) (*http.Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy = strings.TrimSpace(proxy); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

// SetToken replaces the credential. An empty token sends no Authorization.
func (c *Client) SetToken(token string, bot bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = strings.TrimSpace(token)
	c.bot = bot
	c.ackToken = ""
}

// Token returns the current credential.
func (c *Client) Token() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.bot
}

// Request dispatches a route with the client's identity headers.
// Headers already present in opts win.
func (c *Client) Request(ctx context.Context, route core.Route, opts engine.RequestOptions) (*core.Response, error) {
	header := c.headers(route)
	for key, values := range opts.Header {
		header[http.CanonicalHeaderKey(key)] = values
	}
	opts.Header = header
	return c.Dispatcher.Dispatch(ctx, route, opts)
}

// Do performs a batch call.
func (c *Client) Do(ctx context.Context, call core.Call) (*core.Response, error) {
	return c.Request(ctx, call.Route, engine.RequestOptions{
		JSON:   call.JSON,
		Query:  url.Values(call.Query),
		Reason: call.Reason,
	})
}

// Snapshot reports the dispatcher's bucket state.
func (c *Client) Snapshot() core.GateSnapshot {
	return c.Dispatcher.Snapshot()
}

func (c *Client) headers(route core.Route) http.Header {
	header := http.Header{}
	header.Set("User-Agent", c.userAgent())
	header.Set("Referer", c.referer(route))
	header.Set("X-Super-Properties", SuperProperties)

	token, bot := c.Token()
	if token != "" {
		if bot {
			header.Set("Authorization", "Bot "+token)
		} else {
			header.Set("Authorization", token)
		}
	}
	return header
}

func (c *Client) referer(route core.Route) string {
	web := strings.TrimRight(c.WebURL, "/")
	if web == "" {
		web = DefaultWebURL
	}

	switch {
	case route.Channel != nil && route.Channel.GuildID != "":
		return fmt.Sprintf("%s/channels/%s/%s", web, route.Channel.GuildID, route.ChannelID)
	case route.GuildID != "":
		return fmt.Sprintf("%s/channels/%s", web, route.GuildID)
	default:
		return web + "/channels/@me"
	}
}

func (c *Client) userAgent() string {
	if ua := strings.TrimSpace(c.UserAgent); ua != "" {
		return ua
	}
	return DefaultUserAgent
}

// pick copies the allowed keys of fields into a new payload.
func pick(fields map[string]any, allowed ...string) map[string]any {
	payload := make(map[string]any, len(allowed))
	for _, key := range allowed {
		if value, ok := fields[key]; ok {
			payload[key] = value
		}
	}
	return payload
}

// reasonOptions attaches an audit log reason header.
func reasonOptions(reason string) engine.RequestOptions {
	return engine.RequestOptions{Reason: reason}
}
