package engine

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/namelens/relay/internal/core"
)

// Rate limit response headers.
const (
	HeaderRemaining  = "X-Ratelimit-Remaining"
	HeaderReset      = "X-Ratelimit-Reset"
	HeaderResetAfter = "X-Ratelimit-Reset-After"
	HeaderRetryAfter = "Retry-After"
)

// DefaultRetryAfter is used when a 429 carries no usable delay.
const DefaultRetryAfter = time.Second

// DefaultReleaseOverrides holds endpoints whose reset header under-reports
// the real window.
var DefaultReleaseOverrides = map[string]time.Duration{
	"PUT /channels/{channel_id}/messages/{message_id}/reactions/{emoji}/@me":           250 * time.Millisecond,
	"DELETE /channels/{channel_id}/messages/{message_id}/reactions/{emoji}/{member_id}": 250 * time.Millisecond,
}

// ReleaseOverrides maps route keys ("METHOD /template") to a fixed release
// delay used instead of the reset header once the bucket is exhausted.
type ReleaseOverrides struct {
	mu     sync.RWMutex
	delays map[string]time.Duration
}

// NewReleaseOverrides returns a table seeded with DefaultReleaseOverrides.
func NewReleaseOverrides() *ReleaseOverrides {
	o := &ReleaseOverrides{delays: make(map[string]time.Duration, len(DefaultReleaseOverrides))}
	for key, delay := range DefaultReleaseOverrides {
		o.delays[normalizeRouteKey(key)] = delay
	}
	return o
}

// Set registers or replaces an override. A non-positive delay removes it.
func (o *ReleaseOverrides) Set(key string, delay time.Duration) {
	if o == nil {
		return
	}
	key = normalizeRouteKey(key)
	if key == "" {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.delays == nil {
		o.delays = make(map[string]time.Duration)
	}
	if delay <= 0 {
		delete(o.delays, key)
		return
	}
	o.delays[key] = delay
}

// Apply merges overrides, typically from configuration.
func (o *ReleaseOverrides) Apply(overrides map[string]time.Duration) {
	for key, delay := range overrides {
		o.Set(key, delay)
	}
}

// Lookup returns the override for a route.
func (o *ReleaseOverrides) Lookup(route core.Route) (time.Duration, bool) {
	if o == nil {
		return 0, false
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	delay, ok := o.delays[normalizeRouteKey(route.Key())]
	return delay, ok
}

// normalizeRouteKey folds case the way viper does for map keys, so config
// entries match whatever case the route template was written in.
func normalizeRouteKey(key string) string {
	fields := strings.Fields(key)
	if len(fields) != 2 {
		return ""
	}
	return strings.ToUpper(fields[0]) + " " + strings.ToLower(fields[1])
}

// bucketExhausted reports whether the response says no requests remain.
func bucketExhausted(resp *http.Response) bool {
	if resp == nil || resp.StatusCode == http.StatusTooManyRequests {
		return false
	}
	remaining := strings.TrimSpace(resp.Header.Get(HeaderRemaining))
	if remaining == "" {
		return false
	}
	value, err := strconv.ParseFloat(remaining, 64)
	return err == nil && value <= 0
}

// resetDelay computes how long until the bucket refills. The relative
// Reset-After header wins; otherwise the absolute Reset is measured against
// the response Date, falling back to now.
func resetDelay(header http.Header, now time.Time) time.Duration {
	if header == nil {
		return 0
	}

	if raw := strings.TrimSpace(header.Get(HeaderResetAfter)); raw != "" {
		if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
			return clampDelay(secondsToDuration(seconds))
		}
	}

	raw := strings.TrimSpace(header.Get(HeaderReset))
	if raw == "" {
		return 0
	}
	epoch, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	sec, frac := math.Modf(epoch)
	reset := time.Unix(int64(sec), int64(frac*float64(time.Second)))

	reference := now
	if date := header.Get("Date"); date != "" {
		if parsed, err := http.ParseTime(date); err == nil {
			reference = parsed
		}
	}

	return clampDelay(reset.Sub(reference))
}

// retryAfterHeader parses Retry-After as seconds or an HTTP date.
func retryAfterHeader(header http.Header, now time.Time) (time.Duration, bool) {
	if header == nil {
		return 0, false
	}

	retry := strings.TrimSpace(header.Get(HeaderRetryAfter))
	if retry == "" {
		return 0, false
	}

	if seconds, err := strconv.ParseFloat(retry, 64); err == nil {
		return clampDelay(secondsToDuration(seconds)), true
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		return clampDelay(parsed.Sub(now)), true
	}

	return 0, false
}

// retryAfterBody reads retry_after (milliseconds) and global from a 429 body.
func retryAfterBody(data any) (time.Duration, bool, bool) {
	body, ok := data.(map[string]any)
	if !ok {
		return 0, false, false
	}

	global, _ := body["global"].(bool)

	switch value := body["retry_after"].(type) {
	case float64:
		return clampDelay(time.Duration(value * float64(time.Millisecond))), global, true
	case string:
		if ms, err := strconv.ParseFloat(value, 64); err == nil {
			return clampDelay(time.Duration(ms * float64(time.Millisecond))), global, true
		}
	}

	return 0, global, false
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func clampDelay(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
