package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/namelens/relay/internal/core"
)

// OutcomeKind classifies a single attempt.
type OutcomeKind int

const (
	// OutcomeSuccess is a 2xx response.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeRateLimited is a 429; retry after Delay.
	OutcomeRateLimited
	// OutcomeTransient is a 500 or 502; retry after backoff.
	OutcomeTransient
	// OutcomeFailed is any other status; terminal.
	OutcomeFailed
	// OutcomeNetworkError is a transport failure; terminal.
	OutcomeNetworkError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeTransient:
		return "transient"
	case OutcomeFailed:
		return "failed"
	case OutcomeNetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// Attempt is one try of a pending request.
type Attempt struct {
	Route  core.Route
	URL    string
	Header http.Header
	Body   []byte
	Number int

	// ReleaseAfter overrides the reset header when the bucket is exhausted.
	ReleaseAfter time.Duration
}

// Outcome is the interpreted result of one attempt.
type Outcome struct {
	Kind     OutcomeKind
	Response *core.Response
	Err      error

	// Delay and Global are set for OutcomeRateLimited.
	Delay  time.Duration
	Global bool

	// Exhausted is set when the response reported zero remaining requests;
	// the bucket must stay locked for ReleaseAfter.
	Exhausted    bool
	ReleaseAfter time.Duration
}

// Executor performs single HTTP attempts and interprets the response.
type Executor struct {
	Client    *http.Client
	Overrides *ReleaseOverrides
	Clock     func() time.Time
}

// Execute sends one attempt. The network call is not cancelled by ctx once
// started; callers abandon requests before dispatch, not mid-flight.
func (e *Executor) Execute(ctx context.Context, attempt Attempt) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	method := attempt.Route.Method

	var body io.Reader
	if attempt.Body != nil {
		body = bytes.NewReader(attempt.Body)
	}

	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), method, attempt.URL, body)
	if err != nil {
		return Outcome{Kind: OutcomeNetworkError, Err: &core.NetworkError{Method: method, URL: attempt.URL, Err: err}}
	}
	for key, values := range attempt.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	started := e.now()
	resp, err := e.client().Do(req)
	if err != nil {
		return Outcome{Kind: OutcomeNetworkError, Err: &core.NetworkError{Method: method, URL: attempt.URL, Err: err}}
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{Kind: OutcomeNetworkError, Err: &core.NetworkError{Method: method, URL: attempt.URL, Err: err}}
	}

	parsed := &core.Response{
		StatusCode: resp.StatusCode,
		Method:     method,
		URL:        attempt.URL,
		Bucket:     attempt.Route.Bucket(),
		Header:     resp.Header,
		Raw:        raw,
		Attempts:   attempt.Number + 1,
		Duration:   e.now().Sub(started),
		ReceivedAt: e.now(),
	}
	parsed.Data, parsed.JSON = jsonOrText(resp.Header, raw)

	outcome := Outcome{Response: parsed}
	if bucketExhausted(resp) {
		outcome.Exhausted = true
		outcome.ReleaseAfter = e.releaseDelay(attempt, resp.Header)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		outcome.Kind = OutcomeSuccess
	case resp.StatusCode == http.StatusTooManyRequests:
		outcome.Kind = OutcomeRateLimited
		delay, global, ok := retryAfterBody(parsed.Data)
		if !ok {
			if fromHeader, found := retryAfterHeader(resp.Header, e.now()); found {
				delay = fromHeader
			} else {
				delay = DefaultRetryAfter
			}
		}
		outcome.Delay = delay
		outcome.Global = global
	case resp.StatusCode == http.StatusInternalServerError || resp.StatusCode == http.StatusBadGateway:
		outcome.Kind = OutcomeTransient
	default:
		outcome.Kind = OutcomeFailed
		httpErr := core.NewHTTPError(parsed, attempt.Route.Bucket())
		httpErr.Attempts = attempt.Number + 1
		outcome.Err = httpErr
	}

	return outcome
}

func (e *Executor) releaseDelay(attempt Attempt, header http.Header) time.Duration {
	if attempt.ReleaseAfter > 0 {
		return attempt.ReleaseAfter
	}
	if delay, ok := e.Overrides.Lookup(attempt.Route); ok {
		return delay
	}
	return resetDelay(header, e.now())
}

func (e *Executor) client() *http.Client {
	if e != nil && e.Client != nil {
		return e.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (e *Executor) now() time.Time {
	if e != nil && e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}

// jsonOrText decodes the body as JSON when the response says so, and
// returns it as text otherwise or when decoding fails.
func jsonOrText(header http.Header, raw []byte) (any, bool) {
	mediaType, _, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return string(raw), false
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return string(raw), false
	}
	return value, true
}
