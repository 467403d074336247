package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/namelens/relay/internal/core"
	"github.com/namelens/relay/internal/metrics"
)

// DefaultMaxAttempts is the attempt budget per dispatch.
const DefaultMaxAttempts = 5

// HeaderAuditLogReason carries the audit log reason for moderation calls.
const HeaderAuditLogReason = "X-Audit-Log-Reason"

// TransientBackoff is the wait after a 500 or 502 on the given zero-based
// attempt: 1s, 3s, 5s, 7s, 9s.
func TransientBackoff(attempt int) time.Duration {
	return time.Duration(1+2*attempt) * time.Second
}

// RequestOptions carries the per-call payload.
type RequestOptions struct {
	// JSON is encoded as the body with Content-Type application/json.
	JSON any

	// Body and ContentType send a pre-encoded payload, e.g. multipart.
	Body        []byte
	ContentType string

	Query  url.Values
	Header http.Header

	// Reason is sent percent-encoded as the audit log reason.
	Reason string

	// ReleaseAfter fixes how long an exhausted bucket stays locked.
	ReleaseAfter time.Duration
}

// Options configures a Dispatcher.
type Options struct {
	BaseURL     string
	Client      *http.Client
	MaxAttempts int

	// GlobalRate paces all attempts in requests per second. Zero disables it.
	GlobalRate  float64
	GlobalBurst int

	ReleaseOverrides map[string]time.Duration
	Logger           *logging.Logger
}

// Dispatcher sends requests through the bucket gate and retries them
// according to the rate limit rules of the API.
type Dispatcher struct {
	BaseURL     string
	Gate        *Gate
	Executor    *Executor
	MaxAttempts int
	Pacer       *rate.Limiter
	Logger      *logging.Logger
	Clock       func() time.Time

	// Backoff and Sleep are replaceable for tests.
	Backoff func(attempt int) time.Duration
	Sleep   func(ctx context.Context, d time.Duration) error
}

// NewDispatcher wires a gate, an executor and the optional global pacer.
func NewDispatcher(opts Options) *Dispatcher {
	overrides := NewReleaseOverrides()
	overrides.Apply(opts.ReleaseOverrides)

	d := &Dispatcher{
		BaseURL:     opts.BaseURL,
		Gate:        NewGate(),
		Executor:    &Executor{Client: opts.Client, Overrides: overrides},
		MaxAttempts: opts.MaxAttempts,
		Logger:      opts.Logger,
	}
	if opts.GlobalRate > 0 {
		burst := opts.GlobalBurst
		if burst < 1 {
			burst = 1
		}
		d.Pacer = rate.NewLimiter(rate.Limit(opts.GlobalRate), burst)
	}
	return d
}

// Dispatch performs one logical request. It holds the route's bucket for the
// whole retry loop and returns the final successful response or a typed error.
func (d *Dispatcher) Dispatch(ctx context.Context, route core.Route, opts RequestOptions) (*core.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := route.Validate(); err != nil {
		return nil, err
	}

	body, header, err := opts.encode()
	if err != nil {
		return nil, err
	}
	target := route.URL(d.BaseURL)
	if len(opts.Query) > 0 {
		target += "?" + opts.Query.Encode()
	}

	gate := d.gate()
	bucket := route.Bucket()
	started := d.now()

	if err := gate.Global().Wait(ctx); err != nil {
		d.record(route, 0, "cancelled", started)
		return nil, err
	}
	lease, err := gate.Acquire(ctx, bucket)
	if err != nil {
		d.record(route, 0, "cancelled", started)
		return nil, err
	}

	var last Outcome
	defer func() {
		d.finish(lease, route, last)
	}()

	maxAttempts := d.maxAttempts()
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := gate.Global().Wait(ctx); err != nil {
			d.record(route, 0, "cancelled", started)
			return nil, err
		}
		if d.Pacer != nil {
			if err := d.Pacer.Wait(ctx); err != nil {
				d.record(route, 0, "cancelled", started)
				return nil, err
			}
		}

		last = d.Executor.Execute(ctx, Attempt{
			Route:        route,
			URL:          target,
			Header:       header,
			Body:         body,
			Number:       attempt,
			ReleaseAfter: opts.ReleaseAfter,
		})

		status := 0
		if last.Response != nil {
			status = last.Response.StatusCode
		}
		d.debug("Request attempt finished",
			zap.String("method", route.Method),
			zap.String("url", target),
			zap.String("bucket", bucket),
			zap.Int("attempt", attempt+1),
			zap.Int("status", status),
			zap.String("outcome", last.Kind.String()))

		final := attempt == maxAttempts-1
		switch last.Kind {
		case OutcomeSuccess:
			d.record(route, status, "success", started)
			return last.Response, nil

		case OutcomeFailed, OutcomeNetworkError:
			d.record(route, status, last.Kind.String(), started)
			return nil, last.Err

		case OutcomeRateLimited:
			metrics.RecordRateLimited(last.Global)
			d.warn("We are being rate limited",
				zap.String("bucket", bucket),
				zap.Duration("retry_after", last.Delay),
				zap.Bool("global", last.Global))

			if last.Global {
				gate.Global().Engage(last.Delay)
				if !final {
					metrics.RecordRetry("global_rate_limit")
				}
				continue
			}
			if final {
				continue
			}
			metrics.RecordRetry("rate_limit")
			if err := d.sleep(ctx, last.Delay); err != nil {
				d.record(route, status, "cancelled", started)
				return nil, err
			}

		case OutcomeTransient:
			if final {
				continue
			}
			backoff := d.backoff(attempt)
			if last.Exhausted && last.ReleaseAfter > backoff {
				backoff = last.ReleaseAfter
			}
			metrics.RecordRetry("server_error")
			d.debug("Server error, retrying",
				zap.String("bucket", bucket),
				zap.Int("status", status),
				zap.Duration("backoff", backoff))
			if err := d.sleep(ctx, backoff); err != nil {
				d.record(route, status, "cancelled", started)
				return nil, err
			}
		}
	}

	httpErr := core.NewHTTPError(last.Response, bucket)
	httpErr.Attempts = maxAttempts
	httpErr.Exhausted = true
	d.record(route, httpErr.StatusCode, "exhausted", started)
	return nil, httpErr
}

// Snapshot reports the live gate state.
func (d *Dispatcher) Snapshot() core.GateSnapshot {
	return d.gate().Snapshot()
}

// finish releases the bucket. A response that reported an empty bucket keeps
// it locked until the reset time.
func (d *Dispatcher) finish(lease *Lease, route core.Route, last Outcome) {
	if last.Exhausted && last.ReleaseAfter > 0 {
		metrics.RecordDeferredRelease()
		d.debug("Bucket exhausted, deferring release",
			zap.String("bucket", lease.Key()),
			zap.String("route", route.Key()),
			zap.Duration("release_after", last.ReleaseAfter))
		lease.DeferRelease(last.ReleaseAfter)
		return
	}
	lease.Release()
}

func (d *Dispatcher) record(route core.Route, status int, outcome string, started time.Time) {
	metrics.RecordDispatch(route.Method, status, outcome, d.now().Sub(started))
}

func (d *Dispatcher) gate() *Gate {
	if d.Gate == nil {
		d.Gate = NewGate()
	}
	return d.Gate
}

func (d *Dispatcher) maxAttempts() int {
	if d.MaxAttempts > 0 {
		return d.MaxAttempts
	}
	return DefaultMaxAttempts
}

func (d *Dispatcher) backoff(attempt int) time.Duration {
	if d.Backoff != nil {
		return d.Backoff(attempt)
	}
	return TransientBackoff(attempt)
}

func (d *Dispatcher) sleep(ctx context.Context, wait time.Duration) error {
	if d.Sleep != nil {
		return d.Sleep(ctx, wait)
	}
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) now() time.Time {
	if d != nil && d.Clock != nil {
		return d.Clock()
	}
	return time.Now().UTC()
}

func (d *Dispatcher) debug(msg string, fields ...zap.Field) {
	if d.Logger != nil {
		d.Logger.Debug(msg, fields...)
	}
}

func (d *Dispatcher) warn(msg string, fields ...zap.Field) {
	if d.Logger != nil {
		d.Logger.Warn(msg, fields...)
	}
}

func (o RequestOptions) encode() ([]byte, http.Header, error) {
	header := make(http.Header, len(o.Header)+2)
	for key, values := range o.Header {
		header[http.CanonicalHeaderKey(key)] = append([]string(nil), values...)
	}

	var body []byte
	switch {
	case o.JSON != nil:
		var buf bytes.Buffer
		encoder := json.NewEncoder(&buf)
		encoder.SetEscapeHTML(false)
		if err := encoder.Encode(o.JSON); err != nil {
			return nil, nil, fmt.Errorf("encode json body: %w", err)
		}
		body = bytes.TrimRight(buf.Bytes(), "\n")
		header.Set("Content-Type", "application/json")
	case o.Body != nil:
		body = o.Body
		if o.ContentType != "" {
			header.Set("Content-Type", o.ContentType)
		}
	}

	if o.Reason != "" {
		header.Set(HeaderAuditLogReason, core.QuoteAuditReason(o.Reason))
	}

	return body, header, nil
}
