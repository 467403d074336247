package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/namelens/relay/internal/core"
	"github.com/namelens/relay/internal/core/engine"
	apperrors "github.com/namelens/relay/internal/errors"
)

// maxDispatchBody bounds the proxied request document.
const maxDispatchBody = 8 << 20

// Dispatcher is the part of the API client the server exposes.
type Dispatcher interface {
	Request(ctx context.Context, route core.Route, opts engine.RequestOptions) (*core.Response, error)
	Snapshot() core.GateSnapshot
}

// DispatchRequest is the body of POST /v1/dispatch.
type DispatchRequest struct {
	Method string              `json:"method"`
	Path   string              `json:"path"`
	Params map[string]string   `json:"params,omitempty"`
	Query  map[string][]string `json:"query,omitempty"`
	JSON   json.RawMessage     `json:"json,omitempty"`
	Reason string              `json:"reason,omitempty"`
}

// Route builds the bucketed route the request targets.
func (d DispatchRequest) Route() core.Route {
	params := make(core.Params, len(d.Params))
	for key, value := range d.Params {
		params[key] = value
	}
	return core.NewRoute(d.Method, d.Path, params)
}

// Options converts the payload fields into dispatcher options.
func (d DispatchRequest) Options() engine.RequestOptions {
	opts := engine.RequestOptions{Reason: d.Reason}
	if len(d.Query) > 0 {
		opts.Query = url.Values(d.Query)
	}
	if raw := strings.TrimSpace(string(d.JSON)); raw != "" && raw != "null" {
		opts.JSON = d.JSON
	}
	return opts
}

// DispatchResponse mirrors core.Response for HTTP callers.
type DispatchResponse struct {
	Status   int    `json:"status"`
	Bucket   string `json:"bucket"`
	Attempts int    `json:"attempts"`
	Data     any    `json:"data"`
}

// DispatchHandler proxies one API call through the shared dispatcher, so it
// is subject to the same bucket and global limits as every other caller.
func DispatchHandler(dispatcher Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dispatcher == nil {
			respondWithError(w, r, apperrors.NewServiceUnavailableError("dispatcher not configured"))
			return
		}

		var payload DispatchRequest
		decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDispatchBody))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "malformed dispatch request"))
			return
		}

		route := payload.Route()
		if err := route.Validate(); err != nil {
			respondWithError(w, r, apperrors.FromDispatchError(r.Context(), err))
			return
		}

		resp, err := dispatcher.Request(r.Context(), route, payload.Options())
		if err != nil {
			respondWithError(w, r, apperrors.FromDispatchError(r.Context(), fmt.Errorf("%s: %w", route, err)))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(DispatchResponse{
			Status:   resp.StatusCode,
			Bucket:   resp.Bucket,
			Attempts: resp.Attempts,
			Data:     resp.Data,
		})
	}
}

// BucketsHandler reports the live gate state.
func BucketsHandler(dispatcher Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dispatcher == nil {
			respondWithError(w, r, apperrors.NewServiceUnavailableError("dispatcher not configured"))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(dispatcher.Snapshot())
	}
}

// ThrottleChecker fails readiness while the global rate limit window is open.
type ThrottleChecker struct {
	Dispatcher Dispatcher
}

// CheckHealth implements HealthChecker.
func (c ThrottleChecker) CheckHealth(ctx context.Context) error {
	if c.Dispatcher == nil {
		return fmt.Errorf("dispatcher not configured")
	}
	global := c.Dispatcher.Snapshot().Global
	if global.Active {
		if global.Until != nil {
			return fmt.Errorf("global rate limit active until %s", global.Until.Format("15:04:05.000"))
		}
		return fmt.Errorf("global rate limit active")
	}
	return nil
}
