package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/relay/internal/core"
)

func httpError(status int) *core.HTTPError {
	return &core.HTTPError{StatusCode: status, Bucket: "GET:1::/channels/{channel_id}", Code: 50001}
}

func TestFromDispatchError(t *testing.T) {
	exhausted := httpError(http.StatusBadGateway)
	exhausted.Exhausted = true
	exhausted.Attempts = 5

	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"forbidden", httpError(http.StatusForbidden), CodeForbidden, http.StatusForbidden},
		{"not found", fmt.Errorf("get: %w", httpError(http.StatusNotFound)), CodeNotFound, http.StatusNotFound},
		{"login", fmt.Errorf("%w: %w", core.ErrLoginFailure, httpError(http.StatusUnauthorized)), CodeUnauthorized, http.StatusUnauthorized},
		{"exhausted", exhausted, CodeServiceUnavailable, http.StatusServiceUnavailable},
		{"invalid route", fmt.Errorf("%w: missing channel_id", core.ErrInvalidRoute), CodeInvalidInput, http.StatusBadRequest},
		{"cancelled", context.Canceled, CodeTimeout, http.StatusGatewayTimeout},
		{"network", &core.NetworkError{Method: http.MethodGet, URL: "https://api.example", Err: fmt.Errorf("refused")}, CodeExternalService, http.StatusBadGateway},
		{"bad request", httpError(http.StatusBadRequest), CodeExternalService, http.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			envelope := FromDispatchError(context.Background(), tc.err)
			require.NotNil(t, envelope)
			assert.Equal(t, tc.code, envelope.Code)
			assert.Equal(t, tc.status, HTTPStatusFromEnvelope(envelope))
			assert.NotEmpty(t, envelope.CorrelationID)
		})
	}

	assert.Nil(t, FromDispatchError(context.Background(), nil))
}

func TestFromDispatchErrorCarriesUpstreamContext(t *testing.T) {
	err := httpError(http.StatusForbidden)
	err.Attempts = 1

	envelope := FromDispatchError(context.Background(), err)
	details := ResponseDetails(envelope)
	assert.EqualValues(t, http.StatusForbidden, details["upstream_status"])
	assert.Equal(t, "GET:1::/channels/{channel_id}", details["bucket"])
	assert.EqualValues(t, 50001, details["api_code"])
}

func TestEnsureEnvelope(t *testing.T) {
	assert.Equal(t, CodeInternal, EnsureEnvelope(nil).Code)
	assert.Equal(t, CodeInternal, EnsureEnvelope(fmt.Errorf("boom")).Code)

	original := NewValidationError("bad")
	assert.Same(t, original, EnsureEnvelope(original))
}

func TestRespondWithEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/dispatch", nil)

	RespondWithEnvelope(rec, req, FromDispatchError(req.Context(), httpError(http.StatusNotFound)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodeNotFound, body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)
}
