package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPErrorFromJSON(t *testing.T) {
	resp := &Response{
		StatusCode: http.StatusForbidden,
		Method:     http.MethodGet,
		URL:        "https://api.example/guilds/1",
		Data:       map[string]any{"message": "Missing Access", "code": float64(50001)},
		Raw:        []byte(`{"message":"Missing Access","code":50001}`),
		JSON:       true,
	}

	err := NewHTTPError(resp, "GET::1:/guilds/{guild_id}")
	assert.Equal(t, 50001, err.Code)
	assert.Equal(t, "Missing Access", err.Message)
	assert.Equal(t, "403 Forbidden (error code: 50001): Missing Access", err.Error())
	assert.True(t, IsForbidden(err))
	assert.False(t, IsNotFound(err))
	assert.False(t, errors.Is(err, ErrRetriesExhausted))
}

func TestNewHTTPErrorFromText(t *testing.T) {
	resp := &Response{StatusCode: http.StatusNotFound, Data: "  nothing here\n", Raw: []byte("  nothing here\n")}

	err := NewHTTPError(resp, "")
	assert.Equal(t, "nothing here", err.Message)
	assert.Equal(t, "404 Not Found: nothing here", err.Error())
	assert.True(t, IsNotFound(err))
}

func TestHTTPErrorExhausted(t *testing.T) {
	err := NewHTTPError(&Response{StatusCode: http.StatusBadGateway}, "")
	err.Exhausted = true
	err.Attempts = 5

	wrapped := fmt.Errorf("dispatch: %w", err)
	assert.ErrorIs(t, wrapped, ErrRetriesExhausted)
	assert.Equal(t, "502 Bad Gateway after 5 attempts", err.Error())

	httpErr, ok := AsHTTPError(wrapped)
	require.True(t, ok)
	assert.Equal(t, 5, httpErr.Attempts)
}

func TestNetworkError(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("wrap: %w", &NetworkError{Method: http.MethodGet, URL: "https://api.example", Err: cause})

	assert.True(t, IsNetworkError(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsNetworkError(cause))

	_, ok := AsHTTPError(err)
	assert.False(t, ok)
}
