package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/relay/internal/core"
	apperrors "github.com/namelens/relay/internal/errors"
)

func TestParseAssignments(t *testing.T) {
	params, query, err := parseAssignments([]string{"channel_id=123", "?limit=50", "?around=9", "?limit=10", "note=a=b"})
	require.NoError(t, err)

	assert.Equal(t, core.Params{"channel_id": "123", "note": "a=b"}, params)
	assert.Equal(t, []string{"50", "10"}, query["limit"])
	assert.Equal(t, "9", query.Get("around"))
}

func TestParseAssignmentsRejectsBareWords(t *testing.T) {
	for _, arg := range []string{"channel_id", "=1", "?=1"} {
		_, _, err := parseAssignments([]string{arg})
		assert.Error(t, err, arg)
	}
}

func TestParseCall(t *testing.T) {
	call, err := parseCall(`post /channels/{channel_id}/messages channel_id=42 ?wait=true reason=cleanup json={"content": "hello world"}`)
	require.NoError(t, err)

	assert.Equal(t, "POST", call.Route.Method)
	assert.Equal(t, "/channels/42/messages", call.Route.Resolved)
	assert.Equal(t, "42", call.Route.ChannelID)
	assert.Equal(t, []string{"true"}, call.Query["wait"])
	assert.Equal(t, "cleanup", call.Reason)
	assert.JSONEq(t, `{"content": "hello world"}`, string(call.JSON.(json.RawMessage)))
}

func TestParseCallWithoutBody(t *testing.T) {
	call, err := parseCall("GET /guilds/{guild_id}/bans guild_id=7")
	require.NoError(t, err)

	assert.Equal(t, "GET::7:/guilds/{guild_id}/bans", call.Route.Bucket())
	assert.Nil(t, call.JSON)
	assert.Empty(t, call.Query)
	assert.Empty(t, call.Reason)
}

func TestParseCallErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"missing template", "GET"},
		{"unresolved placeholder", "GET /channels/{channel_id}"},
		{"relative path", "GET channels"},
		{"bad assignment", "GET /users/@me oops"},
		{"bad json", "POST /channels/{channel_id}/messages channel_id=1 json={nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCall(tt.line)
			assert.Error(t, err)
		})
	}
}

func TestParseCallPlaceholderNamedReason(t *testing.T) {
	call, err := parseCall("GET /reasons/{reason} reason=spam")
	require.NoError(t, err)
	assert.Equal(t, "/reasons/spam", call.Route.Resolved)
	assert.Empty(t, call.Reason)
}

func TestParseBatch(t *testing.T) {
	input := `
# warm-up
GET /users/@me

GET /channels/{channel_id} channel_id=1
DELETE /channels/{channel_id}/messages/{message_id} channel_id=1 message_id=2 reason=spam
`
	calls, err := parseBatch(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, calls, 3)

	assert.Equal(t, "GET /users/@me", calls[0].Route.String())
	assert.Equal(t, "DELETE", calls[2].Route.Method)
	assert.Equal(t, "spam", calls[2].Reason)
}

func TestParseBatchReportsLineNumber(t *testing.T) {
	_, err := parseBatch(strings.NewReader("GET /users/@me\n\nGET /channels/{channel_id}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
	assert.ErrorIs(t, err, core.ErrInvalidRoute)
}

func TestNewNonce(t *testing.T) {
	first := newNonce()
	second := newNonce()

	assert.Len(t, first, maxNonceLength)
	assert.NotContains(t, first, "-")
	assert.NotEqual(t, first, second)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "(not set)", maskToken(""))
	assert.Equal(t, "(set)", maskToken("short"))
	assert.Equal(t, "****wxyz", maskToken("abcdefghijklmnopqrstuvwxyz"))
}

func TestExitCodeFor(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		err  error
		want foundry.ExitCode
	}{
		{"plain error", errors.New("boom"), foundry.ExitFailure},
		{"config invalid", apperrors.NewConfigInvalidError("bad"), foundry.ExitConfigInvalid},
		{"retries exhausted", apperrors.FromDispatchError(ctx, core.ErrRetriesExhausted), foundry.ExitExternalServiceUnavailable},
		{"timeout", apperrors.FromDispatchError(ctx, context.DeadlineExceeded), foundry.ExitExternalServiceUnavailable},
		{"forbidden", apperrors.FromDispatchError(ctx, core.ErrForbidden), foundry.ExitFailure},
		{"invalid route", apperrors.FromDispatchError(ctx, core.ErrInvalidRoute), foundry.ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeFor(tt.err))
		})
	}
}

func TestFetchSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/buckets", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"global": {"active": false}, "buckets": [{"key": "GET:1::/channels/{channel_id}", "locked": true, "waiters": 2}]}`))
	}))
	defer srv.Close()

	snapshot, err := fetchSnapshot(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.Len(t, snapshot.Buckets, 1)
	assert.True(t, snapshot.Buckets[0].Locked)
	assert.Equal(t, 2, snapshot.Buckets[0].Waiters)
}

func TestFetchSnapshotServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := fetchSnapshot(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(err))
}
