package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/relay/internal/core"
	"github.com/namelens/relay/internal/core/engine"
)

type stubDispatcher struct {
	mu       sync.Mutex
	routes   []core.Route
	options  []engine.RequestOptions
	response *core.Response
	err      error
	snapshot core.GateSnapshot
}

func (s *stubDispatcher) Request(ctx context.Context, route core.Route, opts engine.RequestOptions) (*core.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes = append(s.routes, route)
	s.options = append(s.options, opts)
	return s.response, s.err
}

func (s *stubDispatcher) Snapshot() core.GateSnapshot {
	return s.snapshot
}

func postDispatch(handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/v1/dispatch", strings.NewReader(body)))
	return rec
}

func TestDispatchHandlerForwardsRequest(t *testing.T) {
	dispatcher := &stubDispatcher{response: &core.Response{
		StatusCode: http.StatusOK,
		Bucket:     "POST:10::/channels/{channel_id}/messages",
		Attempts:   2,
		Data:       map[string]any{"id": "99"},
		JSON:       true,
	}}

	rec := postDispatch(DispatchHandler(dispatcher), `{
		"method": "post",
		"path": "/channels/{channel_id}/messages",
		"params": {"channel_id": "10"},
		"query": {"wait": ["true"]},
		"json": {"content": "hi"},
		"reason": "cleanup"
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DispatchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, 2, resp.Attempts)
	assert.Equal(t, map[string]any{"id": "99"}, resp.Data)

	require.Len(t, dispatcher.routes, 1)
	route := dispatcher.routes[0]
	assert.Equal(t, http.MethodPost, route.Method)
	assert.Equal(t, "/channels/10/messages", route.Resolved)
	assert.Equal(t, "10", route.ChannelID)

	opts := dispatcher.options[0]
	assert.Equal(t, "cleanup", opts.Reason)
	assert.Equal(t, "true", opts.Query.Get("wait"))
	assert.JSONEq(t, `{"content":"hi"}`, string(opts.JSON.(json.RawMessage)))
}

func TestDispatchHandlerOmitsNullJSON(t *testing.T) {
	dispatcher := &stubDispatcher{response: &core.Response{StatusCode: http.StatusNoContent}}

	rec := postDispatch(DispatchHandler(dispatcher), `{"method":"DELETE","path":"/channels/{channel_id}","params":{"channel_id":"1"},"json":null}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, dispatcher.options[0].JSON)
}

func TestDispatchHandlerRejectsBadInput(t *testing.T) {
	dispatcher := &stubDispatcher{}
	handler := DispatchHandler(dispatcher)

	assert.Equal(t, http.StatusBadRequest, postDispatch(handler, `{"method":`).Code)
	assert.Equal(t, http.StatusBadRequest, postDispatch(handler, `{"method":"GET","path":"/users/@me","extra":1}`).Code)
	assert.Equal(t, http.StatusBadRequest, postDispatch(handler, `{"method":"GET","path":"/channels/{channel_id}"}`).Code)
	assert.Empty(t, dispatcher.routes)
}

func TestDispatchHandlerMapsUpstreamErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&core.HTTPError{StatusCode: http.StatusForbidden}, http.StatusForbidden, "FORBIDDEN"},
		{&core.HTTPError{StatusCode: http.StatusNotFound}, http.StatusNotFound, "NOT_FOUND"},
		{&core.HTTPError{StatusCode: http.StatusBadGateway, Exhausted: true, Attempts: 5}, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
	}

	for _, tc := range cases {
		dispatcher := &stubDispatcher{err: tc.err}
		rec := postDispatch(DispatchHandler(dispatcher), `{"method":"GET","path":"/users/@me"}`)
		assert.Equal(t, tc.status, rec.Code)

		var body struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, tc.code, body.Error.Code)
	}
}

func TestBucketsHandler(t *testing.T) {
	releaseAt := time.Now().Add(time.Second).UTC()
	dispatcher := &stubDispatcher{snapshot: core.GateSnapshot{
		TakenAt: time.Now().UTC(),
		Buckets: []core.BucketState{{Key: "GET:1::/channels/{channel_id}", Locked: true, Waiters: 2, ReleaseAt: &releaseAt}},
	}}

	rec := httptest.NewRecorder()
	BucketsHandler(dispatcher)(rec, httptest.NewRequest(http.MethodGet, "/v1/buckets", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot core.GateSnapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snapshot))
	require.Len(t, snapshot.Buckets, 1)
	assert.Equal(t, 2, snapshot.Buckets[0].Waiters)
	assert.True(t, snapshot.Buckets[0].Locked)
}

func TestHandlersWithoutDispatcher(t *testing.T) {
	rec := httptest.NewRecorder()
	BucketsHandler(nil)(rec, httptest.NewRequest(http.MethodGet, "/v1/buckets", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	assert.Equal(t, http.StatusServiceUnavailable, postDispatch(DispatchHandler(nil), `{}`).Code)
}
