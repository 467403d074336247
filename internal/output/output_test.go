package output

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/relay/internal/core"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("md")
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func sampleResponse() *core.Response {
	return &core.Response{
		StatusCode: http.StatusOK,
		Method:     http.MethodGet,
		URL:        "https://api.example/v7/users/@me",
		Bucket:     "GET:::/users/@me",
		Data:       map[string]any{"id": "1", "username": "relay"},
		Raw:        []byte(`{"id":"1","username":"relay"}`),
		JSON:       true,
		Attempts:   2,
		Duration:   1500 * time.Millisecond,
	}
}

func sampleSnapshot() core.GateSnapshot {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	release := now.Add(250 * time.Millisecond)
	until := now.Add(2 * time.Second)
	return core.GateSnapshot{
		TakenAt: now,
		Global:  core.GlobalState{Active: true, Until: &until},
		Buckets: []core.BucketState{
			{Key: "GET:1::/channels/{channel_id}", Locked: true, Waiters: 3, ReleaseAt: &release},
			{Key: "PUT:1::/channels/{channel_id}/messages/{message_id}/reactions/{emoji}/@me"},
		},
	}
}

func sampleBatch() *core.BatchResult {
	notFound := &core.HTTPError{StatusCode: http.StatusNotFound, Message: "Unknown Channel", Attempts: 1}
	return &core.BatchResult{
		Results: []*core.CallResult{
			{Index: 0, Request: "GET /users/@me", Response: sampleResponse(), Duration: 40 * time.Millisecond},
			{Index: 1, Request: "GET /channels/9", Err: notFound, Error: notFound.Error()},
			{Index: 2, Request: "GET /gateway", Err: errors.New("dial tcp: refused"), Error: "dial tcp: refused"},
		},
		Succeeded: 1,
		Failed:    2,
		Elapsed:   2 * time.Second,
	}
}

func TestTableFormatter(t *testing.T) {
	f := NewFormatter(FormatTable)

	rendered, err := f.FormatResponse(sampleResponse())
	require.NoError(t, err)
	assert.Contains(t, rendered, "200 OK")
	assert.Contains(t, rendered, "GET:::/users/@me")
	assert.Contains(t, rendered, `"username": "relay"`)

	rendered, err = f.FormatSnapshot(sampleSnapshot())
	require.NoError(t, err)
	assert.Contains(t, rendered, "GET:1::/channels/{channel_id}")
	assert.Contains(t, rendered, "250ms")
	assert.Contains(t, strings.ToLower(rendered), "throttled 2s")

	rendered, err = f.FormatBatch(sampleBatch())
	require.NoError(t, err)
	assert.Contains(t, rendered, "404 Not Found")
	assert.Contains(t, rendered, "dial tcp: refused")
	assert.Contains(t, strings.ToLower(rendered), "1 ok, 2 failed")
}

func TestTableFormatterTextBody(t *testing.T) {
	resp := &core.Response{StatusCode: http.StatusOK, Raw: []byte("pong\n"), Data: "pong\n"}

	rendered, err := NewFormatter(FormatTable).FormatResponse(resp)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(rendered, "\npong"))

	rendered, err = NewFormatter(FormatTable).FormatResponse(nil)
	require.NoError(t, err)
	assert.Empty(t, rendered)
}

func TestMarkdownFormatter(t *testing.T) {
	f := NewFormatter(FormatMarkdown)

	rendered, err := f.FormatResponse(sampleResponse())
	require.NoError(t, err)
	assert.Contains(t, rendered, "| Status |")
	assert.Contains(t, rendered, "```json")

	rendered, err = f.FormatSnapshot(sampleSnapshot())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rendered, "## Buckets"))

	rendered, err = f.FormatBatch(sampleBatch())
	require.NoError(t, err)
	assert.Contains(t, rendered, "GET /channels/9")
}

func TestJSONFormatter(t *testing.T) {
	f := NewFormatter(FormatJSON)

	rendered, err := f.FormatResponse(sampleResponse())
	require.NoError(t, err)
	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(rendered), &resp))
	assert.EqualValues(t, 200, resp["status_code"])
	assert.EqualValues(t, 2, resp["attempts"])

	rendered, err = f.FormatSnapshot(core.GateSnapshot{})
	require.NoError(t, err)
	assert.Contains(t, rendered, `"buckets": []`)

	rendered, err = f.FormatBatch(sampleBatch())
	require.NoError(t, err)
	var batch core.BatchResult
	require.NoError(t, json.Unmarshal([]byte(rendered), &batch))
	assert.Equal(t, 2, batch.Failed)
	require.Len(t, batch.Results, 3)
	assert.Contains(t, batch.Results[1].Error, "Unknown Channel")
}
