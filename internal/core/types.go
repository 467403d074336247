package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Response is a successfully dispatched API response.
type Response struct {
	StatusCode int         `json:"status_code"`
	Method     string      `json:"method"`
	URL        string      `json:"url"`
	Bucket     string      `json:"bucket"`
	Header     http.Header `json:"-"`

	// Data is the decoded JSON value, or the body text when the response
	// was not application/json.
	Data any    `json:"data"`
	Raw  []byte `json:"-"`
	JSON bool   `json:"json"`

	Attempts   int           `json:"attempts"`
	Duration   time.Duration `json:"duration"`
	ReceivedAt time.Time     `json:"received_at"`
}

// Decode unmarshals the raw body into v.
func (r *Response) Decode(v any) error {
	if r == nil {
		return errors.New("nil response")
	}
	if !r.JSON {
		return errors.New("response body is not JSON")
	}
	return json.Unmarshal(r.Raw, v)
}

// Text returns the body as a string.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Raw)
}

// Field returns a top-level field of a JSON object body.
func (r *Response) Field(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	body, ok := r.Data.(map[string]any)
	if !ok {
		return nil, false
	}
	value, ok := body[name]
	return value, ok
}
