package core

import "time"

// Call is one request in a batch.
type Call struct {
	Route  Route
	Query  map[string][]string
	JSON   any
	Reason string
}

// CallResult pairs a call with its outcome.
type CallResult struct {
	Index     int           `json:"index"`
	Request   string        `json:"request"`
	Bucket    string        `json:"bucket"`
	Response  *Response     `json:"response,omitempty"`
	Error     string        `json:"error,omitempty"`
	Err       error         `json:"-"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// BatchResult summarizes a batch run.
type BatchResult struct {
	Results     []*CallResult `json:"results"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	CompletedAt time.Time     `json:"completed_at"`
	Elapsed     time.Duration `json:"elapsed"`
}
