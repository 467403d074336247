package core

import "time"

// BucketState captures the live state of one bucket gate.
type BucketState struct {
	Key       string     `json:"key"`
	Locked    bool       `json:"locked"`
	Waiters   int        `json:"waiters"`
	ReleaseAt *time.Time `json:"release_at,omitempty"`
}

// GlobalState captures the process-wide throttle.
type GlobalState struct {
	Active    bool       `json:"active"`
	Until     *time.Time `json:"until,omitempty"`
	Last429At *time.Time `json:"last_429_at,omitempty"`
}

// GateSnapshot is a point-in-time view of every tracked bucket.
type GateSnapshot struct {
	TakenAt time.Time     `json:"taken_at"`
	Global  GlobalState   `json:"global"`
	Buckets []BucketState `json:"buckets"`
}
