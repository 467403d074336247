package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/namelens/relay/internal/core"
	"github.com/namelens/relay/internal/metrics"
)

// Gate serializes requests per bucket key.
//
// Buckets are created on first use and dropped once no caller holds or
// waits on them, so the table only grows with concurrent distinct buckets.
type Gate struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	global  *GlobalThrottle
	Clock   func() time.Time

	// report receives the bucket count whenever it changes, under mu.
	report func(tracked int)
}

type bucket struct {
	key       string
	slot      chan struct{}
	refs      int
	releaseAt time.Time
}

// NewGate returns a gate with an open global throttle.
func NewGate() *Gate {
	return &Gate{
		buckets: make(map[string]*bucket),
		global:  NewGlobalThrottle(),
		report:  metrics.SetTrackedBuckets,
	}
}

// Global returns the process-wide throttle shared by every bucket.
func (g *Gate) Global() *GlobalThrottle {
	return g.global
}

// Acquire blocks until the bucket is free or ctx is done. The returned lease
// must be released exactly once, either immediately or deferred.
func (g *Gate) Acquire(ctx context.Context, key string) (*Lease, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	b := g.ref(key)
	select {
	case b.slot <- struct{}{}:
		return &Lease{gate: g, bucket: b}, nil
	case <-ctx.Done():
		g.unref(b)
		return nil, ctx.Err()
	}
}

// Len reports how many buckets are currently tracked.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.buckets)
}

// Snapshot returns the state of every tracked bucket sorted by key.
func (g *Gate) Snapshot() core.GateSnapshot {
	g.mu.Lock()
	states := make([]core.BucketState, 0, len(g.buckets))
	for _, b := range g.buckets {
		locked := len(b.slot) == 1
		waiters := b.refs
		if locked {
			waiters--
		}
		state := core.BucketState{
			Key:     b.key,
			Locked:  locked,
			Waiters: waiters,
		}
		if !b.releaseAt.IsZero() {
			at := b.releaseAt
			state.ReleaseAt = &at
		}
		states = append(states, state)
	}
	g.mu.Unlock()

	sort.Slice(states, func(i, j int) bool { return states[i].Key < states[j].Key })

	return core.GateSnapshot{
		TakenAt: g.now(),
		Global:  g.global.State(),
		Buckets: states,
	}
}

func (g *Gate) ref(key string) *bucket {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.buckets == nil {
		g.buckets = make(map[string]*bucket)
	}
	b, ok := g.buckets[key]
	if !ok {
		b = &bucket{key: key, slot: make(chan struct{}, 1)}
		g.buckets[key] = b
		g.reportLocked()
	}
	b.refs++
	return b
}

func (g *Gate) unref(b *bucket) {
	g.mu.Lock()
	defer g.mu.Unlock()

	b.refs--
	if b.refs <= 0 && g.buckets[b.key] == b {
		delete(g.buckets, b.key)
		g.reportLocked()
	}
}

func (g *Gate) reportLocked() {
	if g.report != nil {
		g.report(len(g.buckets))
	}
}

func (g *Gate) setReleaseAt(b *bucket, at time.Time) {
	g.mu.Lock()
	b.releaseAt = at
	g.mu.Unlock()
}

func (g *Gate) now() time.Time {
	if g != nil && g.Clock != nil {
		return g.Clock()
	}
	return time.Now().UTC()
}

// Lease is a held bucket slot.
type Lease struct {
	gate   *Gate
	bucket *bucket
	once   sync.Once
}

// Key returns the bucket key this lease holds.
func (l *Lease) Key() string {
	return l.bucket.key
}

// Release frees the bucket now. Calling it again is a no-op.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.gate.setReleaseAt(l.bucket, time.Time{})
		<-l.bucket.slot
		l.gate.unref(l.bucket)
	})
}

// DeferRelease keeps the bucket locked for d and then frees it. The timer is
// owned by the gate, so the caller may return immediately.
func (l *Lease) DeferRelease(d time.Duration) {
	if d <= 0 {
		l.Release()
		return
	}
	l.gate.setReleaseAt(l.bucket, l.gate.now().Add(d))
	time.AfterFunc(d, l.Release)
}

// GlobalThrottle is a process-wide flag that is open by default. While a
// global rate limit window is active every dispatch waits for it to reopen.
type GlobalThrottle struct {
	mu        sync.Mutex
	open      chan struct{}
	engaged   int
	until     time.Time
	last429At time.Time
	Clock     func() time.Time

	// report is told when the throttle closes and when it reopens, under mu.
	report func(engaged bool)
}

// NewGlobalThrottle returns an open throttle.
func NewGlobalThrottle() *GlobalThrottle {
	open := make(chan struct{})
	close(open)
	return &GlobalThrottle{open: open, report: metrics.SetGlobalThrottle}
}

// Wait blocks while the throttle is engaged.
func (t *GlobalThrottle) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	t.mu.Lock()
	open := t.open
	t.mu.Unlock()

	select {
	case <-open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsOpen reports whether dispatch may proceed.
func (t *GlobalThrottle) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engaged == 0
}

// Engage closes the throttle for d and schedules it to reopen. Overlapping
// windows keep the throttle closed until the last one ends.
func (t *GlobalThrottle) Engage(d time.Duration) {
	t.mu.Lock()
	now := t.now()
	t.last429At = now
	if until := now.Add(d); until.After(t.until) {
		t.until = until
	}
	if t.engaged == 0 {
		t.open = make(chan struct{})
		t.reportLocked(true)
	}
	t.engaged++
	t.mu.Unlock()

	time.AfterFunc(d, t.lift)
}

func (t *GlobalThrottle) lift() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.engaged == 0 {
		return
	}
	t.engaged--
	if t.engaged == 0 {
		t.until = time.Time{}
		close(t.open)
		t.reportLocked(false)
	}
}

func (t *GlobalThrottle) reportLocked(engaged bool) {
	if t.report != nil {
		t.report(engaged)
	}
}

// State reports the current throttle window.
func (t *GlobalThrottle) State() core.GlobalState {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := core.GlobalState{Active: t.engaged > 0}
	if state.Active && !t.until.IsZero() {
		until := t.until
		state.Until = &until
	}
	if !t.last429At.IsZero() {
		last := t.last429At
		state.Last429At = &last
	}
	return state
}

func (t *GlobalThrottle) now() time.Time {
	if t != nil && t.Clock != nil {
		return t.Clock()
	}
	return time.Now().UTC()
}
