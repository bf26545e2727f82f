// Package netclock provides the session-wide monotonic clock that round
// timers are derived from. Timestamps are durations since the session's
// start instant, so they are meaningful to every peer regardless of local
// wall-clock skew.
package netclock

import (
	"sync"
	"time"
)

// Clock reports the current session time. Implementations must be monotonic.
type Clock interface {
	Now() time.Duration
}

// Session is the production clock: elapsed time since the session was
// created, measured on the monotonic reading of time.Time.
type Session struct {
	origin time.Time
}

func NewSession() *Session {
	return &Session{origin: time.Now()}
}

func (s *Session) Now() time.Duration {
	return time.Since(s.origin)
}

// Offset builds a clock aligned to a remote session clock: a peer that joins
// a session it does not host receives the session's current timestamp in the
// welcome message and tracks it from there.
type Offset struct {
	base    time.Duration
	joined  time.Time
}

func NewOffset(remoteNow time.Duration) *Offset {
	return &Offset{base: remoteNow, joined: time.Now()}
}

func (o *Offset) Now() time.Duration {
	return o.base + time.Since(o.joined)
}

// Manual is a hand-advanced clock for tests. Safe for concurrent use since
// test goroutines advance it while actor loops read it.
type Manual struct {
	mu  sync.Mutex
	now time.Duration
}

func NewManual() *Manual { return &Manual{} }

func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	m.mu.Unlock()
}

// Remaining derives the time left before end. Every peer computes this
// independently from the replicated end timestamp; nobody accumulates
// per-tick deltas, so there is no drift to reconcile.
func Remaining(end, now time.Duration) time.Duration {
	if end <= now {
		return 0
	}
	return end - now
}
