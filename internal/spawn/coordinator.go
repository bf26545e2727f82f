// Package spawn sequences the one-time creation of each peer's controlled
// entity. Spawns are always self-performed: the SpawnNow broadcast is only a
// signal, and a duplicate signal must never produce a second entity.
package spawn

import (
	"sort"
	"time"
)

type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Assignment pins a peer to a side for the duration of a match. Completed
// flips false→true exactly once; it is never reset for a new round, only for
// a brand-new match.
type Assignment struct {
	PeerID    string
	Side      Side
	Completed bool
}

// Coordinator tracks spawn progress for one match. Every peer runs one to
// guard its own spawn; the authority additionally tracks acknowledgments
// from all expected peers against a deadline.
type Coordinator struct {
	self        string
	selfSpawned bool
	expected    map[string]*Assignment
	deadline    time.Duration
}

func NewCoordinator(self string) *Coordinator {
	return &Coordinator{self: self}
}

// Expect registers the full assignment set and the ack deadline. Authority
// only; called once per match.
func (c *Coordinator) Expect(assignments []Assignment, deadline time.Duration) {
	c.expected = make(map[string]*Assignment, len(assignments))
	for _, a := range assignments {
		a := a
		c.expected[a.PeerID] = &a
	}
	c.deadline = deadline
}

// MarkSelfSpawned reports whether the caller should instantiate its entity:
// true on the first call per match, false on every retried or duplicated
// signal after that.
func (c *Coordinator) MarkSelfSpawned() bool {
	if c.selfSpawned {
		return false
	}
	c.selfSpawned = true
	return true
}

func (c *Coordinator) SelfSpawned() bool { return c.selfSpawned }

// Ack records a peer's spawn acknowledgment. Unknown peers are ignored.
func (c *Coordinator) Ack(peerID string) {
	if a, ok := c.expected[peerID]; ok {
		a.Completed = true
	}
}

func (c *Coordinator) AllAcked() bool {
	if len(c.expected) == 0 {
		return false
	}
	for _, a := range c.expected {
		if !a.Completed {
			return false
		}
	}
	return true
}

// Missing lists the peers that have not acknowledged, in stable order.
func (c *Coordinator) Missing() []string {
	var out []string
	for id, a := range c.expected {
		if !a.Completed {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (c *Coordinator) Deadline() time.Duration { return c.deadline }

// Side reports the assigned side for a peer, if the authority registered one.
func (c *Coordinator) Side(peerID string) (Side, bool) {
	if a, ok := c.expected[peerID]; ok {
		return a.Side, true
	}
	return "", false
}

// Reset clears all progress. Only a brand-new match resets spawn state; a
// round restart reuses the already-spawned entities.
func (c *Coordinator) Reset() {
	c.selfSpawned = false
	c.expected = nil
	c.deadline = 0
}
