// Package protocol defines the remote action vocabulary peers exchange
// through a session: low-latency, non-durable cues addressed to one peer,
// everyone else, or the whole session. Anything that must survive a late
// join travels as a replicated property instead.
package protocol

import (
	"time"

	"github.com/duelarena/backend/internal/match"
)

type Action interface{ isAction() }

// SpawnNow tells every other peer to instantiate its own entity. It is only
// a signal; no peer ever spawns on behalf of another.
type SpawnNow struct{}

// PhaseChanged mirrors an authority-side phase transition to replicas.
type PhaseChanged struct {
	Phase match.Phase `json:"phase"`
	Round int         `json:"round"`
}

// RoundEnded announces a resolved round.
type RoundEnded struct {
	Round  int           `json:"round"`
	Winner match.Outcome `json:"winner"`
	Reason match.Reason  `json:"reason"`
}

// RequestRoundEnd asks the authority to finish the current round. Replicas
// never end a round themselves; the authority is the sole acceptor and
// ignores requests for rounds that have already been resolved.
type RequestRoundEnd struct {
	Round  int           `json:"round"`
	Winner match.Outcome `json:"winner"`
	Reason match.Reason  `json:"reason"`
}

// ResetForRound tells spawned entities to reset transient per-round state
// (position, health, ability charges). Entities are reused, not re-spawned.
type ResetForRound struct{}

// RoundStarted carries the replicated end timestamp redundantly for clients
// that want the cue without a property read.
type RoundStarted struct {
	Round  int           `json:"round"`
	EndsAt time.Duration `json:"endsAt"`
}

func (SpawnNow) isAction()        {}
func (PhaseChanged) isAction()    {}
func (RoundEnded) isAction()      {}
func (RequestRoundEnd) isAction() {}
func (ResetForRound) isAction()   {}
func (RoundStarted) isAction()    {}

type TargetKind string

const (
	TargetAll       TargetKind = "all"
	TargetOthers    TargetKind = "others"
	TargetAuthority TargetKind = "authority"
	TargetPeer      TargetKind = "peer"
)

// Target addresses an action.
type Target struct {
	Kind   TargetKind `json:"kind"`
	PeerID string     `json:"peerId,omitempty"`
}

func All() Target           { return Target{Kind: TargetAll} }
func Others() Target        { return Target{Kind: TargetOthers} }
func Authority() Target     { return Target{Kind: TargetAuthority} }
func Peer(id string) Target { return Target{Kind: TargetPeer, PeerID: id} }
