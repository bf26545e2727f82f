package peer

import (
	"github.com/duelarena/backend/internal/match"
	"github.com/duelarena/backend/internal/spawn"
)

// Collaborator is the outward contract toward gameplay code: entities, input
// handling, presentation. The core pushes state transitions through it and
// expects a pure render back; the only feedback path into the state machine
// is Peer.ReportRoundEnd.
//
// Callbacks run on the peer's loop goroutine; implementations should hand
// work off rather than block.
type Collaborator interface {
	// OnSpawn fires exactly once per match, when this peer must instantiate
	// its own controlled entity.
	OnSpawn(assignment spawn.Assignment)
	OnMatchPhaseChanged(phase match.Phase)
	// OnRoundReset fires between rounds; the spawned entity resets position,
	// health and ability charges without being recreated.
	OnRoundReset()
	OnInputEnabledChanged(enabled bool)
}

// NopCollaborator ignores every notification.
type NopCollaborator struct{}

func (NopCollaborator) OnSpawn(spawn.Assignment)        {}
func (NopCollaborator) OnMatchPhaseChanged(match.Phase) {}
func (NopCollaborator) OnRoundReset()                   {}
func (NopCollaborator) OnInputEnabledChanged(bool)      {}
