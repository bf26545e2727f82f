package match

import (
	"github.com/duelarena/backend/internal/props"
)

// FromSnapshot rebuilds machine state from the replicated property bag. Used
// when a peer inherits the authority role or joins mid-match: no in-flight
// broadcast is assumed to have survived, so everything is re-derived from
// the durable store.
//
// Per-round history is replicated only as tallies, so the record list is
// reconstructed with sequential numbering: seat-A wins first, then seat-B
// wins, then draws to cover any remaining completed rounds. Tallies computed
// from the reconstruction match the replicated scores exactly.
func FromSnapshot(m *props.Mirror, rules Rules) State {
	s := NewState(rules)
	s.Phase = Phase(m.GetString(props.KeyPhase, string(PhaseInitializing)))
	s.Round = m.GetInt(props.KeyCurrentRound, 0)
	s.RoundEnd = m.GetDuration(props.KeyRoundEnd, 0)
	s.RoundActive = m.GetBool(props.KeyRoundActive)
	s.Winner = Outcome(m.GetString(props.KeyMatchWinner, ""))
	s.EndReason = Reason(m.GetString(props.KeyEndReason, ""))

	if s.RoundActive && s.RoundEnd > 0 {
		s.RoundStart = s.RoundEnd - rules.RoundDuration
	}

	a := m.GetInt(props.KeyScoreA, 0)
	b := m.GetInt(props.KeyScoreB, 0)
	completed := s.Round - 1
	if s.Phase == PhaseRoundEnd || s.Phase == PhaseMatchEnd {
		completed = s.Round
	}
	if completed < a+b {
		completed = a + b
	}

	n := 0
	appendRec := func(count int, w Outcome) {
		for i := 0; i < count; i++ {
			n++
			s.Records = append(s.Records, RoundRecord{Number: n, Winner: w})
		}
	}
	appendRec(a, OutcomeA)
	appendRec(b, OutcomeB)
	appendRec(completed-a-b, OutcomeDraw)
	return s
}
