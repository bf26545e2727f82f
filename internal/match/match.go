// Package match holds the authoritative match/round state machine as a pure
// reducer: Apply takes the current state and a command, and returns the
// events to publish plus the next state. Only the authority peer feeds
// commands through Apply; replica peers mirror whatever phase arrives over
// the wire and never self-transition.
package match

import (
	"errors"
	"slices"
	"time"
)

var ErrBadPhase = errors.New("command not valid in current phase")
var ErrStaleRound = errors.New("round already resolved")
var ErrMatchOver = errors.New("match already completed")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhasePreFight     Phase = "preFight"
	PhaseFighting     Phase = "fighting"
	PhaseRoundEnd     Phase = "roundEnd"
	PhaseMatchEnd     Phase = "matchEnd"
)

// Outcome names the winner of a round or match by seat. Seat A is the peer
// hosting the session when the match starts, seat B the joiner; the mapping
// survives authority migration because it is fixed at spawn time.
type Outcome string

const (
	OutcomeNone Outcome = ""
	OutcomeA    Outcome = "A"
	OutcomeB    Outcome = "B"
	OutcomeDraw Outcome = "draw"
)

type Reason string

const (
	ReasonKnockout Reason = "knockout"
	ReasonTimeout  Reason = "timeout"
	ReasonForfeit  Reason = "forfeit"
	ReasonScore    Reason = "score"
)

type Rules struct {
	RoundDuration time.Duration
	RoundsToWin   int
	Countdown     time.Duration
	RestDelay     time.Duration
	SpawnTimeout  time.Duration
}

func DefaultRules() Rules {
	return Rules{
		RoundDuration: 90 * time.Second,
		RoundsToWin:   2,
		Countdown:     3 * time.Second,
		RestDelay:     4 * time.Second,
		SpawnTimeout:  10 * time.Second,
	}
}

// RoundRecord is immutable once the round has ended. Timestamps are session
// clock readings.
type RoundRecord struct {
	Number    int
	StartedAt time.Duration
	EndedAt   time.Duration
	Winner    Outcome
	Reason    Reason
}

type State struct {
	Phase       Phase
	Round       int // 1-based once the match begins
	RoundStart  time.Duration
	RoundEnd    time.Duration
	RoundActive bool
	Records     []RoundRecord
	Winner      Outcome // set on MatchEnd
	EndReason   Reason  // set on MatchEnd
	Rules       Rules
}

func NewState(rules Rules) State {
	return State{Phase: PhaseInitializing, Rules: rules}
}

type CommandType string

const (
	CmdBeginMatch       CommandType = "BeginMatch"
	CmdCountdownElapsed CommandType = "CountdownElapsed"
	CmdEndRound         CommandType = "EndRound"
	CmdRestElapsed      CommandType = "RestElapsed"
	CmdForfeit          CommandType = "Forfeit"
)

type Command struct {
	Type   CommandType
	At     time.Duration // session clock reading when the trigger fired
	Round  int           // EndRound only: the round the sender believes is live
	Winner Outcome
	Reason Reason
}

type EventType string

const (
	EvtPhaseChanged EventType = "PhaseChanged"
	EvtRoundStarted EventType = "RoundStarted"
	EvtRoundEnded   EventType = "RoundEnded"
	EvtMatchEnded   EventType = "MatchEnded"
	EvtInputEnabled EventType = "InputEnabled"
)

type Event struct {
	Type    EventType
	Phase   Phase
	Round   int
	Winner  Outcome
	Reason  Reason
	EndsAt  time.Duration
	Enabled bool
}

func Apply(s State, cmd Command) ([]Event, State, error) {
	if s.Phase == PhaseMatchEnd {
		return nil, s, ErrMatchOver
	}

	newState := s

	switch cmd.Type {
	case CmdBeginMatch:
		if s.Phase != PhaseInitializing {
			return nil, s, ErrBadPhase
		}
		newState.Phase = PhasePreFight
		newState.Round = 1
		newState.Records = nil
		newState.RoundActive = false
		events := []Event{
			{Type: EvtPhaseChanged, Phase: PhasePreFight, Round: 1},
		}
		return events, newState, nil

	case CmdCountdownElapsed:
		if s.Phase != PhasePreFight {
			return nil, s, ErrBadPhase
		}
		newState.Phase = PhaseFighting
		newState.RoundStart = cmd.At
		newState.RoundEnd = cmd.At + s.Rules.RoundDuration
		newState.RoundActive = true
		events := []Event{
			{Type: EvtPhaseChanged, Phase: PhaseFighting, Round: s.Round},
			{Type: EvtRoundStarted, Round: s.Round, EndsAt: newState.RoundEnd},
			{Type: EvtInputEnabled, Enabled: true},
		}
		return events, newState, nil

	case CmdEndRound:
		// Duplicate or replayed end requests for an already-resolved round
		// are stale, not errors in the fatal sense; callers check ErrStaleRound.
		if cmd.Round != s.Round {
			return nil, s, ErrStaleRound
		}
		if s.Phase != PhaseFighting {
			if s.Phase == PhaseRoundEnd {
				return nil, s, ErrStaleRound
			}
			return nil, s, ErrBadPhase
		}
		rec := RoundRecord{
			Number:    s.Round,
			StartedAt: s.RoundStart,
			EndedAt:   cmd.At,
			Winner:    cmd.Winner,
			Reason:    cmd.Reason,
		}
		newState.Records = append(slices.Clip(s.Records), rec)
		newState.Phase = PhaseRoundEnd
		newState.RoundActive = false
		events := []Event{
			{Type: EvtRoundEnded, Round: s.Round, Winner: cmd.Winner, Reason: cmd.Reason},
			{Type: EvtPhaseChanged, Phase: PhaseRoundEnd, Round: s.Round},
			{Type: EvtInputEnabled, Enabled: false},
		}
		return events, newState, nil

	case CmdRestElapsed:
		if s.Phase != PhaseRoundEnd {
			return nil, s, ErrBadPhase
		}
		if w := DetermineMatchWinner(s.Records, s.Rules.RoundsToWin); w != OutcomeNone {
			newState.Phase = PhaseMatchEnd
			newState.Winner = w
			newState.EndReason = ReasonScore
			events := []Event{
				{Type: EvtMatchEnded, Winner: w, Reason: ReasonScore},
				{Type: EvtPhaseChanged, Phase: PhaseMatchEnd, Round: s.Round},
			}
			return events, newState, nil
		}
		// A drawn final round extends the match: nobody is at the threshold,
		// so another round is played.
		newState.Phase = PhasePreFight
		newState.Round = s.Round + 1
		newState.RoundActive = false
		events := []Event{
			{Type: EvtPhaseChanged, Phase: PhasePreFight, Round: newState.Round},
		}
		return events, newState, nil

	case CmdForfeit:
		events := []Event{}
		if s.RoundActive {
			rec := RoundRecord{
				Number:    s.Round,
				StartedAt: s.RoundStart,
				EndedAt:   cmd.At,
				Winner:    cmd.Winner,
				Reason:    ReasonForfeit,
			}
			newState.Records = append(slices.Clip(s.Records), rec)
			newState.RoundActive = false
			events = append(events, Event{Type: EvtRoundEnded, Round: s.Round, Winner: cmd.Winner, Reason: ReasonForfeit})
			events = append(events, Event{Type: EvtInputEnabled, Enabled: false})
		}
		newState.Phase = PhaseMatchEnd
		newState.Winner = cmd.Winner
		newState.EndReason = ReasonForfeit
		events = append(events,
			Event{Type: EvtMatchEnded, Winner: cmd.Winner, Reason: ReasonForfeit},
			Event{Type: EvtPhaseChanged, Phase: PhaseMatchEnd, Round: s.Round},
		)
		return events, newState, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
