package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownAction = errors.New("unknown action name")

// Envelope is the JSON wire form of an action: a name plus the payload for
// that name. Decoding goes through an explicit name → type table so an
// unknown or malformed action fails loudly at the boundary.
type Envelope struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	NameSpawnNow        = "SpawnNow"
	NamePhaseChanged    = "PhaseChanged"
	NameRoundEnded      = "RoundEnded"
	NameRequestRoundEnd = "RequestRoundEnd"
	NameResetForRound   = "ResetForRound"
	NameRoundStarted    = "RoundStarted"
)

func Encode(a Action) (Envelope, error) {
	var name string
	switch a.(type) {
	case SpawnNow:
		return Envelope{Name: NameSpawnNow}, nil
	case ResetForRound:
		return Envelope{Name: NameResetForRound}, nil
	case PhaseChanged:
		name = NamePhaseChanged
	case RoundEnded:
		name = NameRoundEnded
	case RequestRoundEnd:
		name = NameRequestRoundEnd
	case RoundStarted:
		name = NameRoundStarted
	default:
		return Envelope{}, fmt.Errorf("%w: %T", ErrUnknownAction, a)
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Name: name, Payload: payload}, nil
}

func Decode(e Envelope) (Action, error) {
	switch e.Name {
	case NameSpawnNow:
		return SpawnNow{}, nil
	case NameResetForRound:
		return ResetForRound{}, nil
	case NamePhaseChanged:
		var a PhaseChanged
		return a, json.Unmarshal(e.Payload, &a)
	case NameRoundEnded:
		var a RoundEnded
		return a, json.Unmarshal(e.Payload, &a)
	case NameRequestRoundEnd:
		var a RequestRoundEnd
		return a, json.Unmarshal(e.Payload, &a)
	case NameRoundStarted:
		var a RoundStarted
		return a, json.Unmarshal(e.Payload, &a)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, e.Name)
	}
}
