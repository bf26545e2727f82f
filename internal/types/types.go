package types

import (
	"github.com/duelarena/backend/internal/props"
	"github.com/duelarena/backend/internal/protocol"
	"github.com/duelarena/backend/internal/session"
)

// ClientMessage is what a remote peer sends over the websocket: either a
// replicated property write or an action to route.
type ClientMessage struct {
	Type   string             `json:"type"` // "setProperty" | "action"
	Key    string             `json:"key,omitempty"`
	Value  string             `json:"value,omitempty"`
	Target *protocol.Target   `json:"target,omitempty"`
	Action *protocol.Envelope `json:"action,omitempty"`
}

// ServerMessage is what the session pushes to a remote peer.
type ServerMessage struct {
	Type      string             `json:"type"` // "welcome" | "peerJoined" | "peerLeft" | "property" | "action" | "error"
	You       string             `json:"you,omitempty"`
	Authority string             `json:"authority,omitempty"`
	NowMS     int64              `json:"nowMs,omitempty"`
	Peers     []session.PeerInfo `json:"peers,omitempty"`
	Entries   []props.Entry      `json:"entries,omitempty"`
	Entry     *props.Entry       `json:"entry,omitempty"`
	Peer      *session.PeerInfo  `json:"peer,omitempty"`
	From      string             `json:"from,omitempty"`
	Action    *protocol.Envelope `json:"action,omitempty"`
	Error     string             `json:"error,omitempty"`
}
