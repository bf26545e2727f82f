package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/duelarena/backend/internal/hub"
	"github.com/duelarena/backend/internal/protocol"
	"github.com/duelarena/backend/internal/session"
	"github.com/duelarena/backend/internal/types"
)

// readTimeout bounds each websocket read. It doubles as the liveness check:
// a connection that stays silent this long is dropped, which feeds the
// disconnect-forfeit path instead of waiting on the OS TCP timeout.
var readTimeout = 30 * time.Second

// Handler bridges a remote peer's websocket into its session: outgoing
// session traffic is serialized as ServerMessage frames, incoming frames map
// onto property writes and action sends. The peer-side state machine runs in
// the client; the bridge stays a dumb pipe.
func Handler(h *hub.Hub, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		nick := r.URL.Query().Get("nick")
		peerID := r.URL.Query().Get("peer")
		if peerID == "" {
			peerID = uuid.NewString()
		}

		reply := make(chan *session.Session, 1)
		h.Inbox() <- hub.GetSession{Code: code, Reply: reply}
		sess := <-reply
		if sess == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		log := logger.With(zap.String("session", code), zap.String("peer", peerID))

		out := make(chan session.Outgoing, 32)
		joinReply := make(chan session.JoinResult, 1)
		sess.Inbox() <- session.Join{PeerID: peerID, Nick: nick, Outbox: out, Reply: joinReply}
		var res session.JoinResult
		select {
		case res = <-joinReply:
		case <-r.Context().Done():
			return
		case <-time.After(5 * time.Second):
			// A session that emptied out between lookup and join never
			// answers; fail the request instead of hanging it.
			writeMsg(r.Context(), conn, types.ServerMessage{Type: "error", Error: "session unavailable"})
			return
		}
		if !res.OK {
			writeMsg(r.Context(), conn, types.ServerMessage{Type: "error", Error: res.Reason})
			return
		}
		log.Info("peer connected")
		defer func() {
			sess.Inbox() <- session.Leave{PeerID: peerID}
			log.Info("peer disconnected")
		}()

		writeMsg(r.Context(), conn, types.ServerMessage{
			Type:      "welcome",
			You:       peerID,
			Authority: res.Authority,
			NowMS:     res.Now.Milliseconds(),
			Peers:     res.Peers,
			Entries:   res.Snapshot,
		})

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for o := range out {
				msg, ok := toServerMessage(o)
				if !ok {
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				writeMsg(ctx, conn, msg)
				cancel()
			}
		}()

		// Reader loop
		for {
			readCtx, cancel := context.WithTimeout(r.Context(), readTimeout)
			_, data, err := conn.Read(readCtx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeMsg(r.Context(), conn, types.ServerMessage{Type: "error", Error: "bad json"})
				continue
			}

			msg, ok := toSessionMsg(peerID, cm)
			if !ok {
				writeMsg(r.Context(), conn, types.ServerMessage{Type: "error", Error: "unknown type"})
				continue
			}
			select {
			case sess.Inbox() <- msg:
			case <-r.Context().Done():
				return
			}
		}
	}
}

func toSessionMsg(peerID string, cm types.ClientMessage) (session.Msg, bool) {
	switch cm.Type {
	case "setProperty":
		if cm.Key == "" {
			return nil, false
		}
		return session.SetProperty{Writer: peerID, Key: cm.Key, Value: cm.Value}, true
	case "action":
		if cm.Target == nil || cm.Action == nil {
			return nil, false
		}
		action, err := protocol.Decode(*cm.Action)
		if err != nil {
			return nil, false
		}
		return session.SendAction{From: peerID, Target: *cm.Target, Action: action}, true
	default:
		return nil, false
	}
}

func toServerMessage(o session.Outgoing) (types.ServerMessage, bool) {
	switch msg := o.(type) {
	case session.PropertyUpdated:
		e := msg.Entry
		return types.ServerMessage{Type: "property", Entry: &e}, true
	case session.ActionDelivered:
		env, err := protocol.Encode(msg.Action)
		if err != nil {
			return types.ServerMessage{}, false
		}
		return types.ServerMessage{Type: "action", From: msg.From, Action: &env}, true
	case session.PeerJoined:
		p := msg.Peer
		return types.ServerMessage{Type: "peerJoined", Peer: &p}, true
	case session.PeerLeft:
		p := msg.Peer
		return types.ServerMessage{Type: "peerLeft", Peer: &p, Authority: msg.Authority}, true
	case session.WriteRejected:
		return types.ServerMessage{Type: "error", Error: "key not writable"}, true
	default:
		return types.ServerMessage{}, false
	}
}

func writeMsg(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = conn.Write(ctx, websocket.MessageText, payload)
}
