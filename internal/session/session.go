// Package session implements the network room: up to two peers, the
// authoritative replicated property store, and action routing between
// members. A session is an actor, one goroutine draining a typed-message
// inbox, so membership, property writes, and routing are applied in a
// single total order with no locks.
package session

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/duelarena/backend/internal/match"
	"github.com/duelarena/backend/internal/netclock"
	"github.com/duelarena/backend/internal/props"
	"github.com/duelarena/backend/internal/protocol"
)

const DefaultMaxPeers = 2

type Msg interface{ isSessionMsg() }

// Join registers a peer. The reply carries a full property snapshot and the
// current session clock reading so the joiner can reconstruct state without
// replaying any earlier traffic.
type Join struct {
	PeerID string
	Nick   string
	Outbox chan Outgoing
	Reply  chan JoinResult
}

type Leave struct{ PeerID string }

// SetProperty is a replicated write. The session enforces key ownership:
// session-scoped keys may only be written by the current authority, per-peer
// keys only by the owning peer (the authority may additionally assign a
// peer's side). Rejected writes are dropped, not fatal.
type SetProperty struct {
	Writer string
	Key    string
	Value  string
}

// SendAction routes a non-durable action to the addressed peers.
type SendAction struct {
	From   string
	Target protocol.Target
	Action protocol.Action
}

type GetView struct{ Reply chan View }

type Shutdown struct{}

func (Join) isSessionMsg()        {}
func (Leave) isSessionMsg()       {}
func (SetProperty) isSessionMsg() {}
func (SendAction) isSessionMsg()  {}
func (GetView) isSessionMsg()     {}
func (Shutdown) isSessionMsg()    {}

type PeerInfo struct {
	ID   string `json:"id"`
	Nick string `json:"nick"`
}

type JoinResult struct {
	OK        bool
	Reason    string
	Authority string
	Peers     []PeerInfo
	Snapshot  []props.Entry
	Now       time.Duration
	Clock     netclock.Clock
}

// Outgoing is what a session delivers into a peer's outbox.
type Outgoing interface{ isOutgoing() }

type PeerJoined struct{ Peer PeerInfo }

// PeerLeft also announces the authority after the departure; when the
// authority itself disconnects the role migrates to the longest-joined
// remaining peer.
type PeerLeft struct {
	Peer      PeerInfo
	Authority string
}

type PropertyUpdated struct{ Entry props.Entry }

type ActionDelivered struct {
	From   string
	Action protocol.Action
}

// WriteRejected goes back to a writer whose property write violated key
// ownership. The write itself is dropped.
type WriteRejected struct{ Key string }

func (PeerJoined) isOutgoing()      {}
func (PeerLeft) isOutgoing()        {}
func (PropertyUpdated) isOutgoing() {}
func (ActionDelivered) isOutgoing() {}
func (WriteRejected) isOutgoing()   {}

type View struct {
	Code      string        `json:"code"`
	Authority string        `json:"authority"`
	Peers     []PeerInfo    `json:"peers"`
	Entries   []props.Entry `json:"entries"`
	Now       time.Duration `json:"now"`
}

// Summary describes a finished match for persistence.
type Summary struct {
	Code    string
	Winner  string
	Reason  string
	ScoreA  int
	ScoreB  int
	Rounds  int
	EndedAt time.Time
}

// Recorder archives finished matches. Implementations must be safe to call
// from a separate goroutine.
type Recorder interface {
	RecordMatch(Summary)
}

type member struct {
	info   PeerInfo
	outbox chan Outgoing
	joined int // join sequence, for deterministic authority migration
}

type Options struct {
	Clock    netclock.Clock
	MaxPeers int
	Recorder Recorder
	Logger   *zap.Logger
	// OnClose fires once, from the session goroutine, when the session shuts
	// down (last member gone or explicit Shutdown). The registry uses it to
	// stop resolving the code to a dead loop.
	OnClose func()
}

type Session struct {
	code      string
	inbox     chan Msg
	members   map[string]*member
	joinSeq   int
	authority string
	store     *props.Store
	clock     netclock.Clock
	maxPeers  int
	recorder  Recorder
	archived  bool
	closed    bool
	onClose   func()
	log       *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(parent context.Context, code string, opts Options) *Session {
	ctx, cancel := context.WithCancel(parent)
	if opts.Clock == nil {
		opts.Clock = netclock.NewSession()
	}
	if opts.MaxPeers <= 0 {
		opts.MaxPeers = DefaultMaxPeers
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Session{
		code:     code,
		inbox:    make(chan Msg, 64),
		members:  make(map[string]*member),
		store:    props.NewStore(),
		clock:    opts.Clock,
		maxPeers: opts.MaxPeers,
		recorder: opts.Recorder,
		onClose:  opts.OnClose,
		log:      opts.Logger.With(zap.String("session", code)),
		ctx:      ctx,
		cancel:   cancel,
	}
	go s.loop()
	return s
}

func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) Code() string { return s.code }

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				s.handleJoin(msg)
			case Leave:
				s.handleLeave(msg.PeerID)
			case SetProperty:
				s.handleSet(msg)
			case SendAction:
				s.handleAction(msg)
			case GetView:
				msg.Reply <- View{
					Code:      s.code,
					Authority: s.authority,
					Peers:     s.peerList(),
					Entries:   s.store.Snapshot(),
					Now:       s.clock.Now(),
				}
			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) handleJoin(msg Join) {
	if _, ok := s.members[msg.PeerID]; ok {
		msg.Reply <- JoinResult{OK: false, Reason: "peer id already joined"}
		return
	}
	if len(s.members) >= s.maxPeers {
		msg.Reply <- JoinResult{OK: false, Reason: "session full"}
		return
	}

	info := PeerInfo{ID: msg.PeerID, Nick: msg.Nick}
	s.joinSeq++
	s.members[msg.PeerID] = &member{info: info, outbox: msg.Outbox, joined: s.joinSeq}
	if s.authority == "" {
		s.authority = msg.PeerID
	}
	s.log.Info("peer joined",
		zap.String("peer", msg.PeerID),
		zap.String("authority", s.authority),
		zap.Int("peers", len(s.members)))

	msg.Reply <- JoinResult{
		OK:        true,
		Authority: s.authority,
		Peers:     s.peerList(),
		Snapshot:  s.store.Snapshot(),
		Now:       s.clock.Now(),
		Clock:     s.clock,
	}
	s.broadcastExcept(msg.PeerID, PeerJoined{Peer: info})
}

func (s *Session) handleLeave(peerID string) {
	mem, ok := s.members[peerID]
	if !ok {
		return
	}
	delete(s.members, peerID)
	close(mem.outbox)

	if s.authority == peerID {
		s.authority = s.oldestMember()
		if s.authority != "" {
			s.log.Info("authority migrated",
				zap.String("from", peerID),
				zap.String("to", s.authority))
		}
	}
	s.broadcastExcept(peerID, PeerLeft{Peer: mem.info, Authority: s.authority})

	if len(s.members) == 0 {
		s.shutdown()
	}
}

func (s *Session) oldestMember() string {
	best := ""
	bestSeq := int(^uint(0) >> 1)
	for id, m := range s.members {
		if m.joined < bestSeq {
			best, bestSeq = id, m.joined
		}
	}
	return best
}

func (s *Session) handleSet(msg SetProperty) {
	if !s.writeAllowed(msg.Writer, msg.Key) {
		s.log.Warn("property write rejected",
			zap.String("writer", msg.Writer),
			zap.String("key", msg.Key))
		s.deliver(msg.Writer, WriteRejected{Key: msg.Key})
		return
	}
	entry := s.store.Set(msg.Key, msg.Value, msg.Writer)
	s.broadcast(PropertyUpdated{Entry: entry})

	if msg.Key == props.KeyPhase && msg.Value == string(match.PhaseMatchEnd) {
		s.archive()
	}
}

// writeAllowed enforces single-writer-per-key: per-peer keys belong to the
// owning peer (side assignment belongs to the authority), everything else
// belongs to the authority.
func (s *Session) writeAllowed(writer, key string) bool {
	if _, ok := s.members[writer]; !ok {
		return false
	}
	if strings.HasPrefix(key, "peer/") {
		rest := strings.TrimPrefix(key, "peer/")
		owner, sub, ok := strings.Cut(rest, "/")
		if !ok {
			return false
		}
		if sub == props.SubSide {
			return writer == s.authority
		}
		return writer == owner
	}
	return writer == s.authority
}

func (s *Session) handleAction(msg SendAction) {
	if _, ok := s.members[msg.From]; !ok {
		return
	}
	// Round-end requests are meaningful only to the sole acceptor.
	if _, isReq := msg.Action.(protocol.RequestRoundEnd); isReq && msg.Target.Kind != protocol.TargetAuthority {
		s.log.Warn("round end request misaddressed", zap.String("from", msg.From))
		return
	}

	out := ActionDelivered{From: msg.From, Action: msg.Action}
	switch msg.Target.Kind {
	case protocol.TargetAll:
		s.broadcast(out)
	case protocol.TargetOthers:
		s.broadcastExcept(msg.From, out)
	case protocol.TargetAuthority:
		s.deliver(s.authority, out)
	case protocol.TargetPeer:
		s.deliver(msg.Target.PeerID, out)
	}
}

func (s *Session) deliver(peerID string, out Outgoing) {
	mem, ok := s.members[peerID]
	if !ok {
		return
	}
	select {
	case mem.outbox <- out:
	default:
		// Peer is not draining its outbox; drop it like any disconnect.
		s.log.Warn("peer outbox full, dropping peer", zap.String("peer", peerID))
		s.handleLeave(peerID)
	}
}

func (s *Session) broadcast(out Outgoing) {
	for id := range s.members {
		s.deliver(id, out)
	}
}

func (s *Session) broadcastExcept(exclude string, out Outgoing) {
	for id := range s.members {
		if id != exclude {
			s.deliver(id, out)
		}
	}
}

func (s *Session) archive() {
	if s.archived || s.recorder == nil {
		return
	}
	s.archived = true

	m := props.NewMirror()
	m.Load(s.store.Snapshot())
	sum := Summary{
		Code:    s.code,
		Winner:  m.GetString(props.KeyMatchWinner, ""),
		Reason:  m.GetString(props.KeyEndReason, ""),
		ScoreA:  m.GetInt(props.KeyScoreA, 0),
		ScoreB:  m.GetInt(props.KeyScoreB, 0),
		Rounds:  m.GetInt(props.KeyCurrentRound, 0),
		EndedAt: time.Now(),
	}
	// Recording may hit a database; keep it off the session loop.
	go s.recorder.RecordMatch(sum)
}

func (s *Session) peerList() []PeerInfo {
	out := make([]PeerInfo, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m.info)
	}
	return out
}

func (s *Session) shutdown() {
	if s.closed {
		return
	}
	s.closed = true
	for id, m := range s.members {
		close(m.outbox)
		delete(s.members, id)
	}
	s.cancel()
	if s.onClose != nil {
		s.onClose()
	}
}
