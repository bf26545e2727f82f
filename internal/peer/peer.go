// Package peer implements the runtime a game client embeds: one update-loop
// goroutine that drains session traffic, drives the match state machine when
// this peer holds the authority role, and mirrors replicated state when it
// does not. Replicas never self-transition: a locally detected knockout is
// sent to the authority as a request, and the authority is the sole acceptor.
package peer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/duelarena/backend/internal/match"
	"github.com/duelarena/backend/internal/netclock"
	"github.com/duelarena/backend/internal/props"
	"github.com/duelarena/backend/internal/protocol"
	"github.com/duelarena/backend/internal/session"
	"github.com/duelarena/backend/internal/spawn"
)

const (
	tagCountdown    = "countdown"
	tagRest         = "rest"
	tagSpawnTimeout = "spawnTimeout"
)

type Config struct {
	ID   string
	Nick string

	Rules match.Rules
	// ExpectedPeers is the number of members a match needs before spawn
	// coordination begins. Defaults to 2.
	ExpectedPeers int

	Collaborator Collaborator
	// JudgeTimeout resolves a round that ran out the clock, typically by
	// comparing remaining health. Nil means every timeout is a draw.
	JudgeTimeout func() match.Outcome

	CharacterIndex int
	Color          [3]int

	// TickInterval drives the internal ticker. Zero disables it; tests and
	// embedding game loops call Tick themselves.
	TickInterval time.Duration

	Logger *zap.Logger
}

// Status is a point-in-time read of the peer's view of the match.
type Status struct {
	Phase       match.Phase
	Round       int
	ScoreA      int
	ScoreB      int
	Remaining   time.Duration
	IsAuthority bool
	Spawned     bool
	Side        spawn.Side
	Winner      match.Outcome
	Reason      match.Reason
	Peers       int
}

type localMsg interface{ isLocalMsg() }

type tickMsg struct{}

type reportMsg struct {
	winner match.Outcome
	reason match.Reason
}

type statusMsg struct{ reply chan Status }

func (tickMsg) isLocalMsg()   {}
func (reportMsg) isLocalMsg() {}
func (statusMsg) isLocalMsg() {}

type Peer struct {
	cfg    Config
	sess   *session.Session
	outbox chan session.Outgoing
	cmds   chan localMsg
	clock  netclock.Clock
	log    *zap.Logger

	mirror *props.Mirror
	coord  *spawn.Coordinator
	sched  *schedule

	machine     match.State
	isAuthority bool
	nicks       map[string]string

	// replica-side mirrored view
	localPhase     match.Phase
	localRound     int
	lastEndedRound int
	desyncTicks    int

	spawnStarted bool

	ctx    context.Context
	cancel context.CancelFunc
}

// Join attaches a new peer runtime to a session and starts its loop.
func Join(parent context.Context, sess *session.Session, cfg Config) (*Peer, error) {
	if cfg.ID == "" {
		return nil, errors.New("peer id required")
	}
	if cfg.Rules == (match.Rules{}) {
		cfg.Rules = match.DefaultRules()
	}
	if cfg.ExpectedPeers <= 0 {
		cfg.ExpectedPeers = 2
	}
	if cfg.Collaborator == nil {
		cfg.Collaborator = NopCollaborator{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	outbox := make(chan session.Outgoing, 64)
	reply := make(chan session.JoinResult, 1)
	select {
	case sess.Inbox() <- session.Join{PeerID: cfg.ID, Nick: cfg.Nick, Outbox: outbox, Reply: reply}:
	case <-parent.Done():
		return nil, parent.Err()
	}
	var res session.JoinResult
	select {
	case res = <-reply:
	case <-parent.Done():
		return nil, parent.Err()
	}
	if !res.OK {
		return nil, fmt.Errorf("join rejected: %s", res.Reason)
	}

	ctx, cancel := context.WithCancel(parent)
	p := &Peer{
		cfg:         cfg,
		sess:        sess,
		outbox:      outbox,
		cmds:        make(chan localMsg, 64),
		log:         cfg.Logger.With(zap.String("peer", cfg.ID)),
		mirror:      props.NewMirror(),
		coord:       spawn.NewCoordinator(cfg.ID),
		sched:       &schedule{},
		machine:     match.NewState(cfg.Rules),
		isAuthority: res.Authority == cfg.ID,
		nicks:       make(map[string]string),
		localPhase:  match.PhaseInitializing,
		ctx:         ctx,
		cancel:      cancel,
	}
	p.mirror.Load(res.Snapshot)
	for _, info := range res.Peers {
		p.nicks[info.ID] = info.Nick
	}
	if res.Clock != nil {
		p.clock = res.Clock
	} else {
		p.clock = netclock.NewOffset(res.Now)
	}

	go p.loop()
	return p, nil
}

func (p *Peer) ID() string            { return p.cfg.ID }
func (p *Peer) Done() <-chan struct{} { return p.ctx.Done() }
func (p *Peer) Close()                { p.cancel() }

// Tick advances timer-driven work: due deferred continuations, the
// authority's round-expiry check, and the replica's desync check.
func (p *Peer) Tick() { p.enqueue(tickMsg{}) }

// ReportRoundEnd is the gameplay feedback path: a knockout (or forfeit)
// detected locally. On the authority it feeds the machine directly; on a
// replica it becomes a RequestRoundEnd to the authority.
func (p *Peer) ReportRoundEnd(winner match.Outcome, reason match.Reason) {
	p.enqueue(reportMsg{winner: winner, reason: reason})
}

func (p *Peer) Status() (Status, error) {
	reply := make(chan Status, 1)
	p.enqueue(statusMsg{reply: reply})
	select {
	case st := <-reply:
		return st, nil
	case <-p.ctx.Done():
		return Status{}, p.ctx.Err()
	}
}

func (p *Peer) enqueue(m localMsg) {
	select {
	case p.cmds <- m:
	case <-p.ctx.Done():
	}
}

func (p *Peer) loop() {
	var tickC <-chan time.Time
	if p.cfg.TickInterval > 0 {
		ticker := time.NewTicker(p.cfg.TickInterval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	p.bootstrap()

	for {
		select {
		case <-p.ctx.Done():
			select {
			case p.sess.Inbox() <- session.Leave{PeerID: p.cfg.ID}:
			default:
			}
			return

		case out, ok := <-p.outbox:
			if !ok {
				// Session dropped us (slow outbox or shutdown).
				p.cancel()
				return
			}
			p.handleOutgoing(out)

		case m := <-p.cmds:
			p.handleLocal(m)

		case <-tickC:
			p.tick()
		}
	}
}

// bootstrap publishes this peer's selections and, for a late joiner or
// reconnect, reconstructs the live match from the replicated snapshot.
func (p *Peer) bootstrap() {
	p.setProp(props.PeerKey(p.cfg.ID, props.SubCharacter), props.FormatInt(p.cfg.CharacterIndex))
	p.setProp(props.PeerKey(p.cfg.ID, props.SubColorR), props.FormatInt(p.cfg.Color[0]))
	p.setProp(props.PeerKey(p.cfg.ID, props.SubColorG), props.FormatInt(p.cfg.Color[1]))
	p.setProp(props.PeerKey(p.cfg.ID, props.SubColorB), props.FormatInt(p.cfg.Color[2]))

	if phase, ok := p.mirror.Get(props.KeyPhase); ok {
		if p.isAuthority {
			// Joined into a session with prior state as its authority
			// (reconnect into a vacated room): rebuild, don't start fresh.
			p.becomeAuthority()
		} else if match.Phase(phase) != p.localPhase {
			p.resyncFromMirror()
		}
	}
	if _, ok := p.mirror.Get(props.PeerKey(p.cfg.ID, props.SubSide)); ok && p.localPhase != match.PhaseMatchEnd {
		p.doSpawn()
	}
}

func (p *Peer) handleOutgoing(out session.Outgoing) {
	switch msg := out.(type) {
	case session.PeerJoined:
		p.nicks[msg.Peer.ID] = msg.Peer.Nick
		if p.isAuthority {
			p.maybeBeginSpawn()
		}

	case session.PeerLeft:
		delete(p.nicks, msg.Peer.ID)
		if msg.Authority == p.cfg.ID && !p.isAuthority {
			p.becomeAuthority()
		}
		// Only a fighter leaving forfeits the match; observers come and go.
		if p.isAuthority && p.spawnStarted && p.machine.Phase != match.PhaseMatchEnd && p.isFighter(msg.Peer.ID) {
			p.log.Info("opponent left, forfeiting match",
				zap.String("left", msg.Peer.ID),
				zap.String("phase", string(p.machine.Phase)))
			p.dispatch(match.Command{
				Type:   match.CmdForfeit,
				At:     p.clock.Now(),
				Winner: p.ownSeat(),
				Reason: match.ReasonForfeit,
			})
		}

	case session.PropertyUpdated:
		if !p.mirror.Apply(msg.Entry) {
			return // stale write, already superseded
		}
		p.onProperty(msg.Entry)

	case session.ActionDelivered:
		p.onAction(msg.From, msg.Action)

	case session.WriteRejected:
		p.log.Warn("own property write rejected", zap.String("key", msg.Key))
	}
}

func (p *Peer) handleLocal(m localMsg) {
	switch msg := m.(type) {
	case tickMsg:
		p.tick()

	case reportMsg:
		reason := msg.reason
		if reason == "" {
			reason = match.ReasonKnockout
		}
		if p.isAuthority {
			p.dispatch(match.Command{
				Type:   match.CmdEndRound,
				At:     p.clock.Now(),
				Round:  p.machine.Round,
				Winner: msg.winner,
				Reason: reason,
			})
			return
		}
		p.sendAction(protocol.Authority(), protocol.RequestRoundEnd{
			Round:  p.localRound,
			Winner: msg.winner,
			Reason: reason,
		})

	case statusMsg:
		msg.reply <- p.status()
	}
}

func (p *Peer) onProperty(e props.Entry) {
	if !p.isAuthority {
		return
	}
	// The authority watches per-peer spawn acknowledgments; its own ack
	// arrives through the same replication echo as everyone else's.
	if p.spawnStarted && !p.coord.AllAcked() {
		if owner, ok := spawnAckOwner(e); ok && e.Value == "true" {
			p.coord.Ack(owner)
			if p.coord.AllAcked() {
				p.completeSpawnPhase()
			}
		}
	}
}

func spawnAckOwner(e props.Entry) (string, bool) {
	const prefix = "peer/"
	const suffix = "/" + props.SubSpawned
	if len(e.Key) <= len(prefix)+len(suffix) {
		return "", false
	}
	if e.Key[:len(prefix)] != prefix || e.Key[len(e.Key)-len(suffix):] != suffix {
		return "", false
	}
	return e.Key[len(prefix) : len(e.Key)-len(suffix)], true
}

func (p *Peer) onAction(from string, a protocol.Action) {
	switch act := a.(type) {
	case protocol.SpawnNow:
		p.doSpawn()

	case protocol.PhaseChanged:
		p.applyReplicaPhase(act.Phase, act.Round)

	case protocol.RoundStarted:
		// Timestamp rides on the property store; the action is only a cue.

	case protocol.RoundEnded:
		if act.Round <= p.lastEndedRound {
			return // duplicate or replayed delivery
		}
		p.lastEndedRound = act.Round

	case protocol.ResetForRound:
		p.cfg.Collaborator.OnRoundReset()

	case protocol.RequestRoundEnd:
		if !p.isAuthority {
			return
		}
		reason := act.Reason
		if reason == "" {
			reason = match.ReasonKnockout
		}
		// The reducer rejects stale rounds, which makes replayed requests
		// harmless no-ops.
		p.dispatch(match.Command{
			Type:   match.CmdEndRound,
			At:     p.clock.Now(),
			Round:  act.Round,
			Winner: act.Winner,
			Reason: reason,
		})
	}
}

// applyReplicaPhase mirrors an authority transition. Idempotent: the same
// phase/round pair applies once whether it arrives by broadcast, property
// resync, or both.
func (p *Peer) applyReplicaPhase(phase match.Phase, round int) {
	if p.isAuthority {
		return
	}
	if p.localPhase == phase && p.localRound == round {
		return
	}
	p.localPhase = phase
	p.localRound = round
	p.desyncTicks = 0
	p.cfg.Collaborator.OnMatchPhaseChanged(phase)
	switch phase {
	case match.PhaseFighting:
		p.cfg.Collaborator.OnInputEnabledChanged(true)
	case match.PhaseRoundEnd, match.PhaseMatchEnd:
		p.cfg.Collaborator.OnInputEnabledChanged(false)
	}
}

func (p *Peer) maybeBeginSpawn() {
	if p.spawnStarted || p.machine.Phase != match.PhaseInitializing {
		return
	}
	if len(p.nicks) < p.cfg.ExpectedPeers {
		return
	}
	p.spawnStarted = true
	p.setProp(props.KeySpawnComplete, props.FormatBool(false))

	assignments := []spawn.Assignment{{PeerID: p.cfg.ID, Side: spawn.SideLeft}}
	for id := range p.nicks {
		if id != p.cfg.ID {
			assignments = append(assignments, spawn.Assignment{PeerID: id, Side: spawn.SideRight})
		}
	}
	deadline := p.clock.Now() + p.cfg.Rules.SpawnTimeout
	p.coord.Expect(assignments, deadline)
	for _, a := range assignments {
		p.setProp(props.PeerKey(a.PeerID, props.SubSide), string(a.Side))
	}

	p.doSpawn()
	p.sendAction(protocol.Others(), protocol.SpawnNow{})
	p.sched.arm(tagSpawnTimeout, deadline, p.onSpawnTimeout)
	p.log.Info("spawn phase started", zap.Int("peers", len(p.nicks)))
}

func (p *Peer) doSpawn() {
	if !p.coord.MarkSelfSpawned() {
		return // duplicate signal
	}
	side, ok := p.coord.Side(p.cfg.ID)
	if !ok {
		side = spawn.Side(p.mirror.GetString(props.PeerKey(p.cfg.ID, props.SubSide), string(spawn.SideRight)))
	}
	p.cfg.Collaborator.OnSpawn(spawn.Assignment{PeerID: p.cfg.ID, Side: side, Completed: true})
	p.setProp(props.PeerKey(p.cfg.ID, props.SubSpawned), props.FormatBool(true))
	p.log.Info("spawned own entity", zap.String("side", string(side)))
}

func (p *Peer) completeSpawnPhase() {
	p.sched.cancel(tagSpawnTimeout)
	p.setProp(props.KeySpawnComplete, props.FormatBool(true))
	p.dispatch(match.Command{Type: match.CmdBeginMatch, At: p.clock.Now()})
}

func (p *Peer) onSpawnTimeout() {
	if p.coord.AllAcked() {
		return
	}
	missing := p.coord.Missing()
	p.log.Warn("spawn acknowledgment timed out", zap.Strings("missing", missing))
	// Proceeding degraded means the match is over before it began: the
	// present peer wins by forfeit.
	p.dispatch(match.Command{
		Type:   match.CmdForfeit,
		At:     p.clock.Now(),
		Winner: p.ownSeat(),
		Reason: match.ReasonForfeit,
	})
}

func (p *Peer) becomeAuthority() {
	p.isAuthority = true
	p.sched.clear()

	// Nothing volatile survives the previous authority: rebuild from the
	// replicated store and restart pending continuations from scratch.
	p.machine = match.FromSnapshot(p.mirror, p.cfg.Rules)
	p.localPhase = p.machine.Phase
	p.localRound = p.machine.Round
	_, p.spawnStarted = p.mirror.Get(props.KeySpawnComplete)

	now := p.clock.Now()
	switch p.machine.Phase {
	case match.PhasePreFight:
		p.sched.arm(tagCountdown, now+p.cfg.Rules.Countdown, p.onCountdownElapsed)
	case match.PhaseRoundEnd:
		p.sched.arm(tagRest, now+p.cfg.Rules.RestDelay, p.onRestElapsed)
	case match.PhaseFighting:
		// The tick expiry check picks the round back up.
	}
	p.log.Info("assumed authority role",
		zap.String("phase", string(p.machine.Phase)),
		zap.Int("round", p.machine.Round))
}

func (p *Peer) onCountdownElapsed() {
	p.dispatch(match.Command{Type: match.CmdCountdownElapsed, At: p.clock.Now()})
}

func (p *Peer) onRestElapsed() {
	p.dispatch(match.Command{Type: match.CmdRestElapsed, At: p.clock.Now()})
}

func (p *Peer) tick() {
	now := p.clock.Now()
	p.sched.fire(now)

	if p.isAuthority {
		if p.machine.Phase == match.PhaseFighting && p.machine.RoundActive &&
			netclock.Remaining(p.machine.RoundEnd, now) == 0 {
			winner := match.OutcomeDraw
			if p.cfg.JudgeTimeout != nil {
				winner = p.cfg.JudgeTimeout()
			}
			p.dispatch(match.Command{
				Type:   match.CmdEndRound,
				At:     now,
				Round:  p.machine.Round,
				Winner: winner,
				Reason: match.ReasonTimeout,
			})
		}
		return
	}

	// Desync check: a replica whose mirrored phase still disagrees with the
	// replicated property on the next tick stops trusting its local view
	// and resyncs wholesale.
	propPhase, ok := p.mirror.Get(props.KeyPhase)
	if ok && match.Phase(propPhase) != p.localPhase {
		p.desyncTicks++
		if p.desyncTicks > 1 {
			p.resyncFromMirror()
		}
		return
	}
	p.desyncTicks = 0
}

func (p *Peer) resyncFromMirror() {
	st := match.FromSnapshot(p.mirror, p.cfg.Rules)
	prev := p.localPhase
	p.localPhase = st.Phase
	p.localRound = st.Round
	p.lastEndedRound = len(st.Records)
	p.desyncTicks = 0
	p.log.Info("resynced from replicated state",
		zap.String("from", string(prev)),
		zap.String("to", string(st.Phase)),
		zap.Int("round", st.Round))
	if prev != st.Phase {
		p.cfg.Collaborator.OnMatchPhaseChanged(st.Phase)
		p.cfg.Collaborator.OnInputEnabledChanged(st.Phase == match.PhaseFighting)
	}
}

// dispatch runs one command through the reducer and publishes the results.
// Authority only.
func (p *Peer) dispatch(cmd match.Command) {
	events, next, err := match.Apply(p.machine, cmd)
	if err != nil {
		if errors.Is(err, match.ErrStaleRound) || errors.Is(err, match.ErrMatchOver) {
			p.log.Debug("ignored stale command",
				zap.String("cmd", string(cmd.Type)),
				zap.Error(err))
			return
		}
		p.log.Warn("command rejected",
			zap.String("cmd", string(cmd.Type)),
			zap.Error(err))
		return
	}
	p.machine = next
	p.publish(events)
}

// publish replicates each event and broadcasts the matching cue. Property
// writes guarantee late joiners and resyncing peers converge; the action
// broadcast is the low-latency path.
func (p *Peer) publish(events []match.Event) {
	now := p.clock.Now()
	for _, ev := range events {
		switch ev.Type {
		case match.EvtPhaseChanged:
			p.localPhase = ev.Phase
			p.localRound = ev.Round
			p.setProp(props.KeyPhase, string(ev.Phase))
			p.setProp(props.KeyCurrentRound, props.FormatInt(ev.Round))
			p.sendAction(protocol.Others(), protocol.PhaseChanged{Phase: ev.Phase, Round: ev.Round})
			p.cfg.Collaborator.OnMatchPhaseChanged(ev.Phase)

			switch ev.Phase {
			case match.PhasePreFight:
				if ev.Round > 1 {
					p.cfg.Collaborator.OnRoundReset()
					p.sendAction(protocol.Others(), protocol.ResetForRound{})
				}
				p.sched.arm(tagCountdown, now+p.cfg.Rules.Countdown, p.onCountdownElapsed)
			case match.PhaseMatchEnd:
				p.sched.clear()
			}

		case match.EvtRoundStarted:
			p.setProp(props.KeyRoundEnd, props.FormatDuration(ev.EndsAt))
			p.setProp(props.KeyRoundActive, props.FormatBool(true))
			p.sendAction(protocol.Others(), protocol.RoundStarted{Round: ev.Round, EndsAt: ev.EndsAt})

		case match.EvtRoundEnded:
			a, b := match.Tally(p.machine.Records)
			p.setProp(props.KeyScoreA, props.FormatInt(a))
			p.setProp(props.KeyScoreB, props.FormatInt(b))
			p.setProp(props.KeyRoundActive, props.FormatBool(false))
			p.sendAction(protocol.Others(), protocol.RoundEnded{Round: ev.Round, Winner: ev.Winner, Reason: ev.Reason})
			p.lastEndedRound = ev.Round
			p.sched.arm(tagRest, now+p.cfg.Rules.RestDelay, p.onRestElapsed)

		case match.EvtMatchEnded:
			// Winner and reason land in the store before the terminal phase
			// write, so the archived summary is complete.
			p.setProp(props.KeyMatchWinner, string(ev.Winner))
			p.setProp(props.KeyEndReason, string(ev.Reason))

		case match.EvtInputEnabled:
			p.cfg.Collaborator.OnInputEnabledChanged(ev.Enabled)
		}
	}
}

// isFighter reports whether a peer holds a side assignment, which only the
// members present at spawn coordination ever get.
func (p *Peer) isFighter(id string) bool {
	_, ok := p.mirror.Get(props.PeerKey(id, props.SubSide))
	return ok
}

func (p *Peer) ownSeat() match.Outcome {
	side := p.mirror.GetString(props.PeerKey(p.cfg.ID, props.SubSide), "")
	if side == "" {
		if s, ok := p.coord.Side(p.cfg.ID); ok {
			side = string(s)
		}
	}
	if spawn.Side(side) == spawn.SideRight {
		return match.OutcomeB
	}
	return match.OutcomeA
}

func (p *Peer) status() Status {
	now := p.clock.Now()
	st := Status{
		IsAuthority: p.isAuthority,
		Spawned:     p.coord.SelfSpawned(),
		Peers:       len(p.nicks),
		Side:        spawn.Side(p.mirror.GetString(props.PeerKey(p.cfg.ID, props.SubSide), "")),
	}
	if p.isAuthority {
		st.Phase = p.machine.Phase
		st.Round = p.machine.Round
		st.ScoreA, st.ScoreB = match.Tally(p.machine.Records)
		st.Winner = p.machine.Winner
		st.Reason = p.machine.EndReason
		if p.machine.RoundActive {
			st.Remaining = netclock.Remaining(p.machine.RoundEnd, now)
		}
		return st
	}
	st.Phase = p.localPhase
	st.Round = p.localRound
	st.ScoreA = p.mirror.GetInt(props.KeyScoreA, 0)
	st.ScoreB = p.mirror.GetInt(props.KeyScoreB, 0)
	st.Winner = match.Outcome(p.mirror.GetString(props.KeyMatchWinner, ""))
	st.Reason = match.Reason(p.mirror.GetString(props.KeyEndReason, ""))
	if p.mirror.GetBool(props.KeyRoundActive) {
		st.Remaining = netclock.Remaining(p.mirror.GetDuration(props.KeyRoundEnd, 0), now)
	}
	return st
}

func (p *Peer) setProp(key, value string) {
	p.send(session.SetProperty{Writer: p.cfg.ID, Key: key, Value: value})
}

func (p *Peer) sendAction(target protocol.Target, a protocol.Action) {
	p.send(session.SendAction{From: p.cfg.ID, Target: target, Action: a})
}

func (p *Peer) send(m session.Msg) {
	select {
	case p.sess.Inbox() <- m:
	case <-p.ctx.Done():
	}
}
