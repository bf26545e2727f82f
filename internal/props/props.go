// Package props implements the replicated property bag shared by every
// session member: a string key/value store with last-writer-wins semantics
// decided by a write sequence number the session allocates. It is the durable
// substrate for match state: anything that must survive a late join or an
// authority migration lives here, not in broadcast traffic.
package props

import (
	"strconv"
	"time"
)

// Session-scoped keys. Only the authority peer may write these.
const (
	KeyPhase         = "phase"
	KeyCurrentRound  = "currentRound"
	KeyScoreA        = "scoreA"
	KeyScoreB        = "scoreB"
	KeyRoundEnd      = "roundEndTimestamp"
	KeyRoundActive   = "roundActive"
	KeySpawnComplete = "spawnPhaseComplete"
	KeyMatchWinner   = "matchWinner"
	KeyEndReason     = "endReason"
)

// Per-peer key suffixes. Only the owning peer may write its own, except
// "side" which the authority assigns during spawn coordination.
const (
	SubCharacter = "selectedCharacterIndex"
	SubColorR    = "colorR"
	SubColorG    = "colorG"
	SubColorB    = "colorB"
	SubSide      = "side"
	SubSpawned   = "spawned"
)

// PeerKey namespaces a per-peer property under the owning peer's id.
func PeerKey(peerID, sub string) string {
	return "peer/" + peerID + "/" + sub
}

// Entry is one replicated property. Seq totally orders writes to the same
// key; a reader that sees entries out of order still converges on the entry
// with the highest Seq.
type Entry struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Writer string `json:"writer"`
	Seq    uint64 `json:"seq"`
}

// Store is the session-side authoritative bag. It is owned by the session
// loop and is not safe for concurrent use.
type Store struct {
	entries map[string]Entry
	seq     uint64
}

func NewStore() *Store {
	return &Store{entries: make(map[string]Entry)}
}

// Set records a write and assigns it the next sequence number.
func (s *Store) Set(key, value, writer string) Entry {
	s.seq++
	e := Entry{Key: key, Value: value, Writer: writer, Seq: s.seq}
	s.entries[key] = e
	return e
}

func (s *Store) Get(key string) (Entry, bool) {
	e, ok := s.entries[key]
	return e, ok
}

// Snapshot returns every entry, for join replies and resyncs.
func (s *Store) Snapshot() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

// Mirror is a peer-side read-only view, fed by property update messages.
// Owned by the peer loop; not safe for concurrent use.
type Mirror struct {
	entries map[string]Entry
}

func NewMirror() *Mirror {
	return &Mirror{entries: make(map[string]Entry)}
}

// Apply merges one update. Returns false for stale writes (an entry with an
// equal or higher sequence number is already present for the key).
func (m *Mirror) Apply(e Entry) bool {
	if cur, ok := m.entries[e.Key]; ok && cur.Seq >= e.Seq {
		return false
	}
	m.entries[e.Key] = e
	return true
}

// Load replaces the mirror contents from a full snapshot.
func (m *Mirror) Load(entries []Entry) {
	m.entries = make(map[string]Entry, len(entries))
	for _, e := range entries {
		m.entries[e.Key] = e
	}
}

func (m *Mirror) Get(key string) (string, bool) {
	e, ok := m.entries[key]
	return e.Value, ok
}

func (m *Mirror) GetString(key, def string) string {
	if v, ok := m.Get(key); ok {
		return v
	}
	return def
}

func (m *Mirror) GetInt(key string, def int) int {
	v, ok := m.Get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (m *Mirror) GetBool(key string) bool {
	v, _ := m.Get(key)
	return v == "true"
}

func (m *Mirror) GetDuration(key string, def time.Duration) time.Duration {
	v, ok := m.Get(key)
	if !ok {
		return def
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// Value encoding helpers. Properties travel as strings so the wire format
// stays trivial; durations are encoded as integer milliseconds.

func FormatInt(n int) string { return strconv.Itoa(n) }

func FormatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func FormatDuration(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}
