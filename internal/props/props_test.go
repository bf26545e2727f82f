package props

import (
	"testing"
	"time"
)

func TestStoreAssignsIncreasingSequence(t *testing.T) {
	s := NewStore()
	a := s.Set(KeyPhase, "preFight", "host")
	b := s.Set(KeyPhase, "fighting", "host")
	if b.Seq <= a.Seq {
		t.Fatalf("expected increasing seq, got %d then %d", a.Seq, b.Seq)
	}
	e, ok := s.Get(KeyPhase)
	if !ok || e.Value != "fighting" {
		t.Fatalf("expected latest value, got %+v", e)
	}
}

func TestMirrorOutOfOrderConvergence(t *testing.T) {
	// Updates delivered out of order must converge on the highest sequence.
	m := NewMirror()
	if !m.Apply(Entry{Key: KeyScoreA, Value: "2", Seq: 7}) {
		t.Fatalf("first apply rejected")
	}
	if m.Apply(Entry{Key: KeyScoreA, Value: "1", Seq: 4}) {
		t.Fatalf("stale write accepted")
	}
	if v, _ := m.Get(KeyScoreA); v != "2" {
		t.Fatalf("mirror regressed to %q", v)
	}
}

func TestMirrorEqualSequenceIsStale(t *testing.T) {
	m := NewMirror()
	m.Apply(Entry{Key: KeyRoundActive, Value: "true", Seq: 3})
	if m.Apply(Entry{Key: KeyRoundActive, Value: "false", Seq: 3}) {
		t.Fatalf("duplicate-seq write accepted")
	}
}

func TestTypedGetters(t *testing.T) {
	m := NewMirror()
	m.Apply(Entry{Key: KeyCurrentRound, Value: FormatInt(3), Seq: 1})
	m.Apply(Entry{Key: KeyRoundEnd, Value: FormatDuration(90 * time.Second), Seq: 2})
	m.Apply(Entry{Key: KeySpawnComplete, Value: FormatBool(true), Seq: 3})

	if got := m.GetInt(KeyCurrentRound, 0); got != 3 {
		t.Fatalf("GetInt = %d", got)
	}
	if got := m.GetDuration(KeyRoundEnd, 0); got != 90*time.Second {
		t.Fatalf("GetDuration = %v", got)
	}
	if !m.GetBool(KeySpawnComplete) {
		t.Fatalf("GetBool = false")
	}
	if got := m.GetInt("missing", 42); got != 42 {
		t.Fatalf("default = %d", got)
	}
}

func TestSnapshotLoadRoundTrip(t *testing.T) {
	s := NewStore()
	s.Set(KeyPhase, "fighting", "host")
	s.Set(PeerKey("p2", SubSide), "right", "host")

	m := NewMirror()
	m.Load(s.Snapshot())
	if v, _ := m.Get(KeyPhase); v != "fighting" {
		t.Fatalf("phase = %q", v)
	}
	if v, _ := m.Get(PeerKey("p2", SubSide)); v != "right" {
		t.Fatalf("side = %q", v)
	}
}
