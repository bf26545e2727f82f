package match

import (
	"testing"
	"time"

	"github.com/duelarena/backend/internal/props"
)

func mirrorWith(entries map[string]string) *props.Mirror {
	m := props.NewMirror()
	seq := uint64(0)
	for k, v := range entries {
		seq++
		m.Apply(props.Entry{Key: k, Value: v, Seq: seq})
	}
	return m
}

func TestFromSnapshotMidFight(t *testing.T) {
	// A peer rejoining during round 3 of a fight must reconstruct the live
	// state purely from replicated properties.
	m := mirrorWith(map[string]string{
		props.KeyPhase:        string(PhaseFighting),
		props.KeyCurrentRound: props.FormatInt(3),
		props.KeyScoreA:       props.FormatInt(1),
		props.KeyScoreB:       props.FormatInt(1),
		props.KeyRoundEnd:     props.FormatDuration(300 * time.Second),
		props.KeyRoundActive:  props.FormatBool(true),
	})

	s := FromSnapshot(m, testRules())
	if s.Phase != PhaseFighting || s.Round != 3 || !s.RoundActive {
		t.Fatalf("bad reconstruction: %+v", s)
	}
	if s.RoundEnd != 300*time.Second {
		t.Fatalf("round end = %v", s.RoundEnd)
	}
	if s.RoundStart != 210*time.Second {
		t.Fatalf("round start = %v", s.RoundStart)
	}
	a, b := Tally(s.Records)
	if a != 1 || b != 1 {
		t.Fatalf("reconstructed tally = {A:%d B:%d}", a, b)
	}
	if len(s.Records) != 2 {
		t.Fatalf("expected 2 completed rounds, got %d", len(s.Records))
	}
}

func TestFromSnapshotCoversDrawnRounds(t *testing.T) {
	// Round 4 live with one win each: round 3 must have been a draw.
	m := mirrorWith(map[string]string{
		props.KeyPhase:        string(PhaseFighting),
		props.KeyCurrentRound: props.FormatInt(4),
		props.KeyScoreA:       props.FormatInt(1),
		props.KeyScoreB:       props.FormatInt(1),
		props.KeyRoundActive:  props.FormatBool(true),
	})

	s := FromSnapshot(m, testRules())
	if len(s.Records) != 3 {
		t.Fatalf("expected 3 completed rounds, got %d", len(s.Records))
	}
	a, b := Tally(s.Records)
	if a != 1 || b != 1 {
		t.Fatalf("tally = {A:%d B:%d}", a, b)
	}
	for i, r := range s.Records {
		if r.Number != i+1 {
			t.Fatalf("record %d numbered %d", i, r.Number)
		}
	}
}

func TestFromSnapshotTerminalMatch(t *testing.T) {
	m := mirrorWith(map[string]string{
		props.KeyPhase:        string(PhaseMatchEnd),
		props.KeyCurrentRound: props.FormatInt(2),
		props.KeyScoreA:       props.FormatInt(2),
		props.KeyScoreB:       props.FormatInt(0),
		props.KeyMatchWinner:  string(OutcomeA),
		props.KeyEndReason:    string(ReasonScore),
	})

	s := FromSnapshot(m, testRules())
	if s.Phase != PhaseMatchEnd || s.Winner != OutcomeA || s.EndReason != ReasonScore {
		t.Fatalf("bad terminal reconstruction: %+v", s)
	}
	if len(s.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(s.Records))
	}
}

func TestFromSnapshotEmptyMirror(t *testing.T) {
	s := FromSnapshot(props.NewMirror(), testRules())
	if s.Phase != PhaseInitializing || len(s.Records) != 0 {
		t.Fatalf("empty mirror should yield a fresh state, got %+v", s)
	}
}
