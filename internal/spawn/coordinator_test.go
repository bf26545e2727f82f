package spawn

import (
	"testing"
	"time"
)

func TestSelfSpawnIsIdempotent(t *testing.T) {
	c := NewCoordinator("p1")
	if !c.MarkSelfSpawned() {
		t.Fatalf("first signal should spawn")
	}
	// Duplicate and retried signals must not spawn again.
	for i := 0; i < 5; i++ {
		if c.MarkSelfSpawned() {
			t.Fatalf("duplicate signal %d spawned again", i)
		}
	}
	if !c.SelfSpawned() {
		t.Fatalf("completion flag lost")
	}
}

func TestAckTracking(t *testing.T) {
	c := NewCoordinator("host")
	c.Expect([]Assignment{
		{PeerID: "host", Side: SideLeft},
		{PeerID: "guest", Side: SideRight},
	}, 10*time.Second)

	if c.AllAcked() {
		t.Fatalf("nothing acked yet")
	}
	c.Ack("host")
	if c.AllAcked() {
		t.Fatalf("guest not acked yet")
	}
	if got := c.Missing(); len(got) != 1 || got[0] != "guest" {
		t.Fatalf("Missing() = %v", got)
	}

	c.Ack("guest")
	c.Ack("guest") // duplicated ack is harmless
	if !c.AllAcked() {
		t.Fatalf("all peers acked")
	}
	if got := c.Missing(); len(got) != 0 {
		t.Fatalf("Missing() = %v", got)
	}
}

func TestUnknownAckIgnored(t *testing.T) {
	c := NewCoordinator("host")
	c.Expect([]Assignment{{PeerID: "host", Side: SideLeft}}, time.Second)
	c.Ack("stranger")
	if got := c.Missing(); len(got) != 1 || got[0] != "host" {
		t.Fatalf("Missing() = %v", got)
	}
}

func TestSides(t *testing.T) {
	c := NewCoordinator("host")
	c.Expect([]Assignment{
		{PeerID: "host", Side: SideLeft},
		{PeerID: "guest", Side: SideRight},
	}, time.Second)

	if s, ok := c.Side("guest"); !ok || s != SideRight {
		t.Fatalf("Side(guest) = %v %v", s, ok)
	}
	if _, ok := c.Side("stranger"); ok {
		t.Fatalf("stranger has a side")
	}
}

func TestResetOnlyForNewMatch(t *testing.T) {
	c := NewCoordinator("p1")
	c.Expect([]Assignment{{PeerID: "p1", Side: SideLeft}}, time.Second)
	c.MarkSelfSpawned()
	c.Ack("p1")

	c.Reset()
	if c.SelfSpawned() || c.AllAcked() {
		t.Fatalf("reset did not clear state")
	}
	if !c.MarkSelfSpawned() {
		t.Fatalf("fresh match should spawn again")
	}
}
