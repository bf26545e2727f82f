package hub

import (
	"context"
	"testing"
	"time"

	"github.com/duelarena/backend/internal/session"
)

func TestHub_Create_Get_SamePointer(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, session.Options{})
	reply := make(chan *session.Session, 1)

	h.Inbox() <- CreateSession{Code: "ZED123", Reply: reply}
	s1 := <-reply

	h.Inbox() <- GetSession{Code: "ZED123", Reply: reply}
	s2 := <-reply

	if s1 == nil || s2 == nil || s1 != s2 {
		t.Fatalf("expected same session pointer")
	}
}

func TestHub_GetMissingIsNil(t *testing.T) {
	h := NewHub(context.Background(), session.Options{})
	reply := make(chan *session.Session, 1)

	h.Inbox() <- GetSession{Code: "NOPE00", Reply: reply}
	if s := <-reply; s != nil {
		t.Fatalf("expected nil for unknown code")
	}
}

func TestHub_EmptiedSessionUnregistersAndRejoinWorks(t *testing.T) {
	h := NewHub(context.Background(), session.Options{})
	reply := make(chan *session.Session, 1)

	h.Inbox() <- CreateSession{Code: "GONE01", Reply: reply}
	s1 := <-reply

	join := func(s *session.Session, id string) session.JoinResult {
		out := make(chan session.Outgoing, 8)
		jr := make(chan session.JoinResult, 1)
		s.Inbox() <- session.Join{PeerID: id, Nick: id, Outbox: out, Reply: jr}
		select {
		case res := <-jr:
			return res
		case <-time.After(2 * time.Second):
			t.Fatalf("join reply never arrived for %s", id)
			return session.JoinResult{}
		}
	}

	if res := join(s1, "p1"); !res.OK {
		t.Fatalf("first join rejected: %s", res.Reason)
	}
	s1.Inbox() <- session.Leave{PeerID: "p1"}

	// The emptied session shuts down and unregisters itself; the code must
	// stop resolving.
	deadline := time.After(2 * time.Second)
	for {
		h.Inbox() <- GetSession{Code: "GONE01", Reply: reply}
		if got := <-reply; got == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("emptied session still reachable through the hub")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// A later peer for the same code gets a fresh, live session.
	h.Inbox() <- EnsureSession{Code: "GONE01", Reply: reply}
	s2 := <-reply
	if s2 == nil || s2 == s1 {
		t.Fatalf("expected a fresh session for the reused code")
	}
	if res := join(s2, "p2"); !res.OK {
		t.Fatalf("rejoin rejected: %s", res.Reason)
	}
}

func TestHub_RemoveThenEnsureCreatesFresh(t *testing.T) {
	h := NewHub(context.Background(), session.Options{})
	reply := make(chan *session.Session, 1)

	h.Inbox() <- CreateSession{Code: "ABC123", Reply: reply}
	s1 := <-reply

	h.Inbox() <- RemoveSession{Code: "ABC123"}
	h.Inbox() <- EnsureSession{Code: "ABC123", Reply: reply}
	s2 := <-reply

	if s1 == s2 {
		t.Fatalf("expected a fresh session after removal")
	}
}
