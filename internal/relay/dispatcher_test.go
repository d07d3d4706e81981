package relay

import (
	"testing"
	"time"
)

func newIdleSession(t *testing.T, buffer int) *Session {
	t.Helper()
	session, err := NewSession(SessionConfig{
		Conn:           newFakeConn(),
		Registry:       NewRegistry(),
		Dispatcher:     NewDispatcher(nil),
		OutboundBuffer: buffer,
	})
	if err != nil {
		t.Fatalf("failed to construct session: %v", err)
	}
	return session
}

func TestDispatcherPublishExcludesOriginator(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	origin := newIdleSession(t, 4)
	peer := newIdleSession(t, 4)

	dispatcher.Join("room-x", origin)
	dispatcher.Join("room-x", peer)

	dispatcher.Publish("room-x", []byte(`{"event":"title-changed"}`), origin)

	if len(peer.outbound) != 1 {
		t.Fatalf("expected peer to receive one frame, got %d", len(peer.outbound))
	}
	if len(origin.outbound) != 0 {
		t.Fatalf("originator must not receive its own echo, got %d frames", len(origin.outbound))
	}
}

func TestDispatcherLeaveStopsDelivery(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	stayer := newIdleSession(t, 4)
	leaver := newIdleSession(t, 4)

	dispatcher.Join("room-x", stayer)
	dispatcher.Join("room-x", leaver)
	dispatcher.Leave("room-x", leaver)

	dispatcher.Publish("room-x", []byte(`{"event":"content-changed"}`), nil)

	if len(stayer.outbound) != 1 {
		t.Fatalf("expected remaining member to receive the frame, got %d", len(stayer.outbound))
	}
	if len(leaver.outbound) != 0 {
		t.Fatalf("departed session must not receive frames, got %d", len(leaver.outbound))
	}
}

func TestDispatcherDetachRemovesEveryMembership(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	session := newIdleSession(t, 4)
	session.rooms["room-a"] = struct{}{}
	session.rooms["room-b"] = struct{}{}

	dispatcher.Join("room-a", session)
	dispatcher.Join("room-b", session)
	dispatcher.Detach(session)

	if count := dispatcher.MemberCount("room-a"); count != 0 {
		t.Fatalf("expected room-a to be empty, got %d members", count)
	}
	if count := dispatcher.MemberCount("room-b"); count != 0 {
		t.Fatalf("expected room-b to be empty, got %d members", count)
	}
}

func TestDispatcherPublishToEmptyRoomIsNoOp(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	dispatcher.Publish("nobody-here", []byte(`{"event":"content-changed"}`), nil)
}

func TestDispatcherSlowSessionDoesNotBlockPublisher(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	slow := newIdleSession(t, 1)
	dispatcher.Join("room-x", slow)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i := 0; i < 50; i++ {
			dispatcher.Publish("room-x", []byte(`{"event":"content-changed"}`), nil)
		}
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a slow session")
	}

	if len(slow.outbound) != 1 {
		t.Fatalf("expected excess frames to be dropped, buffer holds %d", len(slow.outbound))
	}
}
