package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var errFakeConnClosed = errors.New("fake conn closed")

// fakeConn is an in-memory Conn: tests feed frames on inbound and observe
// what the session writes on outbound.
type fakeConn struct {
	inbound  chan []byte
	outbound chan []byte
	closed   chan struct{}
	once     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:  make(chan []byte, 32),
		outbound: make(chan []byte, 32),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case frame := <-c.inbound:
		return websocket.TextMessage, frame, nil
	case <-c.closed:
		return 0, nil, errFakeConnClosed
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case c.outbound <- data:
		return nil
	case <-c.closed:
		return errFakeConnClosed
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) send(t *testing.T, frame []byte) {
	t.Helper()
	select {
	case c.inbound <- frame:
	case <-time.After(time.Second):
		t.Fatal("timed out feeding frame to session")
	}
}

func (c *fakeConn) receive(t *testing.T) Envelope {
	t.Helper()
	select {
	case frame := <-c.outbound:
		envelope, err := DecodeEnvelope(frame)
		if err != nil {
			t.Fatalf("received undecodable frame: %v", err)
		}
		return envelope
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbound frame")
		return Envelope{}
	}
}

func (c *fakeConn) expectSilence(t *testing.T, window time.Duration) {
	t.Helper()
	select {
	case frame := <-c.outbound:
		t.Fatalf("expected no outbound frame, got %s", frame)
	case <-time.After(window):
	}
}

func mustFrame(t *testing.T, event string, payload interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		t.Fatalf("failed to marshal envelope: %v", err)
	}
	return frame
}

func startSession(t *testing.T, registry *Registry, dispatcher *Dispatcher) (*Session, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	session, err := NewSession(SessionConfig{
		Conn:       conn,
		Registry:   registry,
		Dispatcher: dispatcher,
	})
	if err != nil {
		t.Fatalf("failed to construct session: %v", err)
	}
	go session.Run()
	t.Cleanup(session.Close)
	return session, conn
}

func decodePayload(t *testing.T, envelope Envelope, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(envelope.Data, target); err != nil {
		t.Fatalf("failed to decode %s payload: %v", envelope.Event, err)
	}
}
