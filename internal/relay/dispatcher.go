package relay

import (
	"sync"

	"go.uber.org/zap"
)

// Dispatcher fans change events out to every session joined to a room,
// excluding the originator. Delivery is fire-and-forget: sessions that
// cannot keep up have frames dropped rather than blocking the publisher.
type Dispatcher struct {
	mu     sync.RWMutex
	rooms  map[string]map[int64]*Session
	logger *zap.Logger
}

// NewDispatcher constructs a dispatcher shared by every session.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		rooms:  make(map[string]map[int64]*Session),
		logger: logger,
	}
}

// Join subscribes a session to a room's fan-out group.
func (d *Dispatcher) Join(roomID string, session *Session) {
	if roomID == "" || session == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	members, ok := d.rooms[roomID]
	if !ok {
		members = make(map[int64]*Session)
		d.rooms[roomID] = members
	}
	members[session.id] = session
}

// Leave unsubscribes a session from a room without closing the connection.
func (d *Dispatcher) Leave(roomID string, session *Session) {
	if roomID == "" || session == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leaveLocked(roomID, session)
}

// Detach removes a disconnected session from every room it had joined.
func (d *Dispatcher) Detach(session *Session) {
	if session == nil {
		return
	}
	rooms := session.joinedRooms()
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, roomID := range rooms {
		d.leaveLocked(roomID, session)
	}
}

// Publish delivers a pre-encoded frame to every member of the room except
// the excluded session. Once accepted, a frame is unconditionally fanned
// out; there is no cancellation for in-flight broadcasts.
func (d *Dispatcher) Publish(roomID string, frame []byte, exclude *Session) {
	if roomID == "" || len(frame) == 0 {
		return
	}
	d.mu.RLock()
	members := d.rooms[roomID]
	if len(members) == 0 {
		d.mu.RUnlock()
		return
	}
	targets := make([]*Session, 0, len(members))
	for _, member := range members {
		if exclude != nil && member.id == exclude.id {
			continue
		}
		targets = append(targets, member)
	}
	d.mu.RUnlock()

	for _, target := range targets {
		if !target.enqueue(frame) {
			d.logger.Debug("dropped frame for slow session",
				zap.Int64("session_id", target.id),
				zap.String("room_id", roomID))
		}
	}
}

// MemberCount reports how many sessions are joined to the room.
func (d *Dispatcher) MemberCount(roomID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms[roomID])
}

func (d *Dispatcher) leaveLocked(roomID string, session *Session) {
	members := d.rooms[roomID]
	if members == nil {
		return
	}
	delete(members, session.id)
	if len(members) == 0 {
		delete(d.rooms, roomID)
	}
}
