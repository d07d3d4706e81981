package relay

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const defaultOutboundBuffer = 16

var (
	errMissingConn       = errors.New("relay: connection is required")
	errMissingRegistry   = errors.New("relay: registry is required")
	errMissingDispatcher = errors.New("relay: dispatcher is required")
)

var sessionSequence int64

// Conn is the subset of *websocket.Conn a session needs. Tests substitute
// in-memory pipes.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// SessionConfig describes the dependencies for one connected client socket.
type SessionConfig struct {
	Conn       Conn
	Registry   *Registry
	Dispatcher *Dispatcher
	Logger     *zap.Logger
	// OutboundBuffer bounds the per-session frame queue; frames beyond it
	// are dropped rather than blocking the publisher.
	OutboundBuffer int
}

// Session bridges one client socket to the registry and the dispatcher. It
// tracks which rooms the socket has joined and owns the single read loop
// that serializes this client's inbound events.
type Session struct {
	id         int64
	conn       Conn
	registry   *Registry
	dispatcher *Dispatcher
	logger     *zap.Logger

	outbound  chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu    sync.Mutex
	rooms map[string]struct{}
}

// NewSession constructs a session for an accepted connection. Run must be
// called to start processing.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Conn == nil {
		return nil, errMissingConn
	}
	if cfg.Registry == nil {
		return nil, errMissingRegistry
	}
	if cfg.Dispatcher == nil {
		return nil, errMissingDispatcher
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	buffer := cfg.OutboundBuffer
	if buffer <= 0 {
		buffer = defaultOutboundBuffer
	}
	return &Session{
		id:         atomic.AddInt64(&sessionSequence, 1),
		conn:       cfg.Conn,
		registry:   cfg.Registry,
		dispatcher: cfg.Dispatcher,
		logger:     logger,
		outbound:   make(chan []byte, buffer),
		done:       make(chan struct{}),
		rooms:      make(map[string]struct{}),
	}, nil
}

// Run processes the connection until it closes. It blocks the caller on the
// read loop and drains outbound frames on a separate goroutine.
func (s *Session) Run() {
	go s.writeLoop()
	defer s.Close()

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			s.logger.Debug("session read ended", zap.Int64("session_id", s.id), zap.Error(err))
			return
		}
		s.handleFrame(frame)
	}
}

// Close detaches the session from every joined room and closes the
// connection. Safe to call multiple times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.dispatcher.Detach(s)
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *Session) handleFrame(frame []byte) {
	envelope, err := DecodeEnvelope(frame)
	if err != nil {
		s.logger.Debug("dropped malformed frame", zap.Int64("session_id", s.id))
		return
	}

	switch envelope.Event {
	case EventJoinRoom:
		roomID, err := decodeMembership(envelope)
		if err != nil {
			s.logger.Debug("dropped malformed join", zap.Int64("session_id", s.id))
			return
		}
		s.joinRoom(roomID)
	case EventLeaveRoom:
		roomID, err := decodeMembership(envelope)
		if err != nil {
			s.logger.Debug("dropped malformed leave", zap.Int64("session_id", s.id))
			return
		}
		s.leaveRoom(roomID)
	case EventTitleChange, EventContentChange:
		change, err := decodeChange(envelope)
		if err != nil {
			s.logger.Debug("dropped malformed change", zap.Int64("session_id", s.id))
			return
		}
		s.applyChange(change)
	default:
		s.logger.Debug("dropped unknown event",
			zap.Int64("session_id", s.id),
			zap.String("event", envelope.Event))
	}
}

func (s *Session) joinRoom(roomID string) {
	s.mu.Lock()
	s.rooms[roomID] = struct{}{}
	s.mu.Unlock()
	s.dispatcher.Join(roomID, s)

	snapshot, ok := s.registry.Snapshot(roomID)
	if !ok {
		return
	}
	frame, err := EncodeRoomData(snapshot)
	if err != nil {
		s.logger.Error("failed to encode room data", zap.Error(err))
		return
	}
	if !s.enqueue(frame) {
		s.logger.Debug("dropped room data for slow session", zap.Int64("session_id", s.id))
	}
}

func (s *Session) leaveRoom(roomID string) {
	s.mu.Lock()
	delete(s.rooms, roomID)
	s.mu.Unlock()
	s.dispatcher.Leave(roomID, s)
}

func (s *Session) applyChange(change ChangeEvent) {
	s.registry.Apply(change.RoomID, change.Field, change.Value)

	frame, err := EncodeChanged(change.Field, change.Value)
	if err != nil {
		s.logger.Error("failed to encode change", zap.Error(err))
		return
	}
	s.dispatcher.Publish(change.RoomID, frame, s)
}

// enqueue offers a frame to the outbound queue without blocking, reporting
// whether it was accepted.
func (s *Session) enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.outbound <- frame:
		return true
	default:
		return false
	}
}

func (s *Session) joinedRooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]string, 0, len(s.rooms))
	for roomID := range s.rooms {
		rooms = append(rooms, roomID)
	}
	return rooms
}

func (s *Session) writeLoop() {
	for {
		select {
		case frame := <-s.outbound:
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.logger.Debug("session write failed", zap.Int64("session_id", s.id), zap.Error(err))
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}
