package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/driftpad/driftpad/internal/relay"
	"go.uber.org/zap"
)

const (
	// DefaultBroadcastDelay tunes the relay debounce window for perceived
	// collaboration latency.
	DefaultBroadcastDelay = 300 * time.Millisecond
	// DefaultSaveDelay tunes the durable-write debounce window so bursts of
	// keystrokes do not hammer the store.
	DefaultSaveDelay = time.Second

	saveTimeout = 5 * time.Second
)

var (
	errMissingRoomID = errors.New("client: room id is required")
	errMissingRelay  = errors.New("client: relay sender is required")
	errMissingStore  = errors.New("client: store saver is required")
)

// RelaySender is the outbound half of the relay connection the emitter needs.
type RelaySender interface {
	SendChange(change relay.ChangeEvent) error
}

// StoreSaver issues durable partial upserts for a single field.
type StoreSaver interface {
	SaveField(ctx context.Context, roomID string, field relay.Field, value string) error
}

// EmitterConfig describes one editing surface bound to a room.
type EmitterConfig struct {
	RoomID         string
	Relay          RelaySender
	Store          StoreSaver
	BroadcastDelay time.Duration
	SaveDelay      time.Duration
	Logger         *zap.Logger
}

// Emitter decouples keystroke-rate local edits from the broadcast channel
// and the durable-write channel. Local state always updates synchronously;
// each field owns two independent debounce timers (broadcast and save) that
// reset on every edit and carry only the settled value. The two timers share
// no ordering guarantee.
type Emitter struct {
	roomID string
	relay  RelaySender
	store  StoreSaver
	logger *zap.Logger

	mu      sync.RWMutex
	title   string
	content string

	titleBroadcast   *Debouncer
	contentBroadcast *Debouncer
	titleSave        *Debouncer
	contentSave      *Debouncer
}

// NewEmitter validates dependencies and wires the four debounce timers.
func NewEmitter(cfg EmitterConfig) (*Emitter, error) {
	if cfg.RoomID == "" {
		return nil, errMissingRoomID
	}
	if cfg.Relay == nil {
		return nil, errMissingRelay
	}
	if cfg.Store == nil {
		return nil, errMissingStore
	}

	broadcastDelay := cfg.BroadcastDelay
	if broadcastDelay <= 0 {
		broadcastDelay = DefaultBroadcastDelay
	}
	saveDelay := cfg.SaveDelay
	if saveDelay <= 0 {
		saveDelay = DefaultSaveDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	emitter := &Emitter{
		roomID: cfg.RoomID,
		relay:  cfg.Relay,
		store:  cfg.Store,
		logger: logger,
	}
	emitter.titleBroadcast = NewDebouncer(broadcastDelay, func(value string) {
		emitter.broadcast(relay.FieldTitle, value)
	})
	emitter.contentBroadcast = NewDebouncer(broadcastDelay, func(value string) {
		emitter.broadcast(relay.FieldContent, value)
	})
	emitter.titleSave = NewDebouncer(saveDelay, func(value string) {
		emitter.save(relay.FieldTitle, value)
	})
	emitter.contentSave = NewDebouncer(saveDelay, func(value string) {
		emitter.save(relay.FieldContent, value)
	})
	return emitter, nil
}

// SetTitle applies a local edit: state updates synchronously, both title
// timers restart.
func (e *Emitter) SetTitle(value string) {
	e.mu.Lock()
	e.title = value
	e.mu.Unlock()
	e.titleBroadcast.Trigger(value)
	e.titleSave.Trigger(value)
}

// SetContent applies a local edit to the content field.
func (e *Emitter) SetContent(value string) {
	e.mu.Lock()
	e.content = value
	e.mu.Unlock()
	e.contentBroadcast.Trigger(value)
	e.contentSave.Trigger(value)
}

// ApplyRemoteTitle overwrites local state with a peer's update. No merge
// against in-flight local edits; last write wins.
func (e *Emitter) ApplyRemoteTitle(value string) {
	e.mu.Lock()
	e.title = value
	e.mu.Unlock()
}

// ApplyRemoteContent overwrites local content with a peer's update.
func (e *Emitter) ApplyRemoteContent(value string) {
	e.mu.Lock()
	e.content = value
	e.mu.Unlock()
}

// Title returns the current local title.
func (e *Emitter) Title() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.title
}

// Content returns the current local content.
func (e *Emitter) Content() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.content
}

// Flush fires every pending timer immediately, typically before shutdown.
func (e *Emitter) Flush() {
	e.titleBroadcast.Flush()
	e.contentBroadcast.Flush()
	e.titleSave.Flush()
	e.contentSave.Flush()
}

// Close stops all timers without firing.
func (e *Emitter) Close() {
	e.titleBroadcast.Stop()
	e.contentBroadcast.Stop()
	e.titleSave.Stop()
	e.contentSave.Stop()
}

func (e *Emitter) broadcast(field relay.Field, value string) {
	err := e.relay.SendChange(relay.ChangeEvent{RoomID: e.roomID, Field: field, Value: value})
	if err != nil {
		// Advisory only; the next edit re-triggers the timer.
		e.logger.Warn("failed to broadcast change",
			zap.String("room_id", e.roomID),
			zap.String("field", string(field)),
			zap.Error(err))
	}
}

func (e *Emitter) save(field relay.Field, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := e.store.SaveField(ctx, e.roomID, field, value); err != nil {
		// A failed save is retried only implicitly, by the next edit.
		e.logger.Warn("failed to save change",
			zap.String("room_id", e.roomID),
			zap.String("field", string(field)),
			zap.Error(err))
	}
}
