package relay

import (
	"encoding/json"
	"errors"
	"strings"
)

// Field identifies which document field a change event carries. The wire
// protocol keeps distinct event names per field, but internally every change
// is the same tagged value.
type Field string

const (
	FieldTitle   Field = "title"
	FieldContent Field = "content"
)

// Wire event names exchanged with clients.
const (
	EventJoinRoom       = "join-room"
	EventLeaveRoom      = "leave-room"
	EventRoomData       = "room-data"
	EventContentChange  = "content-change"
	EventContentChanged = "content-changed"
	EventTitleChange    = "title-change"
	EventTitleChanged   = "title-changed"
)

// ErrMalformedEnvelope indicates a frame that cannot be interpreted as a
// relay event. Such frames are dropped without acknowledgment.
var ErrMalformedEnvelope = errors.New("relay: malformed envelope")

// Envelope frames every message on the relay socket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type membershipPayload struct {
	RoomID string `json:"roomId"`
}

type changePayload struct {
	RoomID  string  `json:"roomId"`
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

type changedPayload struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

type roomDataPayload struct {
	Content string `json:"content"`
	Title   string `json:"title"`
}

// ChangeEvent is the internal tagged form of a title or content change.
type ChangeEvent struct {
	RoomID string
	Field  Field
	Value  string
}

// DecodeEnvelope parses a raw frame into an Envelope.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return Envelope{}, ErrMalformedEnvelope
	}
	if strings.TrimSpace(envelope.Event) == "" {
		return Envelope{}, ErrMalformedEnvelope
	}
	return envelope, nil
}

func decodeMembership(envelope Envelope) (string, error) {
	var payload membershipPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return "", ErrMalformedEnvelope
	}
	roomID := strings.TrimSpace(payload.RoomID)
	if roomID == "" {
		return "", ErrMalformedEnvelope
	}
	return roomID, nil
}

func decodeChange(envelope Envelope) (ChangeEvent, error) {
	var payload changePayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return ChangeEvent{}, ErrMalformedEnvelope
	}
	roomID := strings.TrimSpace(payload.RoomID)
	if roomID == "" {
		return ChangeEvent{}, ErrMalformedEnvelope
	}
	switch envelope.Event {
	case EventTitleChange:
		if payload.Title == nil {
			return ChangeEvent{}, ErrMalformedEnvelope
		}
		return ChangeEvent{RoomID: roomID, Field: FieldTitle, Value: *payload.Title}, nil
	case EventContentChange:
		if payload.Content == nil {
			return ChangeEvent{}, ErrMalformedEnvelope
		}
		return ChangeEvent{RoomID: roomID, Field: FieldContent, Value: *payload.Content}, nil
	default:
		return ChangeEvent{}, ErrMalformedEnvelope
	}
}

// EncodeRoomData frames the snapshot unicast sent to a freshly joined session.
func EncodeRoomData(snapshot Snapshot) ([]byte, error) {
	return encodeEnvelope(EventRoomData, roomDataPayload{
		Content: snapshot.Content,
		Title:   snapshot.Title,
	})
}

// EncodeChanged frames the fan-out counterpart of a change event. The
// outbound payload carries only the changed field, never the room identifier.
func EncodeChanged(field Field, value string) ([]byte, error) {
	payload := changedPayload{}
	event := ""
	switch field {
	case FieldTitle:
		event = EventTitleChanged
		payload.Title = &value
	case FieldContent:
		event = EventContentChanged
		payload.Content = &value
	default:
		return nil, ErrMalformedEnvelope
	}
	return encodeEnvelope(event, payload)
}

// EncodeMembership frames a join-room or leave-room request.
func EncodeMembership(event, roomID string) ([]byte, error) {
	return encodeEnvelope(event, membershipPayload{RoomID: roomID})
}

// EncodeChange frames a client-originated change event.
func EncodeChange(change ChangeEvent) ([]byte, error) {
	payload := changePayload{RoomID: change.RoomID}
	event := ""
	switch change.Field {
	case FieldTitle:
		event = EventTitleChange
		payload.Title = &change.Value
	case FieldContent:
		event = EventContentChange
		payload.Content = &change.Value
	default:
		return nil, ErrMalformedEnvelope
	}
	return encodeEnvelope(event, payload)
}

func encodeEnvelope(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
