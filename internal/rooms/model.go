package rooms

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

// DefaultContent seeds a freshly created document.
const DefaultContent = "# Welcome to the collaborative MDX editor!\n\nStart typing to create content..."

// ErrInvalidRoomID indicates that a room identifier is empty or exceeds storage bounds.
var ErrInvalidRoomID = errors.New("rooms: invalid room id")

// RoomID represents a validated room identifier. Room identifiers are opaque
// client-supplied tokens; two clients presenting the same token share a room
// by design.
type RoomID string

// NewRoomID validates raw input and returns a RoomID.
func NewRoomID(rawInput string) (RoomID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidRoomID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidRoomID, maxIdentifierLength)
	}
	return RoomID(trimmed), nil
}

// String returns the underlying string identifier.
func (id RoomID) String() string {
	return string(id)
}

// Document models the persisted counterpart of a room snapshot. The row
// identity is stable and distinct from the room identifier.
type Document struct {
	ID               string `gorm:"column:id;primaryKey;size:190;not null"`
	Name             string `gorm:"column:name;size:190;not null;uniqueIndex:idx_documents_name"`
	Title            string `gorm:"column:title;type:text;not null"`
	Content          string `gorm:"column:content;type:text;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Document) TableName() string {
	return "room_documents"
}

// UpsertRequest describes a partial update; nil fields are left unchanged.
type UpsertRequest struct {
	Title   *string
	Content *string
}

func (r UpsertRequest) empty() bool {
	return r.Title == nil && r.Content == nil
}
