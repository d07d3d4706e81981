package rooms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// ServiceError carries an operation.reason code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew  = "rooms.service.new"
	opGetOrCreate = "rooms.get_or_create"
	opUpsert      = "rooms.upsert"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies required by the durable store.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// IDProvider issues stable row identities for new documents.
type IDProvider interface {
	NewID() (string, error)
}

// Service is the durable store for room documents. The relay never touches
// it; clients call it directly over the REST surface.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService validates dependencies and constructs the durable store service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// GetOrCreate returns the persisted document for the room, creating one with
// the default welcome content on first access.
func (s *Service) GetOrCreate(ctx context.Context, roomID RoomID) (Document, error) {
	var document Document
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("name = ?", roomID.String()).Take(&document).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logError(opGetOrCreate, "document_select_failed", err, zap.String("room_id", roomID.String()))
			return newServiceError(opGetOrCreate, "document_select_failed", err)
		}

		created, err := s.newDocument(roomID, UpsertRequest{})
		if err != nil {
			s.logError(opGetOrCreate, "id_generation_failed", err, zap.String("room_id", roomID.String()))
			return newServiceError(opGetOrCreate, "id_generation_failed", err)
		}
		if err := tx.Create(&created).Error; err != nil {
			s.logError(opGetOrCreate, "document_insert_failed", err, zap.String("room_id", roomID.String()))
			return newServiceError(opGetOrCreate, "document_insert_failed", err)
		}
		document = created
		return nil
	})
	if txErr != nil {
		return Document{}, txErr
	}
	return document, nil
}

// Upsert applies a partial update to the room document, creating it when
// absent. Nil fields in the request leave the stored value untouched.
func (s *Service) Upsert(ctx context.Context, roomID RoomID, request UpsertRequest) (Document, error) {
	var document Document
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Document
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("name = ?", roomID.String()).
			Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created, err := s.newDocument(roomID, request)
			if err != nil {
				s.logError(opUpsert, "id_generation_failed", err, zap.String("room_id", roomID.String()))
				return newServiceError(opUpsert, "id_generation_failed", err)
			}
			if err := tx.Create(&created).Error; err != nil {
				s.logError(opUpsert, "document_insert_failed", err, zap.String("room_id", roomID.String()))
				return newServiceError(opUpsert, "document_insert_failed", err)
			}
			document = created
			return nil
		}
		if err != nil {
			s.logError(opUpsert, "document_select_failed", err, zap.String("room_id", roomID.String()))
			return newServiceError(opUpsert, "document_select_failed", err)
		}

		if request.Title != nil {
			existing.Title = *request.Title
		}
		if request.Content != nil {
			existing.Content = *request.Content
		}
		if !request.empty() {
			existing.UpdatedAtSeconds = s.clock().UTC().Unix()
		}
		if err := tx.Save(&existing).Error; err != nil {
			s.logError(opUpsert, "document_save_failed", err, zap.String("room_id", roomID.String()))
			return newServiceError(opUpsert, "document_save_failed", err)
		}
		document = existing
		return nil
	})
	if txErr != nil {
		return Document{}, txErr
	}
	return document, nil
}

func (s *Service) newDocument(roomID RoomID, request UpsertRequest) (Document, error) {
	rowID, err := s.idProvider.NewID()
	if err != nil {
		return Document{}, err
	}
	now := s.clock().UTC().Unix()
	document := Document{
		ID:               rowID,
		Name:             roomID.String(),
		Title:            "",
		Content:          DefaultContent,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	if request.Title != nil {
		document.Title = *request.Title
	}
	if request.Content != nil {
		document.Content = *request.Content
	}
	return document, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("rooms service error", attrs...)
}
