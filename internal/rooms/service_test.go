package rooms

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequentialIDProvider struct {
	next int
}

func (p *sequentialIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("row-%d", p.next), nil
}

func newTestService(t *testing.T, clock func() time.Time) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(&Document{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: &sequentialIDProvider{},
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func mustRoomID(t *testing.T, value string) RoomID {
	t.Helper()
	id, err := NewRoomID(value)
	if err != nil {
		t.Fatalf("unexpected room id error: %v", err)
	}
	return id
}

func pointerTo(value string) *string {
	v := value
	return &v
}

func TestGetOrCreateSeedsDefaultDocument(t *testing.T) {
	service := newTestService(t, func() time.Time { return time.Unix(1700000000, 0) })
	roomID := mustRoomID(t, "abc123")

	document, err := service.GetOrCreate(context.Background(), roomID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if document.Name != "abc123" {
		t.Fatalf("unexpected name %q", document.Name)
	}
	if document.Title != "" {
		t.Fatalf("expected empty title, got %q", document.Title)
	}
	if document.Content != DefaultContent {
		t.Fatalf("expected default content, got %q", document.Content)
	}
	if document.ID == "" {
		t.Fatal("expected a stable row identity")
	}
	if document.UpdatedAtSeconds != 1700000000 {
		t.Fatalf("unexpected updated_at %d", document.UpdatedAtSeconds)
	}
}

func TestGetOrCreateReturnsExistingDocument(t *testing.T) {
	service := newTestService(t, func() time.Time { return time.Unix(1700000000, 0) })
	roomID := mustRoomID(t, "abc123")

	first, err := service.GetOrCreate(context.Background(), roomID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := service.GetOrCreate(context.Background(), roomID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same row, got %q and %q", first.ID, second.ID)
	}

	var count int64
	if err := service.db.Model(&Document{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single row, got %d", count)
	}
}

func TestUpsertPartialUpdateLeavesOtherFieldUntouched(t *testing.T) {
	now := time.Unix(1700000000, 0)
	service := newTestService(t, func() time.Time { return now })
	roomID := mustRoomID(t, "abc123")

	if _, err := service.Upsert(context.Background(), roomID, UpsertRequest{
		Title:   pointerTo("Doc"),
		Content: pointerTo("hello"),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now = time.Unix(1700000500, 0)
	updated, err := service.Upsert(context.Background(), roomID, UpsertRequest{Title: pointerTo("Doc v2")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Title != "Doc v2" {
		t.Fatalf("unexpected title %q", updated.Title)
	}
	if updated.Content != "hello" {
		t.Fatalf("title-only upsert must not touch content, got %q", updated.Content)
	}
	if updated.UpdatedAtSeconds != 1700000500 {
		t.Fatalf("expected updated_at bump, got %d", updated.UpdatedAtSeconds)
	}
}

func TestUpsertCreatesDocumentWhenAbsent(t *testing.T) {
	service := newTestService(t, func() time.Time { return time.Unix(1700000000, 0) })
	roomID := mustRoomID(t, "fresh")

	document, err := service.Upsert(context.Background(), roomID, UpsertRequest{Title: pointerTo("Doc")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if document.Title != "Doc" {
		t.Fatalf("unexpected title %q", document.Title)
	}
	if document.Content != DefaultContent {
		t.Fatalf("unspecified content should default, got %q", document.Content)
	}
}

func TestUpsertEmptyRequestIsReadBack(t *testing.T) {
	now := time.Unix(1700000000, 0)
	service := newTestService(t, func() time.Time { return now })
	roomID := mustRoomID(t, "abc123")

	if _, err := service.Upsert(context.Background(), roomID, UpsertRequest{Content: pointerTo("hello")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now = time.Unix(1700009999, 0)
	document, err := service.Upsert(context.Background(), roomID, UpsertRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if document.Content != "hello" {
		t.Fatalf("unexpected content %q", document.Content)
	}
	if document.UpdatedAtSeconds != 1700000000 {
		t.Fatalf("empty upsert must not bump updated_at, got %d", document.UpdatedAtSeconds)
	}
}

func TestUpsertAllowsClearingFields(t *testing.T) {
	service := newTestService(t, func() time.Time { return time.Unix(1700000000, 0) })
	roomID := mustRoomID(t, "abc123")

	if _, err := service.Upsert(context.Background(), roomID, UpsertRequest{
		Title:   pointerTo("Doc"),
		Content: pointerTo("hello"),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cleared, err := service.Upsert(context.Background(), roomID, UpsertRequest{Title: pointerTo("")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleared.Title != "" {
		t.Fatalf("expected cleared title, got %q", cleared.Title)
	}
	if cleared.Content != "hello" {
		t.Fatalf("unexpected content %q", cleared.Content)
	}
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	if _, err := NewService(ServiceConfig{IDProvider: &sequentialIDProvider{}}); err == nil {
		t.Fatal("expected error for missing database")
	}

	dsn := "file:validate_deps?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	if _, err := NewService(ServiceConfig{Database: db}); err == nil {
		t.Fatal("expected error for missing id provider")
	}
}
