package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/driftpad/driftpad/internal/relay"
)

func TestStoreClientFetchRoom(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if r.URL.Path != "/api/rooms/abc123" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(RoomRecord{
			ID:               "row-1",
			Name:             "abc123",
			Title:            "Doc",
			Content:          "hello",
			UpdatedAtSeconds: 1700000000,
		})
	}))
	defer server.Close()

	store := NewStoreClient(server.URL, nil)
	record, err := store.FetchRoom(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Title != "Doc" || record.Content != "hello" {
		t.Fatalf("unexpected record %#v", record)
	}
}

func TestStoreClientSaveFieldSendsPartialBody(t *testing.T) {
	var captured map[string]*string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(RoomRecord{Name: "abc123"})
	}))
	defer server.Close()

	store := NewStoreClient(server.URL, nil)
	if err := store.SaveField(context.Background(), "abc123", relay.FieldTitle, "Doc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured["title"] == nil || *captured["title"] != "Doc" {
		t.Fatalf("expected title in body, got %v", captured)
	}
	if _, ok := captured["content"]; ok {
		t.Fatal("title save must not carry the content field")
	}
}

func TestStoreClientSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := NewStoreClient(server.URL, nil)
	if _, err := store.FetchRoom(context.Background(), "abc123"); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestStoreClientEscapesRoomIdentifier(t *testing.T) {
	var capturedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.EscapedPath()
		_ = json.NewEncoder(w).Encode(RoomRecord{})
	}))
	defer server.Close()

	store := NewStoreClient(server.URL, nil)
	if _, err := store.FetchRoom(context.Background(), "a room/with#odd chars"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if capturedPath == "/api/rooms/a room/with#odd chars" {
		t.Fatalf("room id should be path-escaped, got %q", capturedPath)
	}
}
