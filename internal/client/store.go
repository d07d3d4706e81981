package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/driftpad/driftpad/internal/relay"
	"go.uber.org/zap"
)

// RoomRecord mirrors the durable store's JSON representation of a room.
type RoomRecord struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Title            string `json:"title"`
	Content          string `json:"content"`
	UpdatedAtSeconds int64  `json:"updated_at_s"`
}

// StoreClient talks to the durable store REST surface. The relay is never
// involved; saves go straight to storage.
type StoreClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewStoreClient constructs a client for the given server base URL.
func NewStoreClient(serverURL string, logger *zap.Logger) *StoreClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreClient{
		baseURL:    strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// FetchRoom loads the persisted record, which the store creates with default
// content on first access.
func (c *StoreClient) FetchRoom(ctx context.Context, roomID string) (RoomRecord, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.roomURL(roomID), http.NoBody)
	if err != nil {
		return RoomRecord{}, err
	}
	return c.doRoomRequest(request)
}

// SaveFields issues a partial upsert; nil fields are left unchanged.
func (c *StoreClient) SaveFields(ctx context.Context, roomID string, title, content *string) (RoomRecord, error) {
	payload := struct {
		Title   *string `json:"title,omitempty"`
		Content *string `json:"content,omitempty"`
	}{Title: title, Content: content}

	body, err := json.Marshal(payload)
	if err != nil {
		return RoomRecord{}, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.roomURL(roomID), bytes.NewReader(body))
	if err != nil {
		return RoomRecord{}, err
	}
	request.Header.Set("Content-Type", "application/json")
	return c.doRoomRequest(request)
}

// SaveField implements StoreSaver for the emitter's save timers.
func (c *StoreClient) SaveField(ctx context.Context, roomID string, field relay.Field, value string) error {
	var err error
	switch field {
	case relay.FieldTitle:
		_, err = c.SaveFields(ctx, roomID, &value, nil)
	case relay.FieldContent:
		_, err = c.SaveFields(ctx, roomID, nil, &value)
	default:
		err = fmt.Errorf("client: unknown field %q", field)
	}
	return err
}

func (c *StoreClient) doRoomRequest(request *http.Request) (RoomRecord, error) {
	response, err := c.httpClient.Do(request)
	if err != nil {
		return RoomRecord{}, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return RoomRecord{}, fmt.Errorf("client: store responded %d", response.StatusCode)
	}

	var record RoomRecord
	if err := json.NewDecoder(response.Body).Decode(&record); err != nil {
		return RoomRecord{}, err
	}
	return record, nil
}

func (c *StoreClient) roomURL(roomID string) string {
	return c.baseURL + "/api/rooms/" + url.PathEscape(roomID)
}
