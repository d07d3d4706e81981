package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/driftpad/driftpad/internal/relay"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var errRelayClosed = errors.New("client: relay connection closed")

// RelayHandlers receives relay-to-client events. Nil handlers are skipped.
type RelayHandlers struct {
	OnRoomData       func(content, title string)
	OnContentChanged func(content string)
	OnTitleChanged   func(title string)
}

// RelayClient maintains one full-duplex relay connection. Writes are
// serialized; inbound events are dispatched from a single read loop, so
// handler invocations for one connection never overlap.
type RelayClient struct {
	conn     *websocket.Conn
	handlers RelayHandlers
	logger   *zap.Logger

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

// DialRelay connects to the relay websocket endpoint of the given server
// base URL (http or https) and starts the read loop.
func DialRelay(ctx context.Context, serverURL string, handlers RelayHandlers, logger *zap.Logger) (*RelayClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	endpoint, err := relayEndpoint(serverURL)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("client: relay dial failed: %w", err)
	}

	client := &RelayClient{
		conn:     conn,
		handlers: handlers,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go client.readLoop()
	return client, nil
}

// Join subscribes this connection to a room's fan-out group.
func (c *RelayClient) Join(roomID string) error {
	frame, err := relay.EncodeMembership(relay.EventJoinRoom, roomID)
	if err != nil {
		return err
	}
	return c.writeFrame(frame)
}

// Leave unsubscribes from a room without closing the connection.
func (c *RelayClient) Leave(roomID string) error {
	frame, err := relay.EncodeMembership(relay.EventLeaveRoom, roomID)
	if err != nil {
		return err
	}
	return c.writeFrame(frame)
}

// SendChange emits a title or content change to the relay.
func (c *RelayClient) SendChange(change relay.ChangeEvent) error {
	frame, err := relay.EncodeChange(change)
	if err != nil {
		return err
	}
	return c.writeFrame(frame)
}

// Close tears down the connection. Safe to call multiple times.
func (c *RelayClient) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// Done is closed once the read loop has ended.
func (c *RelayClient) Done() <-chan struct{} {
	return c.done
}

func (c *RelayClient) writeFrame(frame []byte) error {
	select {
	case <-c.done:
		return errRelayClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *RelayClient) readLoop() {
	defer func() { _ = c.Close() }()
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Debug("relay read ended", zap.Error(err))
			}
			return
		}
		c.dispatch(frame)
	}
}

func (c *RelayClient) dispatch(frame []byte) {
	envelope, err := relay.DecodeEnvelope(frame)
	if err != nil {
		c.logger.Debug("dropped malformed relay frame")
		return
	}

	switch envelope.Event {
	case relay.EventRoomData:
		var payload struct {
			Content string `json:"content"`
			Title   string `json:"title"`
		}
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			c.logger.Debug("dropped malformed room data")
			return
		}
		if c.handlers.OnRoomData != nil {
			c.handlers.OnRoomData(payload.Content, payload.Title)
		}
	case relay.EventContentChanged:
		var payload struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			c.logger.Debug("dropped malformed content update")
			return
		}
		if c.handlers.OnContentChanged != nil {
			c.handlers.OnContentChanged(payload.Content)
		}
	case relay.EventTitleChanged:
		var payload struct {
			Title string `json:"title"`
		}
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			c.logger.Debug("dropped malformed title update")
			return
		}
		if c.handlers.OnTitleChanged != nil {
			c.handlers.OnTitleChanged(payload.Title)
		}
	default:
		c.logger.Debug("ignored relay event", zap.String("event", envelope.Event))
	}
}

func relayEndpoint(serverURL string) (string, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("client: invalid server url: %w", err)
	}
	switch parsed.Scheme {
	case "http", "ws":
		parsed.Scheme = "ws"
	case "https", "wss":
		parsed.Scheme = "wss"
	default:
		return "", fmt.Errorf("client: unsupported server url scheme %q", parsed.Scheme)
	}
	parsed.Path = "/ws"
	return parsed.String(), nil
}
