package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/driftpad/driftpad/internal/relay"
	"github.com/driftpad/driftpad/internal/rooms"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	errMissingRoomsService = errors.New("rooms service dependency required")
	errMissingRegistry     = errors.New("relay registry dependency required")
	errMissingDispatcher   = errors.New("relay dispatcher dependency required")
)

// Dependencies lists everything the HTTP surface needs.
type Dependencies struct {
	RoomsService *rooms.Service
	Registry     *relay.Registry
	Dispatcher   *relay.Dispatcher
	Logger       *zap.Logger
	// SessionBuffer bounds each relay session's outbound frame queue.
	SessionBuffer int
}

// NewHTTPHandler builds the gin router serving the room REST API and the
// relay websocket endpoint.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.RoomsService == nil {
		return nil, errMissingRoomsService
	}
	if deps.Registry == nil {
		return nil, errMissingRegistry
	}
	if deps.Dispatcher == nil {
		return nil, errMissingDispatcher
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		roomsService:  deps.RoomsService,
		registry:      deps.Registry,
		dispatcher:    deps.Dispatcher,
		logger:        logger,
		sessionBuffer: deps.SessionBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Room membership is unauthenticated; origin checks add nothing.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	router.GET("/api/rooms/:roomId", handler.handleGetRoom)
	router.POST("/api/rooms/:roomId", handler.handleUpsertRoom)
	router.GET("/ws", handler.handleRelaySocket)

	return router, nil
}

type httpHandler struct {
	roomsService  *rooms.Service
	registry      *relay.Registry
	dispatcher    *relay.Dispatcher
	logger        *zap.Logger
	sessionBuffer int
	upgrader      websocket.Upgrader
}

type roomResponsePayload struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Title            string `json:"title"`
	Content          string `json:"content"`
	UpdatedAtSeconds int64  `json:"updated_at_s"`
}

type roomUpsertPayload struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

func (h *httpHandler) handleGetRoom(c *gin.Context) {
	roomID, err := rooms.NewRoomID(c.Param("roomId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_room_id"})
		return
	}

	document, err := h.roomsService.GetOrCreate(c.Request.Context(), roomID)
	if err != nil {
		h.logger.Error("failed to fetch room", zap.String("room_id", roomID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "room_fetch_failed"})
		return
	}

	c.JSON(http.StatusOK, toRoomResponse(document))
}

func (h *httpHandler) handleUpsertRoom(c *gin.Context) {
	roomID, err := rooms.NewRoomID(c.Param("roomId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_room_id"})
		return
	}

	var request roomUpsertPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	document, err := h.roomsService.Upsert(c.Request.Context(), roomID, rooms.UpsertRequest{
		Title:   request.Title,
		Content: request.Content,
	})
	if err != nil {
		h.logger.Error("failed to upsert room", zap.String("room_id", roomID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "room_upsert_failed"})
		return
	}

	c.JSON(http.StatusOK, toRoomResponse(document))
}

func (h *httpHandler) handleRelaySocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	session, err := relay.NewSession(relay.SessionConfig{
		Conn:           conn,
		Registry:       h.registry,
		Dispatcher:     h.dispatcher,
		Logger:         h.logger,
		OutboundBuffer: h.sessionBuffer,
	})
	if err != nil {
		h.logger.Error("failed to construct relay session", zap.Error(err))
		_ = conn.Close()
		return
	}

	session.Run()
}

func toRoomResponse(document rooms.Document) roomResponsePayload {
	return roomResponsePayload{
		ID:               document.ID,
		Name:             document.Name,
		Title:            document.Title,
		Content:          document.Content,
		UpdatedAtSeconds: document.UpdatedAtSeconds,
	}
}
