package transport

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voxhall/voxhall/internal/v1/logging"
	"github.com/voxhall/voxhall/internal/v1/metrics"
	"github.com/voxhall/voxhall/internal/v1/room"
	"github.com/voxhall/voxhall/internal/v1/types"
)

// Handler accepts WebSocket connections and drives the RoomManager. Room id
// and username come from the URL; presence in the URL is sufficient, no auth
// or join_room envelope is required.
type Handler struct {
	manager          *room.Manager
	maxEnvelopeBytes int
}

// NewHandler creates the ingress handler.
func NewHandler(manager *room.Manager, maxEnvelopeBytes int) *Handler {
	return &Handler{
		manager:          manager,
		maxEnvelopeBytes: maxEnvelopeBytes,
	}
}

// ServeWs upgrades the request and runs the connection's read loop.
// Route shape: /ws/:roomId/:username
func (h *Handler) ServeWs(c *gin.Context) {
	roomID := types.RoomIDType(c.Param("roomId"))
	username := c.Param("username")
	if roomID == "" || username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room id and username are required"})
		return
	}

	conn, err := h.upgradeWebSocket(c)
	if err != nil {
		return
	}

	h.HandleConnection(conn, roomID, username)
}

// HandleConnection takes an established WebSocket connection and sets up the
// participant. Exposed separately so tests can drive it with a fake socket.
func (h *Handler) HandleConnection(conn wsConnection, roomID types.RoomIDType, username string) {
	participantID := types.ParticipantIDType(uuid.NewString())
	client := newClient(conn, h.manager, roomID, participantID, types.DisplayNameType(username), h.maxEnvelopeBytes)

	metrics.IncConnection()

	h.manager.Join(logging.WithRoom(context.Background(), string(roomID)), roomID, client)

	go client.writePump()
	go client.readPump()
}

// upgradeWebSocket handles the WebSocket upgrade process.
func (h *Handler) upgradeWebSocket(c *gin.Context) (wsConnection, error) {
	upgrader := websocket.Upgrader{
		// The socket accept is fronted by the external gateway; origin policy
		// lives there, not here.
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		WriteBufferPool: &sync.Pool{
			New: func() any {
				return make([]byte, 4096)
			},
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to upgrade connection", zap.Error(err))
		return nil, err
	}

	return conn, nil
}
