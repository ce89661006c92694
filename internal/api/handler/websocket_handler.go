package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const writeWait = 10 * time.Second

type client struct {
	conn      *websocket.Conn
	sessionID string
}

type outbound struct {
	sessionID string
	payload   []byte
}

// WebSocketManager pushes session updates to connected UI clients.
type WebSocketManager struct {
	clients    map[*websocket.Conn]string
	register   chan client
	unregister chan *websocket.Conn
	broadcast  chan outbound
	mutex      sync.RWMutex
	logger     *logrus.Logger
}

func NewWebSocketManager(logger *logrus.Logger) *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[*websocket.Conn]string),
		register:   make(chan client),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan outbound, 256),
		logger:     logger,
	}
}

func (wsm *WebSocketManager) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			wsm.mutex.Lock()
			for conn := range wsm.clients {
				conn.Close()
				delete(wsm.clients, conn)
			}
			wsm.mutex.Unlock()
			return

		case cl := <-wsm.register:
			wsm.mutex.Lock()
			wsm.clients[cl.conn] = cl.sessionID
			total := len(wsm.clients)
			wsm.mutex.Unlock()
			wsm.logger.WithFields(logrus.Fields{"session_id": cl.sessionID, "total": total}).Info("WebSocket client connected")

		case conn := <-wsm.unregister:
			wsm.mutex.Lock()
			if _, ok := wsm.clients[conn]; ok {
				delete(wsm.clients, conn)
				conn.Close()
			}
			total := len(wsm.clients)
			wsm.mutex.Unlock()
			wsm.logger.WithField("total", total).Info("WebSocket client disconnected")

		case msg := <-wsm.broadcast:
			wsm.mutex.Lock()
			for conn, sessionID := range wsm.clients {
				if sessionID != msg.sessionID {
					continue
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, msg.payload); err != nil {
					wsm.logger.WithError(err).Warn("Error writing to WebSocket client")
					conn.Close()
					delete(wsm.clients, conn)
				}
			}
			wsm.mutex.Unlock()
		}
	}
}

// PublishToSession queues a JSON update for every client of the session.
func (wsm *WebSocketManager) PublishToSession(sessionID string, payload interface{}) {
	message, err := json.Marshal(gin.H{"type": "snapshot", "data": payload})
	if err != nil {
		wsm.logger.WithError(err).Error("Error marshaling session update")
		return
	}

	select {
	case wsm.broadcast <- outbound{sessionID: sessionID, payload: message}:
	default:
		wsm.logger.WithField("session_id", sessionID).Warn("Broadcast channel is full, dropping update")
	}
}

// HasWatchers reports whether any client is connected to the session.
func (wsm *WebSocketManager) HasWatchers(sessionID string) bool {
	wsm.mutex.RLock()
	defer wsm.mutex.RUnlock()
	for _, id := range wsm.clients {
		if id == sessionID {
			return true
		}
	}
	return false
}

// Disconnect closes every client of the session with a normal close frame.
func (wsm *WebSocketManager) Disconnect(sessionID string) {
	wsm.mutex.Lock()
	defer wsm.mutex.Unlock()
	frame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
	for conn, id := range wsm.clients {
		if id != sessionID {
			continue
		}
		_ = conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(writeWait))
		conn.Close()
		delete(wsm.clients, conn)
	}
}

func (wsm *WebSocketManager) ClientCount() int {
	wsm.mutex.RLock()
	defer wsm.mutex.RUnlock()
	return len(wsm.clients)
}

// SnapshotLookup resolves the current render state of a buyer session or
// detail view.
type SnapshotLookup func(id string) (interface{}, bool)

type WebSocketHandler struct {
	wsManager *WebSocketManager
	lookup    SnapshotLookup
	logger    *logrus.Logger
}

func NewWebSocketHandler(wsManager *WebSocketManager, lookup SnapshotLookup, logger *logrus.Logger) *WebSocketHandler {
	return &WebSocketHandler{wsManager: wsManager, lookup: lookup, logger: logger}
}

// GET /ws?session_id=
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	sessionID := c.Query("session_id")
	snapshot, ok := h.lookup(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to upgrade to WebSocket")
		return
	}

	h.wsManager.register <- client{conn: conn, sessionID: sessionID}
	h.wsManager.PublishToSession(sessionID, snapshot)

	go func() {
		defer func() {
			h.wsManager.unregister <- conn
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.WithError(err).Debug("WebSocket closed unexpectedly")
				}
				break
			}
		}
	}()
}
