package handlers

import (
	"net/http"
	"time"

	"portfolio-gallery/internal/models"
	"portfolio-gallery/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	writeWait  = 10 * time.Second
)

// EventSnapshot is the first event a viewer receives
const EventSnapshot = "snapshot"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the feed is public, like GET /api/photos
	},
}

// WebSocketHandler streams gallery changes to viewers
type WebSocketHandler struct {
	hub          *services.EventHub
	photoService *services.PhotoService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.EventHub, photoService *services.PhotoService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:          hub,
		photoService: photoService,
	}
}

// HandleWebSocket handles GET /ws
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	snapshot := models.Event{Type: EventSnapshot, Photos: h.photoService.List(r.Context())}
	viewerID := h.hub.Register(conn, snapshot)
	defer h.hub.Unregister(viewerID)

	done := make(chan struct{})
	defer close(done)
	go h.keepAlive(viewerID, conn, done)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// viewers only listen; reading drives pong handling and close detection
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("viewer_id", viewerID).Msg("WebSocket error")
			}
			return
		}
	}
}

// keepAlive pings the viewer until the read loop ends
func (h *WebSocketHandler) keepAlive(viewerID string, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("viewer_id", viewerID).Msg("Ping failed")
				return
			}
		}
	}
}
