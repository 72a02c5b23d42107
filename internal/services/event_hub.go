package services

import (
	"encoding/json"
	"sync"
	"time"

	"portfolio-gallery/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait = 10 * time.Second
	// sendBuffer is how many events a viewer may fall behind before it is dropped
	sendBuffer = 16
)

// Conn is the part of a WebSocket connection the hub writes to
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type viewer struct {
	conn Conn
	send chan []byte
}

// EventHub fans gallery events out to connected viewers. Each viewer has
// its own writer goroutine, so a slow connection never blocks Publish.
type EventHub struct {
	mu      sync.RWMutex
	viewers map[string]*viewer
}

// NewEventHub creates a new event hub
func NewEventHub() *EventHub {
	return &EventHub{
		viewers: make(map[string]*viewer),
	}
}

// Register adds a connection and returns its id. The initial events are
// queued before the viewer becomes visible to Publish, so they always
// arrive first.
func (h *EventHub) Register(conn Conn, initial ...models.Event) string {
	id := uuid.New().String()
	v := &viewer{conn: conn, send: make(chan []byte, sendBuffer+len(initial))}

	for _, event := range initial {
		data, err := json.Marshal(event)
		if err != nil {
			log.Error().Err(err).Str("type", event.Type).Msg("Failed to marshal event")
			continue
		}
		v.send <- data
	}

	h.mu.Lock()
	h.viewers[id] = v
	h.mu.Unlock()

	go h.writePump(id, v)

	log.Debug().Str("viewer_id", id).Msg("Gallery viewer connected")
	return id
}

// Unregister closes and removes a connection
func (h *EventHub) Unregister(id string) {
	h.mu.Lock()
	v, exists := h.viewers[id]
	if exists {
		delete(h.viewers, id)
		close(v.send)
	}
	h.mu.Unlock()

	if exists {
		v.conn.Close()
		log.Debug().Str("viewer_id", id).Msg("Gallery viewer disconnected")
	}
}

// Close disconnects every viewer
func (h *EventHub) Close() {
	h.mu.Lock()
	viewers := h.viewers
	h.viewers = make(map[string]*viewer)
	for _, v := range viewers {
		close(v.send)
	}
	h.mu.Unlock()

	for _, v := range viewers {
		v.conn.Close()
	}
}

// Count returns the number of connected viewers
func (h *EventHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// Publish queues an event for every viewer without waiting on the network.
// Viewers whose queue is full are dropped.
func (h *EventHub) Publish(event models.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", event.Type).Msg("Failed to marshal event")
		return
	}

	var lagging []string
	h.mu.RLock()
	for id, v := range h.viewers {
		select {
		case v.send <- data:
		default:
			lagging = append(lagging, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range lagging {
		log.Warn().Str("viewer_id", id).Msg("Viewer is not keeping up, dropping it")
		h.Unregister(id)
	}
}

// writePump delivers queued events until the viewer is unregistered or a
// write fails
func (h *EventHub) writePump(id string, v *viewer) {
	for data := range v.send {
		if err := v.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			log.Debug().Err(err).Str("viewer_id", id).Msg("Failed to set write deadline")
			h.Unregister(id)
			return
		}
		if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Warn().Err(err).Str("viewer_id", id).Msg("Failed to deliver event")
			h.Unregister(id)
			return
		}
	}
}
