package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Event is a fleet notification pushed to connected WebSocket clients.
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// EventHub fans events out to every connected WebSocket client. Slow
// clients are disconnected rather than allowed to block the broadcast.
type EventHub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]chan Event
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewEventHub creates an event hub. Origin checking is delegated to the
// CORS middleware wrapping the router.
func NewEventHub() *EventHub {
	return &EventHub{
		clients: make(map[*websocket.Conn]chan Event),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log.With().Str("component", "events").Logger(),
	}
}

// RegisterRoutes registers the WebSocket endpoint.
func (h *EventHub) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/events", h.serveWS)
}

// Broadcast sends an event to all connected clients.
func (h *EventHub) Broadcast(eventType string, payload interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- event:
		default:
			h.logger.Warn().Str("remote", conn.RemoteAddr().String()).Msg("Dropping slow event client")
			close(ch)
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

// serveWS upgrades the connection and streams events until the client
// disconnects.
func (h *EventHub) serveWS(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "events").Logger()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	ch := make(chan Event, 16)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("Event client connected")

	// Reader goroutine detects disconnects; clients send nothing we use
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove(conn)
				return
			}
		}
	}()

	for event := range ch {
		if err := conn.WriteJSON(event); err != nil {
			h.remove(conn)
			return
		}
	}
}

func (h *EventHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
		conn.Close()
	}
}

// ClientCount reports how many WebSocket clients are connected.
func (h *EventHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
