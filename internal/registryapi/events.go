package registryapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event types sent to /events subscribers.
const (
	EventSubscribed = "subscribed"
	EventPublished  = "published"
	EventDeleted    = "deleted"
)

const eventWriteTimeout = 5 * time.Second

// Event is a registry change notification.
type Event struct {
	Type      string `json:"type"`
	File      string `json:"file,omitempty"`
	Revision  string `json:"revision,omitempty"`
	Valid     bool   `json:"valid,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// eventHub fans registry changes out to websocket subscribers.
type eventHub struct {
	mu       sync.Mutex
	conns    map[*websocket.Conn]bool
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func newEventHub(logger *zap.Logger) *eventHub {
	return &eventHub{
		conns: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// ServeHTTP upgrades the request and keeps the subscriber until it
// disconnects. The first message is always a subscribed event.
func (h *eventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.conns[conn] = true
	if err := writeEvent(conn, &Event{Type: EventSubscribed, Timestamp: time.Now().Unix()}); err != nil {
		delete(h.conns, conn)
		h.mu.Unlock()
		conn.Close()
		return
	}
	subscribers := len(h.conns)
	h.mu.Unlock()
	h.logger.Debug("event subscriber connected", zap.Int("subscribers", subscribers))

	// Subscribers only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(conn)
}

func (h *eventHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[conn] {
		delete(h.conns, conn)
		conn.Close()
	}
}

func (h *eventHub) broadcast(ev *Event) {
	ev.Timestamp = time.Now().Unix()

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := writeEvent(conn, ev); err != nil {
			h.logger.Debug("dropping event subscriber", zap.Error(err))
			delete(h.conns, conn)
			conn.Close()
		}
	}
}

// closeAll disconnects every subscriber. Hijacked connections are not
// closed by http.Server.Shutdown.
func (h *eventHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		delete(h.conns, conn)
	}
}

func writeEvent(conn *websocket.Conn, ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}
