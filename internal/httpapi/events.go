package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"portald/internal/store"
)

const (
	eventBuffer  = 64
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

type eventClient struct {
	conn *websocket.Conn
	send chan []byte
}

// EventHub streams store events to websocket clients. It implements
// store.EventPublisher; Publish never blocks, and a client that falls
// eventBuffer messages behind is disconnected.
type EventHub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*eventClient]struct{}
	closed  bool
}

var _ store.EventPublisher = (*EventHub)(nil)

// NewEventHub creates a hub. checkOrigin may be nil to accept same-origin
// requests only.
func NewEventHub(checkOrigin func(*http.Request) bool) *EventHub {
	return &EventHub{
		clients: make(map[*eventClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Publish fans e out to every connected client.
func (h *EventHub) Publish(e store.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			eventDrops.WithLabelValues("slow").Inc()
			h.removeLocked(c)
		}
	}
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}
	c := &eventClient{conn: conn, send: make(chan []byte, eventBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeTimeout))
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	eventClients.Inc()
	h.mu.Unlock()

	go h.writeLoop(c)
	// Reads only detect the close; clients have nothing to say.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

func (h *EventHub) writeLoop(c *eventClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.mu.Lock()
				h.removeLocked(c)
				h.mu.Unlock()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				h.mu.Lock()
				h.removeLocked(c)
				h.mu.Unlock()
				return
			}
		}
	}
}

// removeLocked drops c and closes its queue; the writer then closes the
// connection. Caller holds mu.
func (h *EventHub) removeLocked(c *eventClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	eventClients.Dec()
}

// ClientCount returns the number of connected clients.
func (h *EventHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}
