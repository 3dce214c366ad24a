// Package hub pushes record change events to connected dashboards.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"subtrackr/internal/log"
)

const (
	writeWait = 10 * time.Second
	// Slow clients buffer this many events before being dropped.
	sendBuffer = 16
)

// Event is the wire format delivered to dashboard clients.
type Event struct {
	Kind string `json:"kind"` // "subscription" or "receipt"
	Op   string `json:"op"`   // "insert", "update" or "delete"
	Data any    `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans broadcast events out to every connected websocket client.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	logger  *log.Logger
}

func New(logger *log.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger.WithComponent(log.ComponentHub),
	}
}

// Broadcast queues an event for every connected client. Clients whose
// buffers are full are disconnected rather than blocking the caller.
func (h *Hub) Broadcast(ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast event", log.FieldError, err)
		return
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- body:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("Dropping slow websocket client")
		h.remove(c)
		c.conn.Close(websocket.StatusPolicyViolation, "send buffer full")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events until the client
// disconnects or the request context ends.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // same-origin is enforced upstream
	})
	if err != nil {
		h.logger.Warn("Websocket accept failed", log.FieldError, err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("Websocket client connected")

	defer func() {
		h.remove(c)
		conn.Close(websocket.StatusNormalClosure, "")
		h.logger.Debug("Websocket client disconnected")
	}()

	// CloseRead drains incoming frames (the feed is one-directional) and
	// cancels the context when the read side errors, i.e. on disconnect.
	// Without it the write loop would block forever on an idle peer.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case body, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := conn.Write(writeCtx, websocket.MessageText, body)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}
