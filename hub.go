package main

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"gopresenting/status"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames
	maxMessageSize = 512
)

// Event is the envelope pushed to websocket clients.
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func statusEvent(st status.PresentationStatus, at time.Time) Event {
	return Event{Type: "status", Timestamp: at, Data: st}
}

// Hub tracks websocket clients and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*wsClient
	logger  *log.Logger
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan Event
	hub  *Hub
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*wsClient),
		logger:  logger,
	}
}

// Run forwards poller updates to every client until ctx is done, then
// disconnects everyone.
func (h *Hub) Run(ctx context.Context, updates <-chan Update) {
	defer h.CloseAll()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			h.Broadcast(statusEvent(u.Status, u.Time))
		}
	}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "id", c.id, "clients", n)
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.send)
		h.logger.Debug("websocket client disconnected", "id", id, "clients", len(h.clients))
	}
}

// Broadcast queues ev for every client. Clients whose queue is full are
// disconnected.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		select {
		case c.send <- ev:
		default:
			h.logger.Warn("websocket client too slow, disconnecting", "id", id)
			delete(h.clients, id)
			close(c.send)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}

// readPump drains the connection so control frames are processed.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c.id)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket connection error", "id", c.id, "err", err)
			}
			return
		}
	}
}

// writePump pumps queued events and keepalive pings to the connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
