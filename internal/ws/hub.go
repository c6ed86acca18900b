package ws

import (
	"encoding/json"
	"sync"
)

// Client represents a single WebSocket connection for a signed-in user.
type Client struct {
	UID    string
	Send   chan []byte
	hub    *Hub
	mu     sync.Mutex
	closed bool
}

func NewClient(uid string) *Client {
	return &Client{UID: uid, Send: make(chan []byte, 64)}
}

// Push queues data for the writer. A slow client misses messages rather than
// blocking the sender; every message is a full snapshot, so the next one
// catches it up.
func (c *Client) Push(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) PushJSON(payload interface{}) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	return c.Push(data)
}

// Close stops the writer and unregisters the client. Safe to call twice.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.Send)
	hub := c.hub
	c.mu.Unlock()
	if hub != nil {
		hub.unregister(c)
	}
}

// Hub tracks open map sockets per user so sign-out can drop them.
type Hub struct {
	mu     sync.RWMutex
	byUser map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{byUser: make(map[string]map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.mu.Lock()
	c.hub = h
	c.mu.Unlock()
	if h.byUser[c.UID] == nil {
		h.byUser[c.UID] = make(map[*Client]struct{})
	}
	h.byUser[c.UID][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.byUser[c.UID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byUser, c.UID)
		}
	}
}

func (h *Hub) clientsOf(uid string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m := h.byUser[uid]
	clients := make([]*Client, 0, len(m))
	for c := range m {
		clients = append(clients, c)
	}
	return clients
}

func (h *Hub) BroadcastToUser(uid string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	for _, c := range h.clientsOf(uid) {
		c.Push(data)
	}
}

// DisconnectUser closes every socket the user has open.
func (h *Hub) DisconnectUser(uid string) {
	for _, c := range h.clientsOf(uid) {
		c.Close()
	}
}

func (h *Hub) ClientCount(uid string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[uid])
}

// CloseAll closes every open socket.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	var all []*Client
	for _, m := range h.byUser {
		for c := range m {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		c.Close()
	}
}
