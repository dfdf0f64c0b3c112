package mock

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"punter/internal/wire"
)

// Client is one websocket connection. userID is empty until the connection
// proves an identity.
type Client struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	userID string
}

func (c *Client) setUser(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
}

func (c *Client) user() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// write serializes frame writes per connection.
func (c *Client) write(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[WS] Write error for user %q: %v", c.userID, err)
	}
}

// Reply answers one correlated request on this connection.
func (c *Client) Reply(resp wire.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Printf("[WS] Reply marshal error: %v", err)
		return
	}
	c.write(data)
}

// Hub fans push events out to connected clients.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan wire.Response
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	onCount func(int)
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan wire.Response, 100),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// OnCountChange registers a single observer for the connected-client count.
func (h *Hub) OnCountChange(fn func(int)) {
	h.onCount = fn
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WS] Client connected (total: %d)", n)
			if h.onCount != nil {
				h.onCount(n)
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.conn.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WS] Client disconnected (total: %d)", n)
			if h.onCount != nil {
				h.onCount(n)
			}

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				log.Printf("[WS] Marshal error: %v", err)
				continue
			}
			h.mu.RLock()
			for client := range h.clients {
				go client.write(data)
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast pushes one event to every connected client.
func (h *Hub) Broadcast(eventType string, data interface{}) {
	h.BroadcastVersioned(eventType, data, 0)
}

// BroadcastVersioned pushes an event that carries a state version.
func (h *Hub) BroadcastVersioned(eventType string, data interface{}, stateVersion int64) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("[WS] Event marshal error: %v", err)
		return
	}
	frame := wire.Response{
		Type:         eventType,
		OK:           true,
		ServerTs:     time.Now().UnixMilli(),
		Data:         raw,
		EventID:      uuid.NewString(),
		StateVersion: stateVersion,
	}
	select {
	case h.broadcast <- frame:
	default:
		log.Println("[WS] Broadcast channel full, dropping event")
	}
}

// SendToUser pushes an event only to the user's connections.
func (h *Hub) SendToUser(userID, eventType string, data interface{}, stateVersion int64) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	frame := wire.Response{
		Type:         eventType,
		OK:           true,
		ServerTs:     time.Now().UnixMilli(),
		Data:         raw,
		EventID:      uuid.NewString(),
		StateVersion: stateVersion,
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}

	h.mu.RLock()
	for client := range h.clients {
		if client.user() == userID {
			go client.write(payload)
		}
	}
	h.mu.RUnlock()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RegisterClient(conn *websocket.Conn) *Client {
	client := &Client{conn: conn}
	h.register <- client
	return client
}

func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}
