// Package websocket pushes live memory change events to connected clients,
// which the web panel uses to refresh itself.
package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mcp-project-memory/internal/logging"
)

// MemoryEvent is a change notification broadcast to subscribed clients.
type MemoryEvent struct {
	Type      string      `json:"type"`
	Action    string      `json:"action,omitempty"` // "created", "updated", "deleted"
	MemoryID  string      `json:"memory_id,omitempty"`
	Project   string      `json:"project,omitempty"`
	Tags      []string    `json:"tags,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// NewMemoryEvent builds a memory change event.
func NewMemoryEvent(action, memoryID, project string, tags []string) MemoryEvent {
	return MemoryEvent{
		Type:      "memory",
		Action:    action,
		MemoryID:  memoryID,
		Project:   project,
		Tags:      tags,
		Timestamp: time.Now().UTC(),
	}
}

// Client is one connected websocket peer. Project, when set, filters the
// events the client receives.
type Client struct {
	ID         string
	Connection *websocket.Conn
	Send       chan MemoryEvent
	Hub        *Hub
	Project    string

	closed bool
	mu     sync.Mutex
}

func NewClient(id string, conn *websocket.Conn, hub *Hub, project string) *Client {
	return &Client{
		ID:         id,
		Connection: conn,
		Send:       make(chan MemoryEvent, 256),
		Hub:        hub,
		Project:    project,
	}
}

// SafeClose closes the send channel exactly once.
func (c *Client) SafeClose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed && c.Send != nil {
		close(c.Send)
		c.closed = true
	}
}

// Hub manages websocket connections and fans out broadcasts.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan MemoryEvent
	mutex      sync.RWMutex
	logger     logging.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan MemoryEvent, 256),
		logger:     logging.WithComponent("websocket"),
	}
}

// Run drives the hub until the context is canceled.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mutex.Lock()
		for client := range h.clients {
			client.SafeClose()
			_ = client.Connection.Close()
		}
		h.clients = make(map[*Client]bool)
		h.mutex.Unlock()
	}()

	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Debug("Client registered", "client_id", client.ID, "total", total)

			welcome := MemoryEvent{
				Type:      "connection",
				Action:    "connected",
				Timestamp: time.Now().UTC(),
				Data:      map[string]interface{}{"client_id": client.ID},
			}
			select {
			case client.Send <- welcome:
			default:
				h.removeClient(client)
			}

		case client := <-h.unregister:
			h.removeClient(client)

		case event := <-h.broadcast:
			h.mutex.RLock()
			var stale []*Client
			for client := range h.clients {
				if !shouldSend(client, &event) {
					continue
				}
				select {
				case client.Send <- event:
				default:
					stale = append(stale, client)
				}
			}
			h.mutex.RUnlock()
			for _, client := range stale {
				h.removeClient(client)
			}

		case <-ctx.Done():
			h.logger.Info("Hub shutting down")
			return
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.SafeClose()
		_ = client.Connection.Close()
		h.logger.Debug("Client disconnected", "client_id", client.ID, "total", len(h.clients))
	}
}

// shouldSend applies the client's project filter. Connection and system
// events always go through.
func shouldSend(client *Client, event *MemoryEvent) bool {
	if event.Type == "connection" || event.Type == "system" {
		return true
	}
	if client.Project != "" && event.Project != "" && client.Project != event.Project {
		return false
	}
	return true
}

// RegisterClient adds a client to the hub.
func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

// UnregisterClient removes a client from the hub.
func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// Broadcast queues an event for delivery. Events are dropped when the queue
// is full rather than blocking memory operations.
func (h *Hub) Broadcast(event MemoryEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast queue full, dropping event", "type", event.Type, "action", event.Action)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
