package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const maxMessageSize = 512

// Keepalive intervals; pingPeriod must stay below pongWait. Vars so tests
// can shrink the timescale.
var (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The panel is served from the same origin; other origins are fine for
	// local tooling.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request to a websocket connection and attaches it
// to the hub. The optional ?project= query parameter scopes the event stream.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("Websocket upgrade failed", "error", err.Error())
		return
	}

	client := NewClient(uuid.New().String(), conn, hub, r.URL.Query().Get("project"))
	hub.RegisterClient(client)

	// The request context dies when the handler returns; the pumps outlive
	// it and stop when the connection drops or the hub shuts down.
	go client.WritePump(context.Background())
	go client.ReadPump(context.Background())
}

// WritePump sends queued events and heartbeats to the peer.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Connection.Close()
	}()

	for {
		select {
		case event, ok := <-c.Send:
			_ = c.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Connection.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			// Ping control frame: the peer's pong renews the read deadline,
			// so idle clients survive past pongWait.
			_ = c.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// ReadPump consumes peer messages until the connection drops.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.UnregisterClient(c)
		_ = c.Connection.Close()
	}()

	c.Connection.SetReadLimit(maxMessageSize)
	_ = c.Connection.SetReadDeadline(time.Now().Add(pongWait))
	c.Connection.SetPongHandler(func(string) error {
		return c.Connection.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg map[string]interface{}
			if err := c.Connection.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.Hub.logger.Debug("Websocket read error", "client_id", c.ID, "error", err.Error())
				}
				return
			}
			c.handleMessage(msg)
		}
	}
}

// handleMessage processes subscription changes and pings from the peer.
func (c *Client) handleMessage(msg map[string]interface{}) {
	msgType, ok := msg["type"].(string)
	if !ok {
		return
	}

	switch msgType {
	case "subscribe":
		if project, ok := msg["project"].(string); ok {
			c.Project = project
		}
	case "unsubscribe":
		if _, ok := msg["project"]; ok {
			c.Project = ""
		}
	case "ping":
		pong := MemoryEvent{Type: "pong", Timestamp: time.Now().UTC()}
		select {
		case c.Send <- pong:
		default:
		}
	}
}
