package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, w, r)
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// First frame is always the welcome event.
	var welcome MemoryEvent
	require.NoError(t, conn.ReadJSON(&welcome))
	require.Equal(t, "connection", welcome.Type)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) MemoryEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event MemoryEvent
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestHubBroadcastReachesClient(t *testing.T) {
	hub, srv := newTestServer(t)
	conn := dial(t, srv, "")

	hub.Broadcast(NewMemoryEvent("created", "mem-1", "alpha", []string{"go"}))

	event := readEvent(t, conn)
	assert.Equal(t, "memory", event.Type)
	assert.Equal(t, "created", event.Action)
	assert.Equal(t, "mem-1", event.MemoryID)
	assert.Equal(t, "alpha", event.Project)
	assert.Equal(t, []string{"go"}, event.Tags)
}

func TestHubProjectFiltering(t *testing.T) {
	hub, srv := newTestServer(t)
	conn := dial(t, srv, "?project=alpha")

	hub.Broadcast(NewMemoryEvent("created", "mem-1", "beta", nil))
	hub.Broadcast(NewMemoryEvent("created", "mem-2", "alpha", nil))

	// The beta event is filtered out; the first memory frame must be mem-2.
	event := readEvent(t, conn)
	assert.Equal(t, "mem-2", event.MemoryID)
}

func TestHubClientCount(t *testing.T) {
	hub, srv := newTestServer(t)

	dial(t, srv, "")
	dial(t, srv, "")

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestShouldSend(t *testing.T) {
	client := &Client{Project: "alpha"}

	system := MemoryEvent{Type: "system"}
	assert.True(t, shouldSend(client, &system))

	matching := MemoryEvent{Type: "memory", Project: "alpha"}
	assert.True(t, shouldSend(client, &matching))

	other := MemoryEvent{Type: "memory", Project: "beta"}
	assert.False(t, shouldSend(client, &other))

	unscoped := &Client{}
	assert.True(t, shouldSend(unscoped, &other))
}

// shrinkKeepalive shortens the ping/pong timescale for the duration of a
// test so deadline behavior can be observed in milliseconds.
func shrinkKeepalive(t *testing.T, ping, pong time.Duration) {
	t.Helper()

	origPing, origPong, origWrite := pingPeriod, pongWait, writeWait
	pingPeriod, pongWait, writeWait = ping, pong, pong
	t.Cleanup(func() {
		pingPeriod, pongWait, writeWait = origPing, origPong, origWrite
	})
}

func TestIdleClientSurvivesPastPongWait(t *testing.T) {
	shrinkKeepalive(t, 50*time.Millisecond, 200*time.Millisecond)

	hub, srv := newTestServer(t)
	conn := dial(t, srv, "")

	// The default dialer answers server pings with pongs while blocked in a
	// read. An idle client must outlive several pongWait windows.
	received := make(chan MemoryEvent, 1)
	readErr := make(chan error, 1)
	go func() {
		var event MemoryEvent
		if err := conn.ReadJSON(&event); err != nil {
			readErr <- err
			return
		}
		received <- event
	}()

	time.Sleep(5 * pongWait)

	hub.Broadcast(NewMemoryEvent("created", "mem-1", "alpha", nil))
	select {
	case event := <-received:
		assert.Equal(t, "mem-1", event.MemoryID)
	case err := <-readErr:
		t.Fatalf("idle client was dropped: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast never reached the idle client")
	}
}

func TestUnresponsiveClientIsDropped(t *testing.T) {
	shrinkKeepalive(t, 50*time.Millisecond, 200*time.Millisecond)

	_, srv := newTestServer(t)
	conn := dial(t, srv, "")

	// Swallow server pings so no pong renews the read deadline.
	conn.SetPingHandler(func(string) error { return nil })

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*pongWait)))
	start := time.Now()
	var event MemoryEvent
	err := conn.ReadJSON(&event)
	require.Error(t, err)
	// Dropped by the server around pongWait, well before our own deadline.
	assert.Less(t, time.Since(start), 5*pongWait, "server did not drop the client: %v", err)
}

func TestSafeCloseIsIdempotent(t *testing.T) {
	client := &Client{Send: make(chan MemoryEvent, 1)}
	client.SafeClose()
	assert.NotPanics(t, client.SafeClose)
}
