package wsrelay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/loomwire/actorcore/internal/actor"
)

// collector is an actor.TellTarget that records every message it receives,
// standing in for a downstream cell in tests.
type collector struct {
	mu       sync.Mutex
	received []any
	notify   chan struct{}
}

func newCollector() *collector {
	return &collector{notify: make(chan struct{}, 16)}
}

func (c *collector) Send(_ context.Context, message any) error {
	c.mu.Lock()
	c.received = append(c.received, message)
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}

	return nil
}

func (c *collector) waitForCount(t *testing.T, n int, timeout time.Duration) {
	t.Helper()

	deadline := time.After(timeout)
	for {
		c.mu.Lock()
		got := len(c.received)
		c.mu.Unlock()

		if got >= n {
			return
		}

		select {
		case <-c.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d messages, got %d", n, got)
		}
	}
}

func (c *collector) values() []any {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]any, len(c.received))
	copy(out, c.received)

	return out
}

var upgrader = websocket.Upgrader{}

// newEchoServer upgrades every connection and hands it to onConn, which
// owns the connection's lifetime for the rest of the test.
func newEchoServer(t *testing.T, onConn func(*websocket.Conn)) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		onConn(conn)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

// TestEndpoint_InboundForwardsToDownstream verifies frames written by the
// peer are decoded and forwarded to Downstream.
func TestEndpoint_InboundForwardsToDownstream(t *testing.T) {
	t.Parallel()

	down := newCollector()
	var ep *Endpoint

	srv := newEchoServer(t, func(conn *websocket.Conn) {
		ep = New(Config{ID: "server-side", Conn: conn, Downstream: down})
	})
	defer func() {
		if ep != nil {
			_ = ep.Stop()
		}
	}()

	client := dial(t, srv)

	require.NoError(t, client.WriteJSON(map[string]any{"hello": "world"}))

	down.waitForCount(t, 1, 2*time.Second)

	got := down.values()[0].(map[string]any)
	require.Equal(t, "world", got["hello"])
}

// TestEndpoint_OutboundWritesFrame verifies messages Sent to the
// endpoint's cell are marshaled and written to the peer.
func TestEndpoint_OutboundWritesFrame(t *testing.T) {
	t.Parallel()

	var ep *Endpoint
	ready := make(chan struct{})

	srv := newEchoServer(t, func(conn *websocket.Conn) {
		ep = New(Config{ID: "outbound-server", Conn: conn})
		close(ready)
	})
	defer func() {
		if ep != nil {
			_ = ep.Stop()
		}
	}()

	client := dial(t, srv)
	<-ready

	require.NoError(t, ep.Cell().Send(context.Background(), map[string]any{"ack": true}))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))

	var got map[string]any
	require.NoError(t, client.ReadJSON(&got))
	require.Equal(t, true, got["ack"])
}

// TestEndpoint_StopClosesConnection verifies Stop cancels the body, which
// closes the connection and unblocks the reader goroutine.
func TestEndpoint_StopClosesConnection(t *testing.T) {
	t.Parallel()

	down := newCollector()
	var ep *Endpoint
	ready := make(chan struct{})

	srv := newEchoServer(t, func(conn *websocket.Conn) {
		ep = New(Config{ID: "stop-server", Conn: conn, Downstream: down})
		close(ready)
	})

	client := dial(t, srv)
	<-ready

	require.NoError(t, ep.Stop())

	doneCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := ep.Cell().Done().Await(doneCtx).Unpack()
	require.NoError(t, err)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = client.ReadMessage()
	require.Error(t, err)
}
