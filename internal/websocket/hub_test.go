package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hungkhanh0709/trading-filter/internal/analysis"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(testLogger())
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func dialHub(t *testing.T, hub *Hub) *gws.Conn {
	t.Helper()

	upgrader := gws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, upgrader, testLogger(), w, r)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *gws.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHubWelcomesClient(t *testing.T) {
	hub := startHub(t)
	conn := dialHub(t, hub)

	msg := readMessage(t, conn)
	assert.Equal(t, TypeConnection, msg["type"])
	assert.Equal(t, "connected", msg["status"])
	assert.NotEmpty(t, msg["clientId"])
}

func TestHubBroadcast(t *testing.T) {
	hub := startHub(t)
	conn := dialHub(t, hub)
	readMessage(t, conn) // drain welcome

	hub.BroadcastJSON(map[string]string{"hello": "world"})

	msg := readMessage(t, conn)
	assert.Equal(t, "world", msg["hello"])
}

func TestHubBroadcastWithoutClients(t *testing.T) {
	hub := startHub(t)

	// Must not block or panic.
	hub.Broadcast([]byte(`{"noop": true}`))
	hub.BroadcastJSON(map[string]int{"n": 1})
	assert.Equal(t, 0, hub.ClientCount())
}

func TestBatchSinkBroadcastsEvents(t *testing.T) {
	hub := startHub(t)
	conn := dialHub(t, hub)
	readMessage(t, conn) // drain welcome

	sink := NewBatchSink(hub)
	err := sink.Emit(context.Background(), analysis.Event{
		Type:    analysis.EventTypeProgress,
		Symbol:  "VNM",
		Current: 1,
		Total:   2,
	})
	require.NoError(t, err)

	msg := readMessage(t, conn)
	assert.Equal(t, TypeBatchEvent, msg["type"])

	event, ok := msg["event"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "VNM", event["symbol"])
	assert.Equal(t, analysis.EventTypeProgress, event["type"])
}

func TestBatchSinkNeverFails(t *testing.T) {
	hub := startHub(t)
	sink := NewBatchSink(hub)

	// No clients connected; the sink still reports success so the hub
	// can never abort an HTTP batch stream.
	for i := 0; i < 100; i++ {
		assert.NoError(t, sink.Emit(context.Background(), analysis.Event{Type: analysis.EventTypeProgress}))
	}
}
