package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluff-lite/apps/server/internal/monitoring"
)

func httpHandler(g *Gateway) http.Handler {
	mux := http.NewServeMux()
	g.RegisterRoutes(mux)
	return mux
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/decisions" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readRecord(t *testing.T, conn *websocket.Conn) monitoring.DecisionRecord {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var rec monitoring.DecisionRecord
	require.NoError(t, conn.ReadJSON(&rec))
	return rec
}

func TestPublishReachesSubscribers(t *testing.T) {
	g := New()
	srv := httptest.NewServer(httpHandler(g))
	defer srv.Close()

	all := dial(t, srv, "")
	bobOnly := dial(t, srv, "?opponent=bob")
	require.Eventually(t, func() bool { return g.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	g.Publish(monitoring.DecisionRecord{ID: "d1", OpponentID: "alice", Decision: monitoring.DecisionSummary{Type: "PASS"}})
	g.Publish(monitoring.DecisionRecord{ID: "d2", OpponentID: "bob", Decision: monitoring.DecisionSummary{Type: "CHALLENGE"}})

	assert.Equal(t, "d1", readRecord(t, all).ID)
	assert.Equal(t, "d2", readRecord(t, all).ID)

	got := readRecord(t, bobOnly)
	assert.Equal(t, "d2", got.ID)
	assert.Equal(t, "CHALLENGE", got.Decision.Type)
}

func TestDisconnectRemovesSubscriber(t *testing.T) {
	g := New()
	srv := httptest.NewServer(httpHandler(g))
	defer srv.Close()

	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return g.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return g.Count() == 0 }, 2*time.Second, 10*time.Millisecond)

	g.Publish(monitoring.DecisionRecord{ID: "after"})
}
