package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-studio-api/internal/application/story/storyutil"
)

func newServer(t *testing.T, h *Hub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/projects/:pid/events", h.Serve)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, pid string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/projects/" + pid + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitSubscribers(t *testing.T, h *Hub, pid string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Subscribers(pid) == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_DeliversOnlyToProjectSubscribers(t *testing.T) {
	h := NewHub(nil)
	srv := newServer(t, h)

	a := dial(t, srv, "p1")
	b := dial(t, srv, "p2")
	waitSubscribers(t, h, "p1", 1)
	waitSubscribers(t, h, "p2", 1)

	h.Publish(context.Background(), storyutil.Event{
		Type: storyutil.EventDraftPhase, ProjectID: "p1", Phase: "draft.compose", Index: 1, Total: 3,
	})

	_ = a.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := a.ReadMessage()
	require.NoError(t, err)
	var ev storyutil.Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, storyutil.EventDraftPhase, ev.Type)
	assert.Equal(t, 1, ev.Index)

	_ = b.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = b.ReadMessage()
	assert.Error(t, err, "other projects receive nothing")
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	h := NewHub([]string{"*"})
	srv := newServer(t, h)

	conn := dial(t, srv, "p1")
	waitSubscribers(t, h, "p1", 1)
	require.NoError(t, conn.Close())
	waitSubscribers(t, h, "p1", 0)
}

func TestHub_PublishWithoutSubscribersIsNoop(t *testing.T) {
	h := NewHub(nil)
	assert.NotPanics(t, func() {
		h.Publish(context.Background(), storyutil.Event{Type: storyutil.EventOperationStarted, ProjectID: "none"})
	})
}

func TestHub_CloseRejectsNewSubscribers(t *testing.T) {
	h := NewHub(nil)
	srv := newServer(t, h)
	h.Close()

	conn := dial(t, srv, "p1")
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
	assert.Equal(t, 0, h.Subscribers("p1"))
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://a.example"})
	req := httptest.NewRequest("GET", "/", nil)
	assert.True(t, check(req), "no origin header")
	req.Header.Set("Origin", "http://a.example")
	assert.True(t, check(req))
	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, check(req))
}
