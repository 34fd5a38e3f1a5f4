// Package ws 通过 websocket 推送项目进度事件
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"novel-studio-api/internal/application/story/storyutil"
	"novel-studio-api/pkg/logger"
	"novel-studio-api/pkg/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

type client struct {
	projectID string
	conn      *websocket.Conn
	send      chan []byte
	once      sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub 按项目分组的订阅者集合，实现 storyutil.EventSink。
// 订阅者消费过慢时丢弃事件，不阻塞生成流程。
type Hub struct {
	mu       sync.RWMutex
	projects map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	closed   bool
}

var _ storyutil.EventSink = (*Hub)(nil)

// NewHub 创建推送中心；allowedOrigins 为空或含 "*" 时不校验来源
func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{projects: make(map[string]map[*client]struct{})}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Publish 向项目的全部订阅者广播事件
func (h *Hub) Publish(ctx context.Context, ev storyutil.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.projects[ev.ProjectID] {
		select {
		case c.send <- data:
		default:
			logger.Debug(ctx, "progress subscriber lagging, event dropped", "event", ev.Type)
		}
	}
}

// Subscribers 当前订阅某项目的连接数
func (h *Hub) Subscribers(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.projects[projectID])
}

// Serve 升级为 websocket 并订阅路径中的项目
func (h *Hub) Serve(c *gin.Context) {
	projectID := c.Param("pid")
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已写出错误响应
		logger.Warn(c.Request.Context(), "websocket upgrade failed", "error", err.Error())
		return
	}

	cl := &client{projectID: projectID, conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(cl) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	go h.writePump(cl)
	h.readPump(cl)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set := h.projects[c.projectID]
	if set == nil {
		set = make(map[*client]struct{})
		h.projects[c.projectID] = set
	}
	set[c] = struct{}{}
	metrics.ProgressSubscribers.Inc()
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.projects[c.projectID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.projects, c.projectID)
	}
	metrics.ProgressSubscribers.Dec()
	c.close()
}

// readPump 只处理控制帧；客户端断开后注销
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// Close 断开全部订阅者，之后的连接请求被拒绝
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for pid, set := range h.projects {
		for c := range set {
			metrics.ProgressSubscribers.Dec()
			c.close()
		}
		delete(h.projects, pid)
	}
}
