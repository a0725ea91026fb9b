package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/desertthunder/audiotap/internal/metrics"
	"github.com/desertthunder/audiotap/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	clientBuffer   = 64
	hubSinkName    = "websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is one websocket subscriber. An empty taskID follows every task.
type client struct {
	conn   *websocket.Conn
	taskID string
	send   chan models.Update
	once   sync.Once
}

// Hub fans task updates out to websocket clients. It implements tasks.Sink.
//
// Each client has its own buffered queue; a client that falls behind loses incremental
// updates rather than slowing the executor.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewHub creates an empty hub.
func NewHub(logger *log.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger.WithPrefix("ws"),
		metrics: m,
	}
}

// Emit queues u for every client following u.TaskID.
func (h *Hub) Emit(u models.Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.taskID != "" && c.taskID != u.TaskID {
			continue
		}
		h.enqueue(c, u)
	}
}

// enqueue must be called with h.mu held.
func (h *Hub) enqueue(c *client, u models.Update) {
	select {
	case c.send <- u:
	default:
		h.metrics.RecordDropped(hubSinkName)
		h.logger.Debug("client queue full", "task_id", u.TaskID, "chunk", u.Chunk)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve upgrades the request and streams updates for taskID until the task ends or the peer leaves.
//
// snapshot runs after the client is registered; a non-nil result is queued first. It closes the
// gap between a task finishing and a late subscriber missing its terminal update.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, taskID string, snapshot func() *models.Update) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &client{conn: conn, taskID: taskID, send: make(chan models.Update, clientBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(writeWait))
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if snapshot != nil {
		if u := snapshot(); u != nil {
			h.enqueue(c, *u)
		}
	}
	h.mu.Unlock()

	h.logger.Debug("client connected", "task_id", taskID, "remote", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) remove(c *client) {
	c.once.Do(func() {
		h.mu.Lock()
		delete(h.clients, c)
		close(c.send)
		h.mu.Unlock()
		h.logger.Debug("client disconnected", "task_id", c.taskID)
	})
}

// readPump discards inbound messages and keeps the pong deadline fresh.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", "err", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case u, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteJSON(u); err != nil {
				return
			}
			if c.taskID != "" && u.Terminal() {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(u.Status)))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}
