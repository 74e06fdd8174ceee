package dashboard

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"symdir/internal/cache"
	"symdir/logger"
)

const (
	eventWriteWait  = time.Second
	eventPongWait   = 35 * time.Second
	eventPingPeriod = 20 * time.Second
	eventBuffer     = 8
)

// snapshotEvent is pushed to /api/events subscribers after each rebuild.
type snapshotEvent struct {
	Type        string `json:"type"`
	SnapshotID  string `json:"snapshot_id,omitempty"`
	Rows        int    `json:"rows,omitempty"`
	RetrievedAt string `json:"retrieved_at,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
	Error       string `json:"error,omitempty"`
}

func newSnapshotEvent(ev cache.RebuildEvent) snapshotEvent {
	out := snapshotEvent{Type: "snapshot", DurationMs: ev.Duration.Milliseconds()}
	if ev.Err != nil {
		out.Type = "rebuild_failed"
		out.Error = ev.Err.Error()
		return out
	}
	if ev.Snapshot != nil {
		out.SnapshotID = ev.Snapshot.ID()
		out.Rows = ev.Snapshot.Len()
		out.RetrievedAt = ev.Snapshot.RetrievedAt().Format(time.RFC3339)
	}
	return out
}

type eventClient struct {
	conn *websocket.Conn
	send chan []byte
}

// eventHub fans snapshot events out to websocket clients. Slow clients
// whose buffer fills up are disconnected.
type eventHub struct {
	mu       sync.Mutex
	clients  map[*eventClient]struct{}
	upgrader websocket.Upgrader
	log      *logger.Log
}

func newEventHub(log *logger.Log) *eventHub {
	return &eventHub{
		clients: make(map[*eventClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

func (h *eventHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *eventHub) broadcast(ev snapshotEvent) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.WithComponent("events").WithError(err).Warn("failed to encode snapshot event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *eventHub) remove(c *eventClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// serve upgrades the request and blocks until the client goes away.
func (h *eventHub) serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithComponent("events").WithError(err).Debug("websocket upgrade failed")
		return
	}

	client := &eventClient{conn: conn, send: make(chan []byte, eventBuffer)}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go h.writePump(client)
	h.readPump(client)
}

func (h *eventHub) readPump(c *eventClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(eventPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(eventPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *eventHub) writePump(c *eventClient) {
	ticker := time.NewTicker(eventPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
