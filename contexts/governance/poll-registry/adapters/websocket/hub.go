package websocketadapter

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBuffer = 16
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Hub groups live feed connections by poll and fans tally updates out to
// them. A client whose send buffer is full is dropped.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeLive upgrades the request and streams pollID updates until the peer
// disconnects. snapshot, when non-nil, is called once the client is
// registered and its result is the first message sent. It runs under the hub
// lock, so a concurrent Broadcast for the poll is queued behind it and no
// update between registration and snapshot is lost. snapshot must not call
// back into the hub.
func (h *Hub) ServeLive(w http.ResponseWriter, r *http.Request, pollID string, snapshot func() ([]byte, error)) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("live feed upgrade failed",
			"event", "poll_registry_ws_upgrade_failed",
			"module", "governance/poll-registry",
			"layer", "adapter",
			"poll_id", pollID,
			"error", err.Error(),
		)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.registerLocked(pollID, c)
	if snapshot != nil {
		payload, err := snapshot()
		if err != nil {
			h.logger.Warn("live feed snapshot failed",
				"event", "poll_registry_ws_snapshot_failed",
				"module", "governance/poll-registry",
				"layer", "adapter",
				"poll_id", pollID,
				"error", err.Error(),
			)
		} else {
			c.send <- payload
		}
	}
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(pollID, c)
}

func (h *Hub) Broadcast(pollID string, payload []byte) {
	var slow []*client
	h.mu.RLock()
	for c := range h.rooms[pollID] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow live feed client",
			"event", "poll_registry_ws_client_dropped",
			"module", "governance/poll-registry",
			"layer", "adapter",
			"poll_id", pollID,
		)
		h.unregister(pollID, c)
	}
}

// Clients returns the number of connections listening on pollID.
func (h *Hub) Clients(pollID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[pollID])
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for pollID, room := range h.rooms {
		for c := range room {
			close(c.send)
		}
		delete(h.rooms, pollID)
	}
}

func (h *Hub) registerLocked(pollID string, c *client) {
	room, ok := h.rooms[pollID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[pollID] = room
	}
	room[c] = struct{}{}
}

func (h *Hub) unregister(pollID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[pollID]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, pollID)
	}
}

// readPump drains control frames so pongs are processed; the feed is
// server to client only.
func (h *Hub) readPump(pollID string, c *client) {
	defer h.unregister(pollID, c)
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
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
