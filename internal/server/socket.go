package server

import (
	"context"
	"sync"
	"time"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 1024
	sendBuffer = 16
)

// Hub fans render pushes out to every socket of a session, so a page change
// made in one tab or by a form post shows up in all of them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*socketClient]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*socketClient]struct{})}
}

func (h *Hub) register(c *socketClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.sessionID]
	if !ok {
		set = make(map[*socketClient]struct{})
		h.clients[c.sessionID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *socketClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.sessionID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.sessionID)
	}
}

// Push queues payload for every socket of sessionID. Sockets with a full
// buffer are dropped.
func (h *Hub) Push(sessionID string, payload []byte) {
	h.mu.RLock()
	var slow []*socketClient
	for c := range h.clients[sessionID] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.unregister(c)
	}
}

// Count returns the number of sockets attached to sessionID.
func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Drop disconnects every socket of sessionID. The write pumps send a close
// frame and the read pumps exit once the connection closes.
func (h *Hub) Drop(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[sessionID] {
		close(c.send)
	}
	delete(h.clients, sessionID)
}

// Close disconnects every socket.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, id)
	}
}

type socketClient struct {
	sessionID string
	conn      *websocket.Conn
	send      chan []byte
}

func newSocketClient(sessionID string, conn *websocket.Conn) *socketClient {
	return &socketClient{
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
	}
}

// readPump decodes client events until the connection fails.
func (c *socketClient) readPump(ctx context.Context, hub *Hub, handle func(clientEvent)) {
	defer func() {
		hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warnw(ctx, "websocket read failed", "session_id", c.sessionID, "error", err)
			}
			return
		}

		var ev clientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.reply(hub, serverEvent{Type: eventError, Message: "invalid event"})
			continue
		}
		handle(ev)
	}
}

// writePump owns all writes to the connection.
func (c *socketClient) writePump() {
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

// reply sends ev to this socket only.
func (c *socketClient) reply(hub *Hub, ev serverEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if _, ok := hub.clients[c.sessionID][c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}
