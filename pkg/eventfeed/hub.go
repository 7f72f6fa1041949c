// Package eventfeed pushes calibration notifications to websocket
// subscribers and follows such a feed from the client side.
package eventfeed

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const writeWait = 10 * time.Second

// Hub tracks connected subscribers. The zero value is not usable; use NewHub.
type Hub struct {
	upgrader websocket.Upgrader
	clients  map[*websocket.Conn]*sync.Mutex
	mu       sync.RWMutex
	now      func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*websocket.Conn]*sync.Mutex),
		now:     time.Now,
	}
}

// Publish stamps the event and sends it to every subscriber.
// Subscribers that fail to receive it are dropped.
func (h *Hub) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = h.now().UTC()
	}
	payload := ev.ToJsonBytes()
	if payload == nil {
		return
	}

	h.mu.RLock()
	type target struct {
		conn *websocket.Conn
		mu   *sync.Mutex
	}
	targets := make([]target, 0, len(h.clients))
	for c, mu := range h.clients {
		targets = append(targets, target{c, mu})
	}
	h.mu.RUnlock()

	for _, t := range targets {
		t.mu.Lock()
		t.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := t.conn.WriteMessage(websocket.TextMessage, payload)
		t.mu.Unlock()
		if err != nil {
			h.remove(t.conn)
		}
	}
	logrus.WithFields(logrus.Fields{
		"kind":        ev.Kind,
		"subscribers": len(targets),
	}).Debug("Feed event published")
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and keeps the subscriber until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	h.mu.Unlock()

	// Control frames are answered by the read loop.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.remove(conn)
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()
	if ok {
		conn.Close()
	}
}
