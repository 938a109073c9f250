package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type subscription struct {
	ch chan any
}

// Hub fans out periodic reports to websocket subscribers. Slow subscribers drop messages.
type Hub struct {
	mu       sync.RWMutex
	subs     map[*subscription]struct{}
	upgrader websocket.Upgrader
}

// NewHub builds an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs:     make(map[*subscription]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

func (h *Hub) subscribe(buffer int) *subscription {
	sub := &subscription{ch: make(chan any, buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(sub *subscription) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
	h.mu.Unlock()
}

// Subscribers reports the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish broadcasts v to every subscriber without blocking.
func (h *Hub) Publish(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.ch <- v:
		default:
		}
	}
}

type outboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ServeHTTP upgrades the connection and streams published values as JSON.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := h.subscribe(16)
	defer h.unsubscribe(sub)

	// drain client frames so close messages are noticed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case v, ok := <-sub.ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(outboundMessage{Type: "report", Data: v}); err != nil {
				return
			}
		}
	}
}
