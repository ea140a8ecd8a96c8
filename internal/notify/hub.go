package notify

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/middleware"
)

const (
	sendBuffer = 8
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Subscription receives the JSON messages broadcast for one order.
type Subscription struct {
	orderID string
	C       <-chan []byte
	send    chan []byte
}

// Hub fans payment updates out to websocket clients watching an order.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	logger *log.Logger

	upgrader websocket.Upgrader
}

func NewHub(logger *log.Logger, allowedOrigins []string) *Hub {
	h := &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		logger: logger,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return middleware.OriginAllowed(origin, allowed)
	}
}

func (h *Hub) Subscribe(orderID string) *Subscription {
	ch := make(chan []byte, sendBuffer)
	s := &Subscription{orderID: orderID, C: ch, send: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[orderID] == nil {
		h.subs[orderID] = make(map[*Subscription]struct{})
	}
	h.subs[orderID][s] = struct{}{}
	return s
}

func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[s.orderID]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	close(s.send)
	if len(set) == 0 {
		delete(h.subs, s.orderID)
	}
}

// Subscribers returns the number of live subscriptions for an order.
func (h *Hub) Subscribers(orderID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[orderID])
}

// Broadcast sends v as JSON to every subscriber of orderID. Slow subscribers
// miss messages instead of blocking the caller.
func (h *Hub) Broadcast(orderID string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Printf("notify: marshal update for order %s: %v", orderID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[orderID] {
		select {
		case s.send <- data:
		default:
			h.logger.Printf("notify: dropping update for slow subscriber on order %s", orderID)
		}
	}
}

// ServeWS upgrades the request and streams updates for orderID until the
// client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, orderID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := h.Subscribe(orderID)
	defer h.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
