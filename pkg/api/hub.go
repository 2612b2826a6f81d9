package api

import (
	"sync"

	"github.com/gorilla/websocket"

	"inkwash/pkg/logger"
	"inkwash/pkg/telemetry"
)

// hub tracks the websocket subscribers of each tile and pushes the full
// tile document to them on every change.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]bool
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[*subscriber]bool)}
}

func (h *hub) add(tileKey string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[tileKey] == nil {
		h.subs[tileKey] = make(map[*subscriber]bool)
	}
	h.subs[tileKey][sub] = true
	telemetry.OpenSubscriptions.Inc()
}

func (h *hub) remove(tileKey string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[tileKey]; ok && set[sub] {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, tileKey)
		}
		telemetry.OpenSubscriptions.Dec()
	}
	sub.close()
}

// broadcast queues the payload to every subscriber of the tile. A
// subscriber that cannot keep up is dropped rather than blocking the rest.
func (h *hub) broadcast(tileKey string, payload []byte) {
	h.mu.Lock()
	var stale []*subscriber
	for sub := range h.subs[tileKey] {
		select {
		case sub.send <- payload:
		default:
			stale = append(stale, sub)
		}
	}
	h.mu.Unlock()
	for _, sub := range stale {
		logger.Warn("slow_subscriber_dropped", "tile", tileKey)
		h.remove(tileKey, sub)
	}
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.send)
		_ = s.conn.Close()
	})
}

// writeLoop drains the send queue onto the socket.
func (s *subscriber) writeLoop() {
	for payload := range s.send {
		if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
