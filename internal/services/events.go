package services

import (
	"sync"

	"rainyun-autosign/internal/executor"
)

// Hub fans stage events out to WebSocket subscribers. Publishing never
// blocks: a subscriber that cannot keep up just misses events.
type Hub struct {
	mutex       sync.RWMutex
	subscribers map[chan executor.StageEvent]struct{}
	closed      bool
}

var GlobalHub *Hub

func InitHub() {
	GlobalHub = NewHub()
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[chan executor.StageEvent]struct{}),
	}
}

// Publish implements executor.EventSink.
func (h *Hub) Publish(ev executor.StageEvent) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if h.closed {
		return
	}
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a new listener and returns its channel together
// with a cancel function. Cancel is idempotent.
func (h *Hub) Subscribe() (<-chan executor.StageEvent, func()) {
	ch := make(chan executor.StageEvent, 16)

	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subscribers[ch] = struct{}{}
	h.mutex.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mutex.Lock()
			if _, ok := h.subscribers[ch]; ok {
				delete(h.subscribers, ch)
				close(ch)
			}
			h.mutex.Unlock()
		})
	}
	return ch, cancel
}

// Close drops every subscriber; used on daemon shutdown.
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		delete(h.subscribers, ch)
		close(ch)
	}
}
