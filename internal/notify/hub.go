package notify

import (
	"context"
	"sync"

	"github.com/localnerve/nodues/internal/metrics"
	"github.com/rs/zerolog"
)

// Hub delivers events to in-process subscribers such as dashboard streams.
// Publish never blocks: a subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	next   uint64
	buffer int
	log    zerolog.Logger
}

// NewHub creates a hub whose subscriber channels hold buffer events.
func NewHub(buffer int, log zerolog.Logger) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		subs:   make(map[uint64]chan Event),
		buffer: buffer,
		log:    log.With().Str("component", "notify.hub").Logger(),
	}
}

// Subscribe registers a subscriber. The returned cancel func closes the channel
// and must be called exactly once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish offers e to every subscriber.
func (h *Hub) Publish(_ context.Context, e Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- e:
		default:
			metrics.NotificationsDropped.Inc()
			h.log.Warn().
				Uint64("subscriber", id).
				Str("event_id", e.ID).
				Str("application_id", e.ApplicationID).
				Msg("subscriber buffer full, event dropped")
		}
	}
	return nil
}
