package bus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/yungbote/batchcoord/internal/platform/logger"
)

// Hub is the in-process Bus backend for a single coordinator instance.
// Grounded on the teacher's SSEHub (internal/sse/hub.go): a mutex-protected
// subscriber table, a bounded per-subscriber channel, and a non-blocking
// send that drops and logs rather than backing up the publisher.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	log         *logger.Logger
	dropped     atomic.Int64
}

type subscriber struct {
	id     string
	filter Filter
	out    chan Event
}

func NewHub(baseLog *logger.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]*subscriber),
		log:         baseLog.With("component", "EventHub"),
	}
}

func (h *Hub) Subscribe(filter Filter) *Subscription {
	sub := &subscriber{
		id:     uuid.NewString(),
		filter: filter,
		out:    make(chan Event, SubscriberQueueSize),
	}
	h.mu.Lock()
	h.subscribers[sub.id] = sub
	h.mu.Unlock()

	return &Subscription{
		ID: sub.id,
		C:  sub.out,
		close: func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subscribers[sub.id]; ok {
				delete(h.subscribers, sub.id)
				close(sub.out)
			}
		},
	}
}

// Publish delivers e to every live subscriber whose filter matches,
// non-blocking. A subscriber whose queue is full is dropped — its channel
// is closed and removed — and a diagnostic log line is emitted, satisfying
// §4.7's "dropped with a diagnostic event" requirement without blocking the
// publisher.
func (h *Hub) Publish(_ context.Context, e Event) error {
	h.mu.RLock()
	targets := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		if sub.filter.matches(e) {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	var toDrop []string
	for _, sub := range targets {
		select {
		case sub.out <- e:
		default:
			toDrop = append(toDrop, sub.id)
		}
	}
	if len(toDrop) > 0 {
		h.dropLagging(toDrop, e)
	}
	return nil
}

func (h *Hub) dropLagging(ids []string, e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range ids {
		sub, ok := h.subscribers[id]
		if !ok {
			continue
		}
		delete(h.subscribers, id)
		close(sub.out)
		h.dropped.Add(1)
		h.log.Warn("dropping lagging event subscriber", "subscriber_id", id, "event_type", e.Type)
	}
}

func (h *Hub) DroppedSubscribers() int64 { return h.dropped.Load() }

func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subscribers {
		close(sub.out)
		delete(h.subscribers, id)
	}
	return nil
}
