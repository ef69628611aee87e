package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SubscriberQueueSize is §4.7's default bounded per-subscriber queue depth.
const SubscriberQueueSize = 1024

// Filter narrows a subscription to a subset of events. A nil or empty Types
// set means "all event types".
type Filter struct {
	Types map[EventType]bool
}

func (f Filter) matches(e Event) bool {
	if len(f.Types) == 0 {
		return true
	}
	return f.Types[e.Type]
}

// Subscription is a live subscriber handle. Events arrive on C; Close
// unregisters the subscriber and is safe to call more than once.
type Subscription struct {
	ID    string
	C     <-chan Event
	close func()
}

func (s *Subscription) Close() {
	if s != nil && s.close != nil {
		s.close()
	}
}

// Bus is C8's publish/subscribe contract: best-effort, at-least-once
// delivery to each live subscriber, ordered per-subscriber by publish
// order. Two implementations satisfy it: Hub (in-process, single
// instance) and RedisBus (fans Publish calls out to every coordinator
// replica's local Hub).
type Bus interface {
	Publish(ctx context.Context, e Event) error
	Subscribe(filter Filter) *Subscription
	// DroppedSubscribers reports how many times a lagging subscriber's
	// queue overflowed and was dropped, backing the health endpoint's
	// droppedSubscribers field.
	DroppedSubscribers() int64
	Close() error
}

// NewEvent wraps a typed payload in the §6 `{type, payload, ts}` envelope,
// inferring Type from the payload's concrete type.
func NewEvent(payload interface{}) Event {
	return Event{
		ID:      uuid.NewString(),
		Type:    typeOf(payload),
		Payload: payload,
		Ts:      time.Now().UTC(),
	}
}

func typeOf(payload interface{}) EventType {
	switch payload.(type) {
	case NodeChanged, *NodeChanged:
		return EventNodeChanged
	case JobChanged, *JobChanged:
		return EventJobChanged
	case FolderProgressChanged, *FolderProgressChanged:
		return EventFolderProgressChanged
	case LockChanged, *LockChanged:
		return EventLockChanged
	default:
		return EventType(fmt.Sprintf("%T", payload))
	}
}
