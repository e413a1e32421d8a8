// Package events provides the in-process workflow event bus. Publishers
// fire and forget; subscribers each get a bounded buffer, and when a
// slow subscriber's buffer fills the oldest event is dropped so
// publishers never block.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborview/claims-triage/internal/model"
)

// DefaultBufferSize is the per-subscriber event buffer.
const DefaultBufferSize = 100

// Bus fans events out to subscribers.
type Bus struct {
	mu      sync.Mutex
	subs    map[string]chan model.Event
	bufSize int
	closed  bool
}

// NewBus creates a Bus with the given per-subscriber buffer size.
// Sizes below 1 fall back to DefaultBufferSize.
func NewBus(bufSize int) *Bus {
	if bufSize < 1 {
		bufSize = DefaultBufferSize
	}
	return &Bus{
		subs:    make(map[string]chan model.Event),
		bufSize: bufSize,
	}
}

// Subscribe registers a new subscriber and returns its event channel
// and an unsubscribe function. The channel is closed on unsubscribe and
// on bus Close.
func (b *Bus) Subscribe() (<-chan model.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan model.Event, b.bufSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return ch, unsubscribe
}

// Publish delivers the event to every subscriber. It fills in ID and
// Timestamp when absent and never blocks: a full subscriber buffer
// drops its oldest event to make room.
func (b *Bus) Publish(ev model.Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
				zap.L().Debug("events: slow subscriber, dropped oldest event")
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// PublishStatus publishes a claim status-update event.
func (b *Bus) PublishStatus(claimID string, status model.ClaimStatus, message string) {
	b.Publish(model.Event{
		Type:    model.EventClaimStatusUpdate,
		ClaimID: claimID,
		Status:  status,
		Message: message,
	})
}

// SubscriberCount reports the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close shuts the bus down and closes every subscriber channel.
// Publishes after Close are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
