package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview/claims-triage/internal/model"
)

func TestPublishFansOut(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	ch1, unsub1 := bus.Subscribe()
	ch2, unsub2 := bus.Subscribe()
	defer unsub1()
	defer unsub2()

	bus.Publish(model.Event{Type: model.EventClaimUploaded, ClaimID: "CLM-1"})

	for _, ch := range []<-chan model.Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, model.EventClaimUploaded, ev.Type)
			assert.Equal(t, "CLM-1", ev.ClaimID)
			assert.NotEmpty(t, ev.ID)
			assert.False(t, ev.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	bus := NewBus(2)
	defer bus.Close()

	ch, unsub := bus.Subscribe()
	defer unsub()

	bus.Publish(model.Event{ClaimID: "CLM-1"})
	bus.Publish(model.Event{ClaimID: "CLM-2"})
	bus.Publish(model.Event{ClaimID: "CLM-3"}) // evicts CLM-1

	assert.Equal(t, "CLM-2", (<-ch).ClaimID)
	assert.Equal(t, "CLM-3", (<-ch).ClaimID)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %s", ev.ClaimID)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	ch, unsub := bus.Subscribe()
	require.Equal(t, 1, bus.SubscriberCount())

	unsub()
	unsub() // idempotent

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, bus.SubscriberCount())

	// Publishing after unsubscribe must not panic.
	bus.Publish(model.Event{ClaimID: "CLM-1"})
}

func TestCloseClosesAllSubscribers(t *testing.T) {
	bus := NewBus(10)

	ch1, _ := bus.Subscribe()
	ch2, _ := bus.Subscribe()

	bus.Close()
	bus.Close() // idempotent

	_, open1 := <-ch1
	_, open2 := <-ch2
	assert.False(t, open1)
	assert.False(t, open2)

	bus.Publish(model.Event{ClaimID: "CLM-1"}) // discarded

	ch3, _ := bus.Subscribe()
	_, open3 := <-ch3
	assert.False(t, open3)
}

func TestPublishStatus(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	ch, unsub := bus.Subscribe()
	defer unsub()

	bus.PublishStatus("CLM-9", model.StatusScoring, "Scoring claim severity and complexity")

	ev := <-ch
	assert.Equal(t, model.EventClaimStatusUpdate, ev.Type)
	assert.Equal(t, "CLM-9", ev.ClaimID)
	assert.Equal(t, model.StatusScoring, ev.Status)
}
