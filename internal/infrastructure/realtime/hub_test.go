package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhall/chat-api/internal/infrastructure/logger"
)

func newTestHub(t *testing.T, throttle time.Duration, bufferSize int) *Hub {
	t.Helper()
	hub := NewHub(throttle, bufferSize, logger.GetLogger())
	hub.Start(context.Background())
	t.Cleanup(hub.Stop)
	return hub
}

func waitForBatch(t *testing.T, ch <-chan []Event) []Event {
	t.Helper()
	select {
	case batch := <-ch:
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
		return nil
	}
}

func TestBurstDeliveredAsSingleBatch(t *testing.T) {
	hub := newTestHub(t, 50*time.Millisecond, 256)

	ch, cancel := hub.Subscribe("user_1")
	defer cancel()

	hub.Publish(Event{Type: EventConversationCreated, ConversationID: "conv_1", OwnerID: "user_1"})
	hub.Publish(Event{Type: EventMessageCreated, ConversationID: "conv_1", OwnerID: "user_1"})
	hub.Publish(Event{Type: EventConversationUpdated, ConversationID: "conv_1", OwnerID: "user_1"})

	batch := waitForBatch(t, ch)
	require.Len(t, batch, 3)
	assert.Equal(t, EventConversationCreated, batch[0].Type)
	assert.Equal(t, EventMessageCreated, batch[1].Type)
	assert.Equal(t, EventConversationUpdated, batch[2].Type)
}

func TestEventsRoutedByOwner(t *testing.T) {
	hub := newTestHub(t, 20*time.Millisecond, 256)

	chA, cancelA := hub.Subscribe("user_a")
	defer cancelA()
	chB, cancelB := hub.Subscribe("user_b")
	defer cancelB()

	hub.Publish(Event{Type: EventConversationUpdated, ConversationID: "conv_a", OwnerID: "user_a"})

	batch := waitForBatch(t, chA)
	require.Len(t, batch, 1)
	assert.Equal(t, "conv_a", batch[0].ConversationID)

	select {
	case leaked := <-chB:
		t.Fatalf("user_b received another owner's events: %v", leaked)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBufferOverflowDropsOldest(t *testing.T) {
	hub := newTestHub(t, time.Hour, 3) // throttle long enough to never flush

	for i := 0; i < 5; i++ {
		hub.Publish(Event{Type: EventMessageCreated, ConversationID: "conv_1", OwnerID: "user_1"})
	}

	hub.mu.Lock()
	queue := hub.pending["user_1"]
	hub.mu.Unlock()
	assert.Len(t, queue, 3)
}

func TestCancelStopsDelivery(t *testing.T) {
	hub := newTestHub(t, 20*time.Millisecond, 256)

	ch, cancel := hub.Subscribe("user_1")
	cancel()
	cancel() // second cancel is a no-op

	hub.Publish(Event{Type: EventConversationDeleted, ConversationID: "conv_1", OwnerID: "user_1"})

	// Channel closes on cancel; no batch is ever delivered to it
	batch, open := <-ch
	assert.False(t, open)
	assert.Nil(t, batch)
}

func TestEmptyOwnerIgnored(t *testing.T) {
	hub := newTestHub(t, time.Hour, 256)

	hub.Publish(Event{Type: EventConversationCreated, ConversationID: "conv_1"})

	hub.mu.Lock()
	pending := len(hub.pending)
	hub.mu.Unlock()
	assert.Zero(t, pending)
}
