// Package realtime fans conversation change events out to connected
// subscribers. Events arrive from the database change feed, are buffered per
// owner, and flushed on a throttle interval as a single batch so a burst of
// writes costs one render, not one per event.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"studyhall/chat-api/internal/infrastructure/metrics"
)

// ===============================================
// Event Types
// ===============================================

const (
	EventConversationCreated = "conversation.created"
	EventConversationUpdated = "conversation.updated"
	EventConversationDeleted = "conversation.deleted"
	EventMessageCreated      = "message.created"
)

// Event is one conversation change notification.
type Event struct {
	Type           string    `json:"event"`
	ConversationID string    `json:"conversation_id"`
	OwnerID        string    `json:"owner_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// ===============================================
// Hub
// ===============================================

type subscriber struct {
	ownerID string
	ch      chan []Event
}

// Hub buffers events per owner and delivers them to subscribers in throttled
// batches. Subscribers that cannot keep up lose whole batches, never partial
// ones.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	pending     map[string][]Event

	throttle   time.Duration
	bufferSize int
	log        zerolog.Logger

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewHub(throttle time.Duration, bufferSize int, log zerolog.Logger) *Hub {
	if throttle <= 0 {
		throttle = 500 * time.Millisecond
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Hub{
		subscribers: make(map[*subscriber]struct{}),
		pending:     make(map[string][]Event),
		throttle:    throttle,
		bufferSize:  bufferSize,
		log:         log.With().Str("component", "realtime-hub").Logger(),
		done:        make(chan struct{}),
	}
}

// Start begins the flush loop in background.
// Safe to call multiple times - only the first call starts the hub.
func (h *Hub) Start(ctx context.Context) {
	h.startOnce.Do(func() {
		h.wg.Add(1)
		go h.run(ctx)
		h.log.Info().Dur("throttle", h.throttle).Msg("realtime hub started")
	})
}

// Stop gracefully shuts down the hub and closes all subscriber channels.
// Safe to call multiple times - only the first call stops the hub.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		h.mu.Lock()
		for sub := range h.subscribers {
			close(sub.ch)
			delete(h.subscribers, sub)
		}
		metrics.RealtimeSubscribers.Set(0)
		h.mu.Unlock()

		h.log.Info().Msg("realtime hub stopped")
	})
}

// Subscribe registers a listener for one owner's events. The returned cancel
// function must be called when the consumer disconnects.
func (h *Hub) Subscribe(ownerID string) (<-chan []Event, func()) {
	sub := &subscriber{
		ownerID: ownerID,
		// One slot per batch; the throttle loop never blocks on a slow reader
		ch: make(chan []Event, 1),
	}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	metrics.RealtimeSubscribers.Set(float64(len(h.subscribers)))
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subscribers[sub]; !ok {
			return
		}
		delete(h.subscribers, sub)
		close(sub.ch)
		metrics.RealtimeSubscribers.Set(float64(len(h.subscribers)))
	}
	return sub.ch, cancel
}

// Publish queues an event for the owner's next batch. When the buffer is
// full the oldest events give way; a subscriber catching up later refetches
// through the query layer anyway.
func (h *Hub) Publish(event Event) {
	if event.OwnerID == "" {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	metrics.RealtimeEventsTotal.WithLabelValues(event.Type).Inc()

	h.mu.Lock()
	defer h.mu.Unlock()
	queue := append(h.pending[event.OwnerID], event)
	if overflow := len(queue) - h.bufferSize; overflow > 0 {
		queue = queue[overflow:]
		metrics.RealtimeDroppedTotal.Add(float64(overflow))
	}
	h.pending[event.OwnerID] = queue
}

func (h *Hub) run(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.throttle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Msg("context cancelled, shutting down hub")
			return
		case <-h.done:
			return
		case <-ticker.C:
			h.flush()
		}
	}
}

// flush delivers every owner's pending events as one batch. A subscriber
// whose slot is still occupied from the previous tick drops this batch.
func (h *Hub) flush() {
	h.mu.Lock()
	if len(h.pending) == 0 {
		h.mu.Unlock()
		return
	}
	batches := h.pending
	h.pending = make(map[string][]Event)

	for sub := range h.subscribers {
		batch, ok := batches[sub.ownerID]
		if !ok {
			continue
		}
		select {
		case sub.ch <- batch:
		default:
			metrics.RealtimeDroppedTotal.Add(float64(len(batch)))
		}
	}
	h.mu.Unlock()
}
