// Package preview fetches the tail of a conversation for a hover preview
// pane. Fetches are debounced so scrubbing across the history list does not
// issue one request per row, and a preview failure never leaks anywhere else.
package preview

import (
	"context"
	"sync"
	"time"

	"studyhall/chat-api/internal/domain/conversation"
)

// State of the preview pane. Loading, error, and empty are distinct.
type State string

const (
	StateNone    State = "none"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateEmpty   State = "empty"
	StateError   State = "error"
)

// Message is the minimal display shape of one previewed message
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Role      string    `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the preview pane's visible state at one instant
type Snapshot struct {
	ConversationID string    `json:"conversation_id"`
	State          State     `json:"state"`
	Messages       []Message `json:"messages"`
	Err            error     `json:"-"`
}

// Loader fetches the newest limit messages for a conversation
type Loader func(ctx context.Context, conversationID string, limit int) ([]*conversation.Message, error)

// Fetcher debounces preview loads. Safe for concurrent use.
type Fetcher struct {
	mu       sync.Mutex
	loader   Loader
	debounce time.Duration
	limit    int

	timer    *time.Timer
	gen      uint64
	snapshot Snapshot
	onUpdate func(Snapshot)
}

func NewFetcher(loader Loader, debounce time.Duration, limit int) *Fetcher {
	return &Fetcher{
		loader:   loader,
		debounce: debounce,
		limit:    limit,
		snapshot: Snapshot{State: StateNone},
	}
}

// OnUpdate registers a callback invoked with every snapshot change
func (f *Fetcher) OnUpdate(fn func(Snapshot)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onUpdate = fn
}

// Fetch schedules a debounced load for conversationID. A newer Fetch or a
// Clear before the delay elapses cancels it.
func (f *Fetcher) Fetch(ctx context.Context, conversationID string) {
	f.mu.Lock()
	f.gen++
	gen := f.gen
	if f.timer != nil {
		f.timer.Stop()
	}
	f.setSnapshotLocked(Snapshot{ConversationID: conversationID, State: StateLoading})
	f.timer = time.AfterFunc(f.debounce, func() {
		f.load(ctx, conversationID, gen)
	})
	f.mu.Unlock()
}

// Clear cancels any pending debounced fetch and resets to no-selection
func (f *Fetcher) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.setSnapshotLocked(Snapshot{State: StateNone})
}

// Snapshot returns the current visible state
func (f *Fetcher) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *Fetcher) load(ctx context.Context, conversationID string, gen uint64) {
	msgs, err := f.loader(ctx, conversationID, f.limit)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		// A newer fetch or a clear won the race; drop this result
		return
	}

	if err != nil {
		f.setSnapshotLocked(Snapshot{ConversationID: conversationID, State: StateError, Err: err})
		return
	}
	if len(msgs) == 0 {
		f.setSnapshotLocked(Snapshot{ConversationID: conversationID, State: StateEmpty})
		return
	}

	display := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		display = append(display, Message{
			ID:        msg.PublicID,
			Text:      msg.Content,
			Role:      string(msg.Sender),
			Timestamp: msg.CreatedAt,
		})
	}
	f.setSnapshotLocked(Snapshot{ConversationID: conversationID, State: StateReady, Messages: display})
}

func (f *Fetcher) setSnapshotLocked(snapshot Snapshot) {
	f.snapshot = snapshot
	if f.onUpdate != nil {
		go f.onUpdate(snapshot)
	}
}
