package preview

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhall/chat-api/internal/domain/conversation"
)

const testDebounce = 20 * time.Millisecond

func waitForState(t *testing.T, f *Fetcher, want State) Snapshot {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		snapshot := f.Snapshot()
		if snapshot.State == want {
			return snapshot
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state never became %s, last was %s", want, f.Snapshot().State)
	return Snapshot{}
}

func TestFetchReturnsRecentMessages(t *testing.T) {
	loader := func(_ context.Context, conversationID string, limit int) ([]*conversation.Message, error) {
		assert.Equal(t, 5, limit)
		return []*conversation.Message{
			{PublicID: "msg_1", Sender: conversation.SenderUser, Content: "hi", CreatedAt: time.Now().Add(-time.Minute)},
			{PublicID: "msg_2", Sender: conversation.SenderAssistant, Content: "hello", CreatedAt: time.Now()},
		}, nil
	}

	f := NewFetcher(loader, testDebounce, 5)
	f.Fetch(context.Background(), "conv_abc")

	assert.Equal(t, StateLoading, f.Snapshot().State)

	snapshot := waitForState(t, f, StateReady)
	require.Len(t, snapshot.Messages, 2)
	assert.Equal(t, "msg_1", snapshot.Messages[0].ID)
	assert.Equal(t, "user", snapshot.Messages[0].Role)
	assert.Equal(t, "assistant", snapshot.Messages[1].Role)
}

func TestRapidFetchesCoalesceToOneLoad(t *testing.T) {
	var loads atomic.Int32
	loader := func(_ context.Context, conversationID string, _ int) ([]*conversation.Message, error) {
		loads.Add(1)
		return []*conversation.Message{{PublicID: "msg_" + conversationID, Sender: conversation.SenderUser, Content: "x"}}, nil
	}

	f := NewFetcher(loader, testDebounce, 5)
	for _, id := range []string{"conv_1", "conv_2", "conv_3", "conv_4"} {
		f.Fetch(context.Background(), id)
		time.Sleep(2 * time.Millisecond)
	}

	snapshot := waitForState(t, f, StateReady)
	assert.Equal(t, int32(1), loads.Load())
	assert.Equal(t, "conv_4", snapshot.ConversationID)
}

func TestClearCancelsPendingFetch(t *testing.T) {
	var loads atomic.Int32
	loader := func(_ context.Context, _ string, _ int) ([]*conversation.Message, error) {
		loads.Add(1)
		return nil, nil
	}

	f := NewFetcher(loader, testDebounce, 5)
	f.Fetch(context.Background(), "conv_abc")
	f.Clear()

	assert.Equal(t, StateNone, f.Snapshot().State)

	time.Sleep(3 * testDebounce)
	assert.Equal(t, int32(0), loads.Load())
	assert.Equal(t, StateNone, f.Snapshot().State)
}

func TestEmptyAndErrorStatesAreDistinct(t *testing.T) {
	t.Run("empty conversation", func(t *testing.T) {
		loader := func(_ context.Context, _ string, _ int) ([]*conversation.Message, error) {
			return nil, nil
		}
		f := NewFetcher(loader, testDebounce, 5)
		f.Fetch(context.Background(), "conv_empty")
		snapshot := waitForState(t, f, StateEmpty)
		assert.Empty(t, snapshot.Messages)
		assert.NoError(t, snapshot.Err)
	})

	t.Run("loader failure", func(t *testing.T) {
		loader := func(_ context.Context, _ string, _ int) ([]*conversation.Message, error) {
			return nil, errors.New("connection refused")
		}
		f := NewFetcher(loader, testDebounce, 5)
		f.Fetch(context.Background(), "conv_err")
		snapshot := waitForState(t, f, StateError)
		assert.Error(t, snapshot.Err)
	})
}

func TestStaleLoadResultIsDropped(t *testing.T) {
	release := make(chan struct{})
	loader := func(_ context.Context, conversationID string, _ int) ([]*conversation.Message, error) {
		if conversationID == "conv_slow" {
			<-release
		}
		return []*conversation.Message{{PublicID: "msg_" + conversationID, Sender: conversation.SenderUser, Content: "x"}}, nil
	}

	f := NewFetcher(loader, time.Millisecond, 5)
	f.Fetch(context.Background(), "conv_slow")
	time.Sleep(10 * time.Millisecond) // slow load is now in flight

	f.Fetch(context.Background(), "conv_fast")
	snapshot := waitForState(t, f, StateReady)
	assert.Equal(t, "conv_fast", snapshot.ConversationID)

	close(release)
	time.Sleep(20 * time.Millisecond)

	// The slow result arrived after being superseded and changed nothing
	assert.Equal(t, "conv_fast", f.Snapshot().ConversationID)
}
