package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhall/chat-api/internal/utils/platformerrors"
)

func newTestCache(ttl time.Duration) *Cache {
	return New(ttl)
}

func TestReadFetchesOnceThenServesFromCache(t *testing.T) {
	cache := newTestCache(time.Minute)

	var fetches atomic.Int32
	cache.RegisterFetcher(KindConversations, func(_ context.Context, scope string) (any, error) {
		fetches.Add(1)
		return "data for " + scope, nil
	})

	key := ConversationsKey("user_1")

	first, err := cache.Read(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "data for user_1", first)

	second, err := cache.Read(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), fetches.Load())
}

func TestConcurrentReadsAreDeduplicated(t *testing.T) {
	cache := newTestCache(time.Minute)

	var fetches atomic.Int32
	gate := make(chan struct{})
	cache.RegisterFetcher(KindMessages, func(_ context.Context, _ string) (any, error) {
		fetches.Add(1)
		<-gate
		return []string{"m1"}, nil
	})

	key := MessagesKey("conv_abc")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Read(context.Background(), key)
			assert.NoError(t, err)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), fetches.Load())
}

func TestFetchFailureKeepsPreviousGoodData(t *testing.T) {
	cache := newTestCache(time.Minute)

	shouldFail := false
	cache.RegisterFetcher(KindConversations, func(_ context.Context, _ string) (any, error) {
		if shouldFail {
			return nil, errors.New("upstream down")
		}
		return "good", nil
	})

	key := ConversationsKey("user_1")

	_, err := cache.Read(context.Background(), key)
	require.NoError(t, err)

	// Force staleness so the next read refetches
	cache.Invalidate(key)
	shouldFail = true

	_, err = cache.Read(context.Background(), key)
	require.Error(t, err)

	// The previously-good value is still resident
	value, ok := cache.Peek(key)
	assert.True(t, ok)
	assert.Equal(t, "good", value)
}

func TestMutateConfirmReplacesValueAndInvalidatesDependents(t *testing.T) {
	cache := newTestCache(time.Minute)
	cache.RegisterFetcher(KindConversations, func(_ context.Context, _ string) (any, error) {
		return "server list", nil
	})

	msgKey := MessagesKey("conv_abc")
	convKey := ConversationsKey("user_1")
	cache.storeConfirmed(msgKey, "old messages")
	cache.storeConfirmed(convKey, "old list")

	confirmed, err := cache.Mutate(context.Background(), msgKey, "optimistic messages",
		func(_ context.Context) (any, error) {
			// While the op runs, readers see the optimistic value
			visible, ok := cache.Peek(msgKey)
			assert.True(t, ok)
			assert.Equal(t, "optimistic messages", visible)
			return "confirmed messages", nil
		},
		convKey,
	)
	require.NoError(t, err)
	assert.Equal(t, "confirmed messages", confirmed)

	visible, ok := cache.Peek(msgKey)
	assert.True(t, ok)
	assert.Equal(t, "confirmed messages", visible)

	// The dependent key was marked stale but its value stayed put
	value, ok := cache.Peek(convKey)
	assert.True(t, ok)
	assert.Equal(t, "old list", value)
}

func TestOptimisticRollbackRestoresSnapshot(t *testing.T) {
	cache := newTestCache(time.Minute)
	key := ConversationsKey("user_1")
	cache.storeConfirmed(key, "Untitled")

	_, err := cache.Mutate(context.Background(), key, "Math Help",
		func(_ context.Context) (any, error) {
			visible, _ := cache.Peek(key)
			assert.Equal(t, "Math Help", visible)
			return nil, errors.New("persistence offline")
		},
	)
	require.Error(t, err)

	// The displayed title after failure equals the title before the mutation
	visible, ok := cache.Peek(key)
	assert.True(t, ok)
	assert.Equal(t, "Untitled", visible)
}

func TestInvalidationWithNoReadInFlightIsIdempotent(t *testing.T) {
	cache := newTestCache(time.Minute)
	key := ConversationsKey("user_1")
	cache.storeConfirmed(key, "list")

	cache.Invalidate(key)
	cache.Invalidate(key)

	value, ok := cache.Peek(key)
	assert.True(t, ok)
	assert.Equal(t, "list", value)
}

func TestSecondMutationSupersedesPendingOverlay(t *testing.T) {
	cache := newTestCache(time.Minute)
	key := ConversationsKey("user_1")
	cache.storeConfirmed(key, "original")

	firstOpStarted := make(chan struct{})
	releaseFirst := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := cache.Mutate(context.Background(), key, "first edit",
			func(_ context.Context) (any, error) {
				close(firstOpStarted)
				<-releaseFirst
				return "first confirmed", nil
			},
		)
		assert.NoError(t, err)
	}()

	<-firstOpStarted

	// Second mutation lands while the first is pending: last writer wins
	// on the visible overlay.
	_, err := cache.Mutate(context.Background(), key, "second edit",
		func(_ context.Context) (any, error) {
			visible, _ := cache.Peek(key)
			assert.Equal(t, "second edit", visible)
			return "second confirmed", nil
		},
	)
	require.NoError(t, err)

	// First op resolves last, so its response is the final state
	close(releaseFirst)
	wg.Wait()

	visible, ok := cache.Peek(key)
	assert.True(t, ok)
	assert.Equal(t, "first confirmed", visible)
}

func TestSupersededFailureRollsBackToOriginalSnapshot(t *testing.T) {
	cache := newTestCache(time.Minute)
	key := ConversationsKey("user_1")
	cache.storeConfirmed(key, "original")

	firstOpStarted := make(chan struct{})
	releaseFirst := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = cache.Mutate(context.Background(), key, "first edit",
			func(_ context.Context) (any, error) {
				close(firstOpStarted)
				<-releaseFirst
				return nil, errors.New("first failed")
			},
		)
	}()

	<-firstOpStarted

	_, err := cache.Mutate(context.Background(), key, "second edit",
		func(_ context.Context) (any, error) {
			return nil, errors.New("second failed")
		},
	)
	require.Error(t, err)

	// The chained snapshot reaches back to the pre-mutation original
	visible, ok := cache.Peek(key)
	assert.True(t, ok)
	assert.Equal(t, "original", visible)

	close(releaseFirst)
	wg.Wait()
}

func TestSweepRemovesExpiredEntriesOnly(t *testing.T) {
	cache := newTestCache(50 * time.Millisecond)
	expired := ConversationsKey("user_old")
	fresh := ConversationsKey("user_new")

	cache.storeConfirmed(expired, "old")
	time.Sleep(60 * time.Millisecond)
	cache.storeConfirmed(fresh, "new")

	removed := cache.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, cache.Len())

	_, ok := cache.Peek(fresh)
	assert.True(t, ok)
}

func TestReadWithoutFetcherReturnsTypedError(t *testing.T) {
	cache := newTestCache(time.Minute)

	_, err := cache.Read(context.Background(), PreviewKey("conv_abc"))
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeInternal))
}
