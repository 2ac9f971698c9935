// Package querycache is a keyed TTL cache of server records with optimistic
// mutation support. It is the single shared copy of server data: every
// component reads and writes through it, correctness relies on explicit
// invalidation and TTL expiry is a fallback only.
package querycache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"studyhall/chat-api/internal/infrastructure/metrics"
	"studyhall/chat-api/internal/utils/platformerrors"
)

// Kind names an entity family held by the cache
type Kind string

const (
	KindConversations Kind = "conversations"
	KindMessages      Kind = "messages"
	KindPreview       Kind = "preview"
)

// Key addresses one cache entry. Scope is the owner id for conversation
// lists and the conversation public id for message lists.
type Key struct {
	Kind  Kind
	Scope string
}

func (k Key) String() string {
	return string(k.Kind) + ":" + k.Scope
}

func ConversationsKey(ownerID string) Key {
	return Key{Kind: KindConversations, Scope: ownerID}
}

func MessagesKey(conversationID string) Key {
	return Key{Kind: KindMessages, Scope: conversationID}
}

func PreviewKey(conversationID string) Key {
	return Key{Kind: KindPreview, Scope: conversationID}
}

// OverlayStatus tags the lifecycle of an optimistic overlay
type OverlayStatus string

const (
	OverlayPending   OverlayStatus = "pending"
	OverlayConfirmed OverlayStatus = "confirmed"
	OverlayFailed    OverlayStatus = "failed"
)

// overlay is the optimistic half of an entry. Exactly zero or one overlay
// exists per key; a newer mutation supersedes it by bumping seq.
type overlay struct {
	status   OverlayStatus
	snapshot any
	value    any
	seq      uint64
}

type entry struct {
	value     any
	hasValue  bool
	fetchedAt time.Time
	overlay   *overlay
}

// Fetcher loads authoritative data for one scope of a kind
type Fetcher func(ctx context.Context, scope string) (any, error)

// Cache is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	entries  map[Key]*entry
	fetchers map[Kind]Fetcher
	group    singleflight.Group
	ttl      time.Duration
	seq      uint64
	now      func() time.Time
}

func New(ttl time.Duration) *Cache {
	return &Cache{
		entries:  make(map[Key]*entry),
		fetchers: make(map[Kind]Fetcher),
		ttl:      ttl,
		now:      time.Now,
	}
}

// RegisterFetcher installs the loader used on cache misses for a kind
func (c *Cache) RegisterFetcher(kind Kind, fetch Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchers[kind] = fetch
}

// Read returns the cached value when fresh, or fetches through the
// registered fetcher. Concurrent reads of one key are deduplicated. A fetch
// failure surfaces as a typed error and never clears previously-good data.
func (c *Cache) Read(ctx context.Context, key Key) (any, error) {
	c.mu.Lock()
	ent, ok := c.entries[key]
	if ok {
		if ent.overlay != nil && ent.overlay.status == OverlayPending {
			value := ent.overlay.value
			c.mu.Unlock()
			metrics.CacheReadsTotal.WithLabelValues(string(key.Kind), "hit").Inc()
			return value, nil
		}
		if ent.hasValue && c.now().Sub(ent.fetchedAt) < c.ttl {
			value := ent.value
			c.mu.Unlock()
			metrics.CacheReadsTotal.WithLabelValues(string(key.Kind), "hit").Inc()
			return value, nil
		}
	}
	fetch, haveFetcher := c.fetchers[key.Kind]
	c.mu.Unlock()

	if !haveFetcher {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerSync, platformerrors.ErrorTypeInternal,
			fmt.Sprintf("no fetcher registered for kind %q", key.Kind), nil, "c1e7a4f2-8b5d-4c39-a6e0-3f9d2b7c5a81")
	}

	metrics.CacheReadsTotal.WithLabelValues(string(key.Kind), "miss").Inc()

	value, err, _ := c.group.Do(key.String(), func() (any, error) {
		fetched, fetchErr := fetch(ctx, key.Scope)
		if fetchErr != nil {
			return nil, fetchErr
		}
		c.storeConfirmed(key, fetched)
		return fetched, nil
	})
	if err != nil {
		metrics.CacheReadsTotal.WithLabelValues(string(key.Kind), "error").Inc()
		return nil, platformerrors.AsError(ctx, platformerrors.LayerSync, err, "cache fetch failed")
	}
	return value, nil
}

// Peek returns the currently visible value without fetching
func (c *Cache) Peek(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if ent.overlay != nil && ent.overlay.status == OverlayPending {
		return ent.overlay.value, true
	}
	if ent.hasValue {
		return ent.value, true
	}
	return nil, false
}

// Mutate writes the optimistic value immediately, then runs op. On success
// the confirmed value replaces the cache and the dependent keys are
// invalidated, in that order. On failure the pre-mutation snapshot is
// restored and the error returned.
//
// A second mutation while one is pending supersedes it: last writer wins on
// the visible overlay, both ops still fire, and the final cached state is
// whichever op resolves last.
func (c *Cache) Mutate(ctx context.Context, key Key, optimistic any, op func(ctx context.Context) (any, error), invalidates ...Key) (any, error) {
	c.mu.Lock()
	ent := c.ensureEntry(key)
	snapshot := ent.value
	if ent.overlay != nil && ent.overlay.status == OverlayPending {
		// Supersede: keep the original pre-mutation snapshot so a rollback
		// lands before the whole mutation chain.
		snapshot = ent.overlay.snapshot
	}
	c.seq++
	mySeq := c.seq
	ent.overlay = &overlay{
		status:   OverlayPending,
		snapshot: snapshot,
		value:    optimistic,
		seq:      mySeq,
	}
	c.mu.Unlock()

	confirmed, err := op(ctx)
	if err != nil {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.overlay != nil && cur.overlay.seq == mySeq {
			cur.value = cur.overlay.snapshot
			cur.hasValue = cur.overlay.snapshot != nil
			cur.overlay = nil
		}
		c.mu.Unlock()
		metrics.CacheMutationsTotal.WithLabelValues(string(key.Kind), "rollback").Inc()
		return nil, platformerrors.AsError(ctx, platformerrors.LayerSync, err, "mutation failed, optimistic value rolled back")
	}

	c.mu.Lock()
	cur := c.ensureEntry(key)
	cur.value = confirmed
	cur.hasValue = true
	cur.fetchedAt = c.now()
	if cur.overlay != nil && cur.overlay.seq == mySeq {
		cur.overlay = nil
	}
	c.mu.Unlock()

	metrics.CacheMutationsTotal.WithLabelValues(string(key.Kind), "confirmed").Inc()

	// Invalidation happens only after server confirmation, never before
	for _, dep := range invalidates {
		c.Invalidate(dep)
	}

	return confirmed, nil
}

// Invalidate marks a key stale so the next Read refetches. The cached value
// stays in place until then, so invalidating with no read in flight changes
// nothing visible. Idempotent.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	if ent, ok := c.entries[key]; ok {
		ent.fetchedAt = time.Time{}
	}
	c.mu.Unlock()
	metrics.CacheInvalidationsTotal.WithLabelValues(string(key.Kind)).Inc()
}

// Drop removes a key entirely, visible value included. Used when the scoped
// entity itself is gone, not for routine staleness.
func (c *Cache) Drop(key Key) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Sweep removes expired entries with no pending overlay and reports how
// many were removed. Run periodically from the cron scheduler.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, ent := range c.entries {
		if ent.overlay != nil && ent.overlay.status == OverlayPending {
			continue
		}
		if c.now().Sub(ent.fetchedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		metrics.CacheSweptTotal.Add(float64(removed))
	}
	return removed
}

// Len reports the number of resident entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) storeConfirmed(key Key, value any) {
	c.mu.Lock()
	ent := c.ensureEntry(key)
	ent.value = value
	ent.hasValue = true
	ent.fetchedAt = c.now()
	c.mu.Unlock()
}

func (c *Cache) ensureEntry(key Key) *entry {
	ent, ok := c.entries[key]
	if !ok {
		ent = &entry{}
		c.entries[key] = ent
	}
	return ent
}
