// Package history is the conversation history browser: listing, recency
// grouping, search, and optimistic rename/delete, all reading through the
// query cache.
package history

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"studyhall/chat-api/internal/domain/conversation"
	"studyhall/chat-api/internal/sync/querycache"
	"studyhall/chat-api/internal/utils/platformerrors"
)

// Bucket labels, recency order
const (
	BucketToday      = "Today"
	BucketLast7Days  = "Last 7 days"
	BucketLast30Days = "Last 30 days"
	BucketThisYear   = "This year"
)

// Bucket is one recency group of the history list
type Bucket struct {
	Label string                  `json:"label"`
	Items []*conversation.Summary `json:"items"`
}

// Service serves the history browser's operations.
type Service struct {
	cache         *querycache.Cache
	conversations *conversation.Service
}

func NewService(cache *querycache.Cache, conversations *conversation.Service) *Service {
	svc := &Service{
		cache:         cache,
		conversations: conversations,
	}
	cache.RegisterFetcher(querycache.KindConversations, func(ctx context.Context, ownerID string) (any, error) {
		return conversations.ListSummaries(ctx, ownerID)
	})
	return svc
}

// List returns the owner's conversations with preview and message count,
// most-recently-updated first, served through the cache.
func (s *Service) List(ctx context.Context, ownerID string) ([]*conversation.Summary, error) {
	value, err := s.cache.Read(ctx, querycache.ConversationsKey(ownerID))
	if err != nil {
		return nil, err
	}
	summaries, ok := value.([]*conversation.Summary)
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerSync, platformerrors.ErrorTypeInternal,
			fmt.Sprintf("unexpected cache value type %T", value), nil, "a9d4c7e1-2f8b-4a56-9c3d-0e7f5b1a8d62")
	}
	return summaries, nil
}

// Group partitions summaries into recency buckets keyed off now's calendar
// day. UpdatedAt drives the bucketing, CreatedAt when UpdatedAt is zero.
// Empty buckets are omitted; items inside a bucket stay newest-first.
func Group(summaries []*conversation.Summary, now time.Time) []Bucket {
	sorted := make([]*conversation.Summary, len(summaries))
	copy(sorted, summaries)
	sortByRecency(sorted)

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	labels := []string{}
	byLabel := map[string][]*conversation.Summary{}

	for _, summary := range sorted {
		ts := bucketTime(summary)
		label := bucketLabel(ts, now, midnight)
		if _, seen := byLabel[label]; !seen {
			labels = append(labels, label)
		}
		byLabel[label] = append(byLabel[label], summary)
	}

	buckets := make([]Bucket, 0, len(labels))
	for _, label := range labels {
		buckets = append(buckets, Bucket{Label: label, Items: byLabel[label]})
	}
	return buckets
}

func bucketTime(summary *conversation.Summary) time.Time {
	if !summary.UpdatedAt.IsZero() {
		return summary.UpdatedAt
	}
	return summary.CreatedAt
}

func bucketLabel(ts, now, midnight time.Time) string {
	ts = ts.In(now.Location())
	switch {
	case !ts.Before(midnight):
		return BucketToday
	case !ts.Before(midnight.AddDate(0, 0, -7)):
		return BucketLast7Days
	case !ts.Before(midnight.AddDate(0, 0, -30)):
		return BucketLast30Days
	case ts.Year() == now.Year():
		return BucketThisYear
	default:
		return fmt.Sprintf("%d", ts.Year())
	}
}

// Search bypasses grouping: a flat case-insensitive title substring match
// in recency order. An empty query matches everything.
func Search(summaries []*conversation.Summary, query string) []*conversation.Summary {
	needle := strings.ToLower(strings.TrimSpace(query))
	matched := make([]*conversation.Summary, 0, len(summaries))
	for _, summary := range summaries {
		title := ""
		if summary.Title != nil {
			title = *summary.Title
		}
		if needle == "" || strings.Contains(strings.ToLower(title), needle) {
			matched = append(matched, summary)
		}
	}
	sortByRecency(matched)
	return matched
}

// Rename updates the title optimistically. The cached list shows the new
// title immediately; a failed persistence call restores the old one and
// reports the error exactly once.
func (s *Service) Rename(ctx context.Context, ownerID, conversationID, title string) error {
	key := querycache.ConversationsKey(ownerID)

	current, _ := s.cache.Peek(key)
	optimistic := withRenamed(asSummaries(current), conversationID, title)

	_, err := s.cache.Mutate(ctx, key, optimistic,
		func(ctx context.Context) (any, error) {
			if _, renameErr := s.conversations.RenameConversation(ctx, ownerID, conversationID, title); renameErr != nil {
				return nil, renameErr
			}
			return optimistic, nil
		},
		key,
	)
	return err
}

// Delete removes the conversation optimistically. Persistence removes child
// messages before the conversation row. The per-conversation message cache
// is dropped once the delete confirms.
func (s *Service) Delete(ctx context.Context, ownerID, conversationID string) error {
	key := querycache.ConversationsKey(ownerID)

	current, _ := s.cache.Peek(key)
	optimistic := withoutConversation(asSummaries(current), conversationID)

	_, err := s.cache.Mutate(ctx, key, optimistic,
		func(ctx context.Context) (any, error) {
			if deleteErr := s.conversations.DeleteConversation(ctx, ownerID, conversationID); deleteErr != nil {
				return nil, deleteErr
			}
			return optimistic, nil
		},
		key,
	)
	if err != nil {
		return err
	}

	s.cache.Drop(querycache.MessagesKey(conversationID))
	s.cache.Drop(querycache.PreviewKey(conversationID))
	return nil
}

func asSummaries(value any) []*conversation.Summary {
	if summaries, ok := value.([]*conversation.Summary); ok {
		return summaries
	}
	return nil
}

func withRenamed(summaries []*conversation.Summary, conversationID, title string) []*conversation.Summary {
	out := make([]*conversation.Summary, 0, len(summaries))
	for _, summary := range summaries {
		copied := *summary
		if copied.PublicID == conversationID {
			t := title
			copied.Title = &t
		}
		out = append(out, &copied)
	}
	return out
}

func withoutConversation(summaries []*conversation.Summary, conversationID string) []*conversation.Summary {
	out := make([]*conversation.Summary, 0, len(summaries))
	for _, summary := range summaries {
		if summary.PublicID == conversationID {
			continue
		}
		out = append(out, summary)
	}
	return out
}

func sortByRecency(summaries []*conversation.Summary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return bucketTime(summaries[i]).After(bucketTime(summaries[j]))
	})
}
