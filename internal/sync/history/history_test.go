package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhall/chat-api/internal/domain/conversation"
	"studyhall/chat-api/internal/domain/query"
	"studyhall/chat-api/internal/sync/querycache"
)

func summaryAt(publicID, title string, updatedAt time.Time) *conversation.Summary {
	t := title
	return &conversation.Summary{
		Conversation: conversation.Conversation{
			PublicID:  publicID,
			Title:     &t,
			CreatedAt: updatedAt,
			UpdatedAt: updatedAt,
		},
	}
}

func TestGroupBuckets(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	summaries := []*conversation.Summary{
		summaryAt("conv_today", "today", time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)),
		summaryAt("conv_week", "this week", time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)),
		summaryAt("conv_month", "this month", time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC)),
		summaryAt("conv_year", "this year", time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)),
		summaryAt("conv_old", "last year", time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)),
	}

	buckets := Group(summaries, now)

	require.Len(t, buckets, 5)
	assert.Equal(t, BucketToday, buckets[0].Label)
	assert.Equal(t, BucketLast7Days, buckets[1].Label)
	assert.Equal(t, BucketLast30Days, buckets[2].Label)
	assert.Equal(t, BucketThisYear, buckets[3].Label)
	assert.Equal(t, "2024", buckets[4].Label)

	assert.Equal(t, "conv_today", buckets[0].Items[0].PublicID)
	assert.Equal(t, "conv_old", buckets[4].Items[0].PublicID)
}

func TestGroupOmitsEmptyBuckets(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	summaries := []*conversation.Summary{
		summaryAt("conv_today", "today", now.Add(-time.Hour)),
	}

	buckets := Group(summaries, now)
	require.Len(t, buckets, 1)
	assert.Equal(t, BucketToday, buckets[0].Label)
}

func TestGroupMidnightBoundary(t *testing.T) {
	// Updated one second before midnight on March 14th
	updated := time.Date(2026, 3, 14, 23, 59, 59, 0, time.UTC)
	summaries := []*conversation.Summary{summaryAt("conv_x", "boundary", updated)}

	tests := []struct {
		name      string
		now       time.Time
		wantLabel string
	}{
		{
			name:      "still the same calendar day",
			now:       time.Date(2026, 3, 14, 23, 59, 59, 500000000, time.UTC),
			wantLabel: BucketToday,
		},
		{
			name:      "one second past midnight moves it out of today",
			now:       time.Date(2026, 3, 15, 0, 0, 1, 0, time.UTC),
			wantLabel: BucketLast7Days,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buckets := Group(summaries, tt.now)
			require.Len(t, buckets, 1)
			assert.Equal(t, tt.wantLabel, buckets[0].Label)
		})
	}
}

func TestGroupSortsWithinBucketByRecency(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	summaries := []*conversation.Summary{
		summaryAt("conv_older", "a", now.Add(-3*time.Hour)),
		summaryAt("conv_newer", "b", now.Add(-1*time.Hour)),
	}

	buckets := Group(summaries, now)
	require.Len(t, buckets, 1)
	assert.Equal(t, "conv_newer", buckets[0].Items[0].PublicID)
	assert.Equal(t, "conv_older", buckets[0].Items[1].PublicID)
}

func TestGroupFallsBackToCreatedAt(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	summary := summaryAt("conv_x", "x", time.Time{})
	summary.CreatedAt = now.Add(-time.Hour)
	summary.UpdatedAt = time.Time{}

	buckets := Group([]*conversation.Summary{summary}, now)
	require.Len(t, buckets, 1)
	assert.Equal(t, BucketToday, buckets[0].Label)
}

func TestSearch(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	summaries := []*conversation.Summary{
		summaryAt("conv_1", "Algebra homework", now.Add(-3*time.Hour)),
		summaryAt("conv_2", "Geometry review", now.Add(-1*time.Hour)),
		summaryAt("conv_3", "algebra quiz prep", now.Add(-2*time.Hour)),
	}

	tests := []struct {
		name    string
		query   string
		wantIDs []string
	}{
		{
			name:    "case-insensitive substring",
			query:   "ALGEBRA",
			wantIDs: []string{"conv_3", "conv_1"},
		},
		{
			name:    "no matches",
			query:   "chemistry",
			wantIDs: []string{},
		},
		{
			name:    "empty query matches all in recency order",
			query:   "",
			wantIDs: []string{"conv_2", "conv_3", "conv_1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Search(summaries, tt.query)
			ids := make([]string, 0, len(got))
			for _, summary := range got {
				ids = append(ids, summary.PublicID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestSearchHandlesNilTitle(t *testing.T) {
	summary := &conversation.Summary{
		Conversation: conversation.Conversation{PublicID: "conv_untitled"},
	}
	got := Search([]*conversation.Summary{summary}, "anything")
	assert.Empty(t, got)
}

// failingConvRepo backs a real conversation.Service so rename and delete
// failures exercise the optimistic rollback path end to end.
type failingConvRepo struct {
	conv      *conversation.Conversation
	summaries []*conversation.Summary
	updateErr error
	deleteErr error
}

func (r *failingConvRepo) Create(_ context.Context, _ *conversation.Conversation) error {
	return nil
}

func (r *failingConvRepo) FindByPublicID(_ context.Context, _ string) (*conversation.Conversation, error) {
	return r.conv, nil
}

func (r *failingConvRepo) Update(_ context.Context, _ *conversation.Conversation) error {
	return r.updateErr
}

func (r *failingConvRepo) Delete(_ context.Context, _ uint) error {
	return r.deleteErr
}

func (r *failingConvRepo) ListSummaries(_ context.Context, _ string) ([]*conversation.Summary, error) {
	return r.summaries, nil
}

type noopMessageRepo struct{}

func (noopMessageRepo) Create(_ context.Context, _ *conversation.Message) error     { return nil }
func (noopMessageRepo) BulkCreate(_ context.Context, _ []*conversation.Message) error { return nil }
func (noopMessageRepo) FindByPublicID(_ context.Context, _ string) (*conversation.Message, error) {
	return nil, nil
}
func (noopMessageRepo) FindByConversationID(_ context.Context, _ uint, _ *query.Pagination) ([]*conversation.Message, error) {
	return nil, nil
}
func (noopMessageRepo) FindRecent(_ context.Context, _ uint, _ int) ([]*conversation.Message, error) {
	return nil, nil
}
func (noopMessageRepo) Count(_ context.Context, _ *conversation.MessageFilter) (int64, error) {
	return 0, nil
}
func (noopMessageRepo) Update(_ context.Context, _ *conversation.Message) error { return nil }
func (noopMessageRepo) Delete(_ context.Context, _ uint) error                  { return nil }
func (noopMessageRepo) DeleteByConversationID(_ context.Context, _ uint) (int64, error) {
	return 0, nil
}

func newRollbackFixture(t *testing.T) (*Service, *failingConvRepo) {
	t.Helper()

	oldTitle := "Fractions intro"
	conv := &conversation.Conversation{
		ID:       1,
		PublicID: "conv_abc123",
		OwnerID:  "teacher_1",
		Title:    &oldTitle,
	}
	repo := &failingConvRepo{
		conv: conv,
		summaries: []*conversation.Summary{
			{Conversation: *conv},
		},
	}
	cache := querycache.New(time.Minute)
	svc := NewService(cache, conversation.NewService(repo, noopMessageRepo{}))
	return svc, repo
}

func TestRenameFailureRollsBackCachedTitle(t *testing.T) {
	svc, repo := newRollbackFixture(t)
	ctx := context.Background()

	primed, err := svc.List(ctx, "teacher_1")
	require.NoError(t, err)
	require.Len(t, primed, 1)

	repo.updateErr = errors.New("connection reset")
	err = svc.Rename(ctx, "teacher_1", "conv_abc123", "Decimals intro")
	require.Error(t, err)

	after, err := svc.List(ctx, "teacher_1")
	require.NoError(t, err)
	require.Len(t, after, 1)
	require.NotNil(t, after[0].Title)
	assert.Equal(t, "Fractions intro", *after[0].Title)
}

func TestDeleteFailureKeepsConversationListed(t *testing.T) {
	svc, repo := newRollbackFixture(t)
	ctx := context.Background()

	_, err := svc.List(ctx, "teacher_1")
	require.NoError(t, err)

	repo.deleteErr = errors.New("connection reset")
	err = svc.Delete(ctx, "teacher_1", "conv_abc123")
	require.Error(t, err)

	after, err := svc.List(ctx, "teacher_1")
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "conv_abc123", after[0].PublicID)
}
