package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhall/chat-api/internal/domain/query"
	"studyhall/chat-api/internal/utils/platformerrors"
)

// ===============================================
// In-memory fakes
// ===============================================

type fakeConversationRepo struct {
	byID       map[uint]*Conversation
	byPublicID map[string]*Conversation
	nextID     uint
	deleted    []uint
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		byID:       make(map[uint]*Conversation),
		byPublicID: make(map[string]*Conversation),
		nextID:     1,
	}
}

func (r *fakeConversationRepo) Create(_ context.Context, conv *Conversation) error {
	conv.ID = r.nextID
	r.nextID++
	r.byID[conv.ID] = conv
	r.byPublicID[conv.PublicID] = conv
	return nil
}

func (r *fakeConversationRepo) FindByPublicID(_ context.Context, publicID string) (*Conversation, error) {
	conv, ok := r.byPublicID[publicID]
	if !ok {
		return nil, platformerrors.NewError(context.Background(), platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "conversation not found", nil, "test")
	}
	return conv, nil
}

func (r *fakeConversationRepo) Update(_ context.Context, conv *Conversation) error {
	r.byID[conv.ID] = conv
	r.byPublicID[conv.PublicID] = conv
	return nil
}

func (r *fakeConversationRepo) Delete(_ context.Context, id uint) error {
	conv, ok := r.byID[id]
	if !ok {
		return platformerrors.NewError(context.Background(), platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "conversation not found", nil, "test")
	}
	delete(r.byPublicID, conv.PublicID)
	delete(r.byID, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *fakeConversationRepo) ListSummaries(_ context.Context, ownerID string) ([]*Summary, error) {
	var out []*Summary
	for _, conv := range r.byID {
		if conv.OwnerID == ownerID {
			out = append(out, &Summary{Conversation: *conv})
		}
	}
	return out, nil
}

type fakeMessageRepo struct {
	byID        map[uint]*Message
	nextID      uint
	deletedConv []uint
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{byID: make(map[uint]*Message), nextID: 1}
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *Message) error {
	msg.ID = r.nextID
	r.nextID++
	r.byID[msg.ID] = msg
	return nil
}

func (r *fakeMessageRepo) BulkCreate(ctx context.Context, msgs []*Message) error {
	for _, msg := range msgs {
		if err := r.Create(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeMessageRepo) FindByPublicID(_ context.Context, publicID string) (*Message, error) {
	for _, msg := range r.byID {
		if msg.PublicID == publicID {
			return msg, nil
		}
	}
	return nil, platformerrors.NewError(context.Background(), platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "message not found", nil, "test")
}

func (r *fakeMessageRepo) FindByConversationID(_ context.Context, conversationID uint, _ *query.Pagination) ([]*Message, error) {
	var out []*Message
	for _, msg := range r.byID {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) FindRecent(_ context.Context, conversationID uint, limit int) ([]*Message, error) {
	msgs, _ := r.FindByConversationID(context.Background(), conversationID, nil)
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (r *fakeMessageRepo) Count(_ context.Context, filter *MessageFilter) (int64, error) {
	var n int64
	for _, msg := range r.byID {
		if filter != nil && filter.ConversationID != nil && msg.ConversationID != *filter.ConversationID {
			continue
		}
		n++
	}
	return n, nil
}

func (r *fakeMessageRepo) Update(_ context.Context, msg *Message) error {
	r.byID[msg.ID] = msg
	return nil
}

func (r *fakeMessageRepo) Delete(_ context.Context, id uint) error {
	delete(r.byID, id)
	return nil
}

func (r *fakeMessageRepo) DeleteByConversationID(_ context.Context, conversationID uint) (int64, error) {
	var n int64
	for id, msg := range r.byID {
		if msg.ConversationID == conversationID {
			delete(r.byID, id)
			n++
		}
	}
	r.deletedConv = append(r.deletedConv, conversationID)
	return n, nil
}

func newTestService() (*Service, *fakeConversationRepo, *fakeMessageRepo) {
	convRepo := newFakeConversationRepo()
	msgRepo := newFakeMessageRepo()
	return NewService(convRepo, msgRepo), convRepo, msgRepo
}

// ===============================================
// Tests
// ===============================================

func TestCreateConversationWithInput(t *testing.T) {
	svc, _, _ := newTestService()

	title := "Fractions homework"
	conv, err := svc.CreateConversationWithInput(context.Background(), CreateConversationInput{
		OwnerID: "user_1",
		Title:   &title,
	})
	require.NoError(t, err)

	assert.NotZero(t, conv.ID)
	assert.True(t, len(conv.PublicID) > len("conv_"))
	assert.Equal(t, "conv_", conv.PublicID[:5])
	assert.Equal(t, "user_1", conv.OwnerID)
	require.NotNil(t, conv.Title)
	assert.Equal(t, "Fractions homework", *conv.Title)
}

func TestGetConversationOwnershipMissReadsAsNotFound(t *testing.T) {
	svc, _, _ := newTestService()

	conv, err := svc.CreateConversationWithInput(context.Background(), CreateConversationInput{OwnerID: "user_1"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		ownerID string
		wantErr bool
	}{
		{name: "owner can read", ownerID: "user_1", wantErr: false},
		{name: "foreign owner reads not found", ownerID: "user_2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.GetConversationByPublicIDAndOwner(context.Background(), conv.PublicID, tt.ownerID)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, conv.PublicID, got.PublicID)
		})
	}
}

func TestDeleteConversationRemovesMessagesFirst(t *testing.T) {
	svc, convRepo, msgRepo := newTestService()

	conv, err := svc.CreateConversationWithInput(context.Background(), CreateConversationInput{OwnerID: "user_1"})
	require.NoError(t, err)

	_, err = svc.AppendMessages(context.Background(), conv, []*Message{
		NewMessage("", conv.ID, SenderUser, "hello", nil),
		NewMessage("", conv.ID, SenderAssistant, "hi there", nil),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteConversation(context.Background(), "user_1", conv.PublicID))

	assert.Equal(t, []uint{conv.ID}, msgRepo.deletedConv)
	assert.Empty(t, msgRepo.byID)
	assert.Equal(t, []uint{conv.ID}, convRepo.deleted)
}

func TestAppendMessagesBumpsUpdatedAt(t *testing.T) {
	svc, _, _ := newTestService()

	conv, err := svc.CreateConversationWithInput(context.Background(), CreateConversationInput{OwnerID: "user_1"})
	require.NoError(t, err)

	conv.UpdatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	msg := NewMessage("", conv.ID, SenderUser, "what is a prime number?", nil)
	_, err = svc.AppendMessages(context.Background(), conv, []*Message{msg})
	require.NoError(t, err)

	assert.Equal(t, msg.CreatedAt, conv.UpdatedAt)
	assert.Equal(t, "msg_", msg.PublicID[:4])
}

func TestRenameConversation(t *testing.T) {
	svc, _, _ := newTestService()

	conv, err := svc.CreateConversationWithInput(context.Background(), CreateConversationInput{OwnerID: "user_1"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		title    string
		wantErr  bool
		expected string
	}{
		{name: "valid rename", title: "Algebra review", expected: "Algebra review"},
		{name: "whitespace is trimmed", title: "  Geometry  ", expected: "Geometry"},
		{name: "empty title rejected", title: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.RenameConversation(context.Background(), "user_1", conv.PublicID, tt.title)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			require.NotNil(t, got.Title)
			assert.Equal(t, tt.expected, *got.Title)
		})
	}
}

func TestUpdateMessageRejectsForeignConversation(t *testing.T) {
	svc, _, _ := newTestService()

	convA, err := svc.CreateConversationWithInput(context.Background(), CreateConversationInput{OwnerID: "user_1"})
	require.NoError(t, err)
	convB, err := svc.CreateConversationWithInput(context.Background(), CreateConversationInput{OwnerID: "user_1"})
	require.NoError(t, err)

	msgs, err := svc.AppendMessages(context.Background(), convA, []*Message{
		NewMessage("", convA.ID, SenderUser, "original", nil),
	})
	require.NoError(t, err)

	_, err = svc.UpdateMessage(context.Background(), convB, msgs[0].PublicID, "edited")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	updated, err := svc.UpdateMessage(context.Background(), convA, msgs[0].PublicID, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)
}

func TestPlaceholderTitle(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name:     "short message used verbatim",
			content:  "Help with fractions",
			expected: "Help with fractions",
		},
		{
			name:     "empty message falls back",
			content:  "   ",
			expected: "New Conversation",
		},
		{
			name:     "long message truncated at word boundary",
			content:  "Can you explain how photosynthesis works in plants and why sunlight matters so much",
			expected: "Can you explain how photosynthesis works in plants and why...",
		},
		{
			name:     "exactly sixty characters kept whole",
			content:  "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			expected: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PlaceholderTitle(tt.content))
		})
	}
}
