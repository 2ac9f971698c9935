package chatsession

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhall/chat-api/internal/config"
	"studyhall/chat-api/internal/domain/conversation"
	"studyhall/chat-api/internal/domain/tokenusage"
	"studyhall/chat-api/internal/infrastructure/completion"
	"studyhall/chat-api/internal/sync/querycache"
	"studyhall/chat-api/internal/utils/platformerrors"
)

// ===============================================
// Fakes
// ===============================================

type fakeStore struct {
	nextID    uint
	created   []*conversation.Conversation
	appended  []*conversation.Message
	createErr error
	appendErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1}
}

func (s *fakeStore) CreateConversationWithInput(_ context.Context, input conversation.CreateConversationInput) (*conversation.Conversation, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	conv := conversation.NewConversation(fmt.Sprintf("conv_test%010d", s.nextID), input.OwnerID, input.Title, input.Metadata)
	conv.ID = s.nextID
	s.nextID++
	s.created = append(s.created, conv)
	return conv, nil
}

func (s *fakeStore) GetConversationByPublicIDAndOwner(_ context.Context, publicID, ownerID string) (*conversation.Conversation, error) {
	for _, conv := range s.created {
		if conv.PublicID == publicID && conv.OwnerID == ownerID {
			return conv, nil
		}
	}
	return nil, platformerrors.NewError(context.Background(), platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "conversation not found", nil, "test")
}

func (s *fakeStore) AppendMessages(_ context.Context, conv *conversation.Conversation, msgs []*conversation.Message) ([]*conversation.Message, error) {
	if s.appendErr != nil {
		return nil, s.appendErr
	}
	for _, msg := range msgs {
		msg.ConversationID = conv.ID
	}
	s.appended = append(s.appended, msgs...)
	return msgs, nil
}

type fakeUsage struct {
	records []*tokenusage.TokenUsage
}

func (u *fakeUsage) RecordUsage(_ context.Context, usage *tokenusage.TokenUsage) error {
	u.records = append(u.records, usage)
	return nil
}

// fakeCompleter replays a scripted sequence of deltas.
type fakeCompleter struct {
	deltas  []completion.Delta
	failAt  int // fail after delivering this many deltas; -1 never
	started chan struct{}
	release chan struct{}
}

func newFakeCompleter(deltas ...completion.Delta) *fakeCompleter {
	return &fakeCompleter{deltas: deltas, failAt: -1}
}

func (c *fakeCompleter) StreamChatCompletion(_ context.Context, _ openai.ChatCompletionRequest, onDelta func(completion.Delta) error, _ ...completion.StreamOption) (*completion.Result, error) {
	if c.started != nil {
		close(c.started)
	}
	var content, reasoning string
	for i, delta := range c.deltas {
		if c.failAt >= 0 && i == c.failAt {
			return nil, errors.New("stream interrupted")
		}
		if err := onDelta(delta); err != nil {
			return nil, err
		}
		content += delta.Content
		reasoning += delta.Reasoning
	}
	if c.release != nil {
		<-c.release
	}
	return &completion.Result{
		Content:   content,
		Reasoning: reasoning,
		Usage:     completion.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}, nil
}

func newTestSession(store *fakeStore, usage *fakeUsage, completer Completer) *Session {
	profiles := config.DefaultPromptProfiles()
	cache := querycache.New(time.Minute)
	return NewSession(DefaultSessionKey, "user_1", "", store, usage, completer, cache, profiles.Resolve(""), "gpt-4o-mini")
}

// ===============================================
// Tests
// ===============================================

func TestSubmitRejectsEmptyText(t *testing.T) {
	session := newTestSession(newFakeStore(), &fakeUsage{}, newFakeCompleter())

	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "whitespace only", text: "   \n\t  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := session.Submit(context.Background(), tt.text, nil)
			require.Error(t, err)
			assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
			assert.Empty(t, session.Turns())
			assert.Equal(t, StateIdle, session.State())
		})
	}
}

func TestSubmitFirstMessageCreatesConversationAndStreams(t *testing.T) {
	store := newFakeStore()
	usage := &fakeUsage{}
	completer := newFakeCompleter(
		completion.Delta{Content: "A fraction "},
		completion.Delta{Content: "is part of a whole."},
		completion.Delta{Reasoning: "simple definition first"},
	)
	session := newTestSession(store, usage, completer)

	var streamed []completion.Delta
	turn, err := session.Submit(context.Background(), "Explain fractions", func(delta completion.Delta) {
		streamed = append(streamed, delta)
	})
	require.NoError(t, err)

	// Conversation created with a placeholder title from the text
	require.Len(t, store.created, 1)
	require.NotNil(t, store.created[0].Title)
	assert.Equal(t, "Explain fractions", *store.created[0].Title)
	assert.Equal(t, store.created[0].PublicID, session.ConversationID())

	// Both rows persisted, user first
	require.Len(t, store.appended, 2)
	assert.Equal(t, conversation.SenderUser, store.appended[0].Sender)
	assert.Equal(t, "Explain fractions", store.appended[0].Content)
	assert.Equal(t, conversation.SenderAssistant, store.appended[1].Sender)
	assert.Equal(t, "A fraction is part of a whole.", store.appended[1].Content)

	// Reasoning stayed on its own part, never in the answer text
	assert.Equal(t, "A fraction is part of a whole.", turn.Text)
	assert.Equal(t, "simple definition first", turn.Reasoning)

	assert.Len(t, streamed, 3)
	assert.Equal(t, StateIdle, session.State())

	require.Len(t, usage.records, 1)
	assert.Equal(t, 30, usage.records[0].TotalTokens)
}

func TestSubmitWhileInFlightIsRejected(t *testing.T) {
	store := newFakeStore()
	completer := newFakeCompleter(completion.Delta{Content: "thinking..."})
	completer.started = make(chan struct{})
	completer.release = make(chan struct{})
	session := newTestSession(store, &fakeUsage{}, completer)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = session.Submit(context.Background(), "first question", nil)
	}()

	<-completer.started
	// Wait for the first delta so the session is demonstrably streaming
	deadline := time.Now().Add(time.Second)
	for session.State() != StateStreaming && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	_, err := session.Submit(context.Background(), "second question", nil)
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict))

	close(completer.release)
	<-done
}

func TestSessionContinuityAcrossIDRebind(t *testing.T) {
	store := newFakeStore()
	completer := newFakeCompleter(completion.Delta{Content: "answer"})
	session := newTestSession(store, &fakeUsage{}, completer)

	_, err := session.Submit(context.Background(), "Explain fractions", nil)
	require.NoError(t, err)

	// The user turn submitted before the id existed is neither cleared
	// nor duplicated after the rebind.
	turns := session.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, conversation.SenderUser, turns[0].Role)
	assert.Equal(t, "Explain fractions", turns[0].Text)
	assert.Equal(t, conversation.SenderAssistant, turns[1].Role)
	assert.NotEmpty(t, session.ConversationID())
}

func TestMidStreamFailureKeepsPartialContent(t *testing.T) {
	store := newFakeStore()
	completer := newFakeCompleter(
		completion.Delta{Content: "partial "},
		completion.Delta{Content: "answer"},
	)
	completer.failAt = 1
	session := newTestSession(store, &fakeUsage{}, completer)

	turn, err := session.Submit(context.Background(), "question", nil)
	require.Error(t, err)

	// Partial content stays visible with the turn marked failed
	require.NotNil(t, turn)
	assert.Equal(t, "partial ", turn.Text)
	assert.True(t, turn.Failed)
	assert.Equal(t, StateError, session.State())

	turns := session.Turns()
	require.Len(t, turns, 2)
	assert.True(t, turns[1].Failed)
}

func TestResubmitAfterErrorIsAllowed(t *testing.T) {
	store := newFakeStore()
	failing := newFakeCompleter(completion.Delta{Content: "x"})
	failing.failAt = 0
	session := newTestSession(store, &fakeUsage{}, failing)

	_, err := session.Submit(context.Background(), "question", nil)
	require.Error(t, err)
	assert.Equal(t, StateError, session.State())

	session.completer = newFakeCompleter(completion.Delta{Content: "recovered answer"})
	turn, err := session.Submit(context.Background(), "question", nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered answer", turn.Text)
	assert.Equal(t, StateIdle, session.State())
}

func TestSwitchConversationClearsTurnsAndGatesStaleDeltas(t *testing.T) {
	store := newFakeStore()
	completer := newFakeCompleter(completion.Delta{Content: "late delta"})
	completer.started = make(chan struct{})
	completer.release = make(chan struct{})
	session := newTestSession(store, &fakeUsage{}, completer)

	// Pre-create the target so finalize can resolve it
	other, err := store.CreateConversationWithInput(context.Background(), conversation.CreateConversationInput{OwnerID: "user_1"})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = session.Submit(context.Background(), "first question", nil)
	}()

	<-completer.started
	session.SwitchConversation(other.PublicID)

	close(completer.release)
	<-done

	// The new session state never saw the abandoned stream
	assert.Equal(t, other.PublicID, session.ConversationID())
	assert.Empty(t, session.Turns())
	assert.Equal(t, StateIdle, session.State())
}

func TestSwitchMidStreamStillPersistsAbandonedExchange(t *testing.T) {
	store := newFakeStore()
	completer := newFakeCompleter(completion.Delta{Content: "the answer"})
	completer.started = make(chan struct{})
	completer.release = make(chan struct{})
	session := newTestSession(store, &fakeUsage{}, completer)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = session.Submit(context.Background(), "first question", nil)
	}()

	<-completer.started
	// Navigate to the new-chat view while the response is still streaming
	session.SwitchConversation("")

	close(completer.release)
	<-done

	// The abandoned exchange persists against its original conversation
	// with the text the user actually submitted
	require.Len(t, store.created, 1)
	require.Len(t, store.appended, 2)
	assert.Equal(t, conversation.SenderUser, store.appended[0].Sender)
	assert.Equal(t, "first question", store.appended[0].Content)
	assert.Equal(t, conversation.SenderAssistant, store.appended[1].Sender)
	assert.Equal(t, "the answer", store.appended[1].Content)

	// The new session state stayed untouched
	assert.Equal(t, "", session.ConversationID())
	assert.Empty(t, session.Turns())
	assert.Equal(t, StateIdle, session.State())
}

func TestRegenerateDiscardsTrailingTurns(t *testing.T) {
	store := newFakeStore()
	session := newTestSession(store, &fakeUsage{}, newFakeCompleter(completion.Delta{Content: "first answer"}))

	_, err := session.Submit(context.Background(), "first question", nil)
	require.NoError(t, err)

	session.completer = newFakeCompleter(completion.Delta{Content: "second answer"})
	_, err = session.Submit(context.Background(), "second question", nil)
	require.NoError(t, err)
	require.Len(t, session.Turns(), 4)

	// Regenerate the first user turn: everything after it goes away
	session.completer = newFakeCompleter(completion.Delta{Content: "regenerated answer"})
	turn, err := session.Regenerate(context.Background(), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "regenerated answer", turn.Text)

	turns := session.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "first question", turns[0].Text)
	assert.Equal(t, "regenerated answer", turns[1].Text)
}

func TestRegenerateRejectsAssistantTurn(t *testing.T) {
	store := newFakeStore()
	session := newTestSession(store, &fakeUsage{}, newFakeCompleter(completion.Delta{Content: "answer"}))

	_, err := session.Submit(context.Background(), "question", nil)
	require.NoError(t, err)

	_, err = session.Regenerate(context.Background(), 1, nil)
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestManagerReapsIdleSessionsOnly(t *testing.T) {
	store := newFakeStore()
	profiles := config.DefaultPromptProfiles()
	cache := querycache.New(time.Minute)
	manager := NewManager(store, &fakeUsage{}, newFakeCompleter(), cache, profiles, "gpt-4o-mini")

	stale := manager.Get("user_1", "primary", "")
	stale.mu.Lock()
	stale.lastActive = time.Now().Add(-2 * time.Hour)
	stale.mu.Unlock()

	manager.Get("user_2", "primary", "")

	removed := manager.Reap(time.Hour)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, manager.Len())
}

func TestManagerReturnsSameSessionForSameKey(t *testing.T) {
	store := newFakeStore()
	profiles := config.DefaultPromptProfiles()
	cache := querycache.New(time.Minute)
	manager := NewManager(store, &fakeUsage{}, newFakeCompleter(), cache, profiles, "gpt-4o-mini")

	first := manager.Get("user_1", "", "")
	second := manager.Get("user_1", DefaultSessionKey, "")
	assert.Same(t, first, second)
}

func TestReleaseConversationRebindsToNewChat(t *testing.T) {
	store := newFakeStore()
	profiles := config.DefaultPromptProfiles()
	cache := querycache.New(time.Minute)
	manager := NewManager(store, &fakeUsage{}, newFakeCompleter(completion.Delta{Content: "answer"}), cache, profiles, "gpt-4o-mini")

	active := manager.Get("user_1", "", "")
	_, err := active.Submit(context.Background(), "will be deleted", nil)
	require.NoError(t, err)
	deletedID := active.ConversationID()
	require.NotEmpty(t, deletedID)

	other := manager.Get("user_1", "secondary", "")
	other.SwitchConversation("conv_untouched1")
	foreign := manager.Get("user_2", "", "")
	foreign.SwitchConversation(deletedID)

	// Deleting the active conversation moves its session to the new-chat
	// state; sessions bound elsewhere and other owners stay put
	released := manager.ReleaseConversation("user_1", deletedID)
	assert.Equal(t, 1, released)
	assert.Equal(t, "", active.ConversationID())
	assert.Empty(t, active.Turns())
	assert.Equal(t, StateIdle, active.State())
	assert.Equal(t, "conv_untouched1", other.ConversationID())
	assert.Equal(t, deletedID, foreign.ConversationID())
}
