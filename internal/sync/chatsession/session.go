// Package chatsession holds the in-memory streaming chat state machine. A
// session owns an ordered turn log with a stable key, so navigating between
// the new-chat and existing-conversation views never discards in-flight
// streaming state.
package chatsession

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"studyhall/chat-api/internal/config"
	"studyhall/chat-api/internal/domain/conversation"
	"studyhall/chat-api/internal/domain/tokenusage"
	"studyhall/chat-api/internal/infrastructure/completion"
	"studyhall/chat-api/internal/infrastructure/logger"
	"studyhall/chat-api/internal/infrastructure/metrics"
	"studyhall/chat-api/internal/sync/querycache"
	"studyhall/chat-api/internal/utils/platformerrors"
)

// State of the session's lifecycle
type State string

const (
	StateIdle      State = "idle"
	StateAwaiting  State = "awaiting-response"
	StateStreaming State = "streaming"
	StateError     State = "error"
)

// Turn is one role-tagged exchange entry. Reasoning is tracked on its own
// part and never concatenates into the answer text.
type Turn struct {
	Role      conversation.SenderRole `json:"role"`
	Text      string                  `json:"text"`
	Reasoning string                  `json:"reasoning,omitempty"`
	Failed    bool                    `json:"failed,omitempty"`
	StartedAt time.Time               `json:"started_at"`
	EndedAt   time.Time               `json:"ended_at,omitempty"`
}

// HasContent distinguishes "content present" from "no content yet"
func (t *Turn) HasContent() bool {
	return t.Text != "" || t.Reasoning != ""
}

// ConversationStore is the persistence surface the session needs
type ConversationStore interface {
	CreateConversationWithInput(ctx context.Context, input conversation.CreateConversationInput) (*conversation.Conversation, error)
	GetConversationByPublicIDAndOwner(ctx context.Context, publicID, ownerID string) (*conversation.Conversation, error)
	AppendMessages(ctx context.Context, conv *conversation.Conversation, msgs []*conversation.Message) ([]*conversation.Message, error)
}

// UsageRecorder records token accounting after a completion
type UsageRecorder interface {
	RecordUsage(ctx context.Context, usage *tokenusage.TokenUsage) error
}

// Completer opens the token stream
type Completer interface {
	StreamChatCompletion(ctx context.Context, request openai.ChatCompletionRequest, onDelta func(completion.Delta) error, opts ...completion.StreamOption) (*completion.Result, error)
}

// Session is one user's active chat session. Safe for concurrent use.
type Session struct {
	mu sync.Mutex

	key            string
	ownerID        string
	conversationID string
	state          State
	turns          []*Turn
	gen            uint64
	lastActive     time.Time

	store     ConversationStore
	usage     UsageRecorder
	completer Completer
	cache     *querycache.Cache
	profile   config.PromptProfile
	model     string
}

func NewSession(key, ownerID, conversationID string, store ConversationStore, usage UsageRecorder, completer Completer, cache *querycache.Cache, profile config.PromptProfile, model string) *Session {
	return &Session{
		key:            key,
		ownerID:        ownerID,
		conversationID: conversationID,
		state:          StateIdle,
		store:          store,
		usage:          usage,
		completer:      completer,
		cache:          cache,
		profile:        profile,
		model:          model,
		lastActive:     time.Now(),
	}
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ConversationID returns the bound conversation id, empty for a fresh session
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Turns returns a copy of the turn log
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	for i, turn := range s.turns {
		out[i] = *turn
	}
	return out
}

// LastActive reports when the session last accepted work
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Submit appends a user turn and streams the assistant's response, invoking
// onDelta for every accepted increment. Empty text and non-idle states are
// rejected before anything mutates. On a fresh session the conversation is
// created first and the session rebinds to its id without dropping turns.
func (s *Session) Submit(ctx context.Context, text string, onDelta func(completion.Delta)) (*Turn, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerSync, platformerrors.ErrorTypeValidation,
			"cannot submit empty message", nil, "e5b2a8f1-4c7d-4e93-a0b6-9d3f6c1e8a57")
	}

	s.mu.Lock()
	if s.state == StateAwaiting || s.state == StateStreaming {
		s.mu.Unlock()
		return nil, platformerrors.NewError(ctx, platformerrors.LayerSync, platformerrors.ErrorTypeConflict,
			"a response is already in flight", nil, "7f4c1d9a-2e8b-4f56-9a3c-5b0e8d2f7c14")
	}

	// The user turn renders immediately, before any server confirmation
	userTurn := &Turn{Role: conversation.SenderUser, Text: trimmed, StartedAt: time.Now().UTC()}
	s.turns = append(s.turns, userTurn)
	s.state = StateAwaiting
	s.lastActive = time.Now()
	gen := s.gen
	fresh := s.conversationID == ""
	s.mu.Unlock()

	if fresh {
		if err := s.createAndBindConversation(ctx, trimmed, gen); err != nil {
			s.fail(gen, nil)
			return nil, err
		}
	}

	return s.stream(ctx, gen, trimmed, onDelta)
}

func (s *Session) createAndBindConversation(ctx context.Context, firstMessage string, gen uint64) error {
	title := conversation.PlaceholderTitle(firstMessage)
	conv, err := s.store.CreateConversationWithInput(ctx, conversation.CreateConversationInput{
		OwnerID: s.ownerID,
		Title:   &title,
	})
	if err != nil {
		return err
	}

	metrics.ConversationsCreatedTotal.Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		// The session moved on mid-create; leave the new state alone
		return nil
	}
	// Rebind without touching the turn log
	s.conversationID = conv.PublicID
	return nil
}

func (s *Session) stream(ctx context.Context, gen uint64, userText string, onDelta func(completion.Delta)) (*Turn, error) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return nil, platformerrors.NewError(ctx, platformerrors.LayerSync, platformerrors.ErrorTypeStale,
			"session was switched before streaming began", nil, "b8e5c2a9-6f1d-4b37-8c4a-0d7f3e9b5c28")
	}
	assistantTurn := &Turn{Role: conversation.SenderAssistant, StartedAt: time.Now().UTC()}
	s.turns = append(s.turns, assistantTurn)
	conversationID := s.conversationID
	request := s.buildRequestLocked()
	s.mu.Unlock()

	start := time.Now()
	result, err := s.completer.StreamChatCompletion(ctx, request, func(delta completion.Delta) error {
		return s.ingest(gen, assistantTurn, delta, onDelta)
	})
	if err != nil {
		metrics.CompletionsTotal.WithLabelValues(s.model, "error").Inc()
		s.fail(gen, assistantTurn)
		return assistantTurn, err
	}

	metrics.CompletionsTotal.WithLabelValues(s.model, "ok").Inc()
	metrics.CompletionDuration.WithLabelValues(s.model).Observe(time.Since(start).Seconds())

	return s.finalize(ctx, gen, conversationID, userText, assistantTurn, result, start)
}

// ingest appends one delta. Every chunk is gated on whether it is still for
// the active generation; stale deltas are dropped silently.
func (s *Session) ingest(gen uint64, turn *Turn, delta completion.Delta, onDelta func(completion.Delta)) error {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return nil
	}
	turn.Text += delta.Content
	turn.Reasoning += delta.Reasoning
	s.state = StateStreaming
	s.lastActive = time.Now()
	s.mu.Unlock()

	if onDelta != nil {
		onDelta(delta)
	}
	return nil
}

// finalize persists the completed exchange, records usage, invalidates the
// message and conversation cache keys, and returns the session to idle.
// userText is the submitted text, carried through the stream rather than
// re-read from the turn log: a mid-stream switch clears s.turns, and the
// abandoned exchange must still persist with its original content.
func (s *Session) finalize(ctx context.Context, gen uint64, conversationID, userText string, turn *Turn, result *completion.Result, start time.Time) (*Turn, error) {
	s.mu.Lock()
	turn.EndedAt = time.Now().UTC()
	if s.gen == gen {
		s.state = StateIdle
		s.lastActive = time.Now()
	}
	// On a generation mismatch the session switched away mid-stream; the
	// exchange still persists below without touching the new state.
	s.mu.Unlock()

	log := logger.GetLogger()

	conv, err := s.store.GetConversationByPublicIDAndOwner(ctx, conversationID, s.ownerID)
	if err != nil {
		return turn, err
	}

	msgs := []*conversation.Message{
		conversation.NewMessage("", conv.ID, conversation.SenderUser, userText, nil),
		conversation.NewMessage("", conv.ID, conversation.SenderAssistant, result.Content, map[string]string{
			"model":       s.model,
			"duration_ms": time.Since(start).Truncate(time.Millisecond).String(),
		}),
	}
	if _, err := s.store.AppendMessages(ctx, conv, msgs); err != nil {
		return turn, err
	}

	if s.usage != nil {
		convID := conversationID
		record := &tokenusage.TokenUsage{
			OwnerID:          s.ownerID,
			ConversationID:   &convID,
			Model:            s.model,
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
			Stream:           true,
		}
		if err := s.usage.RecordUsage(ctx, record); err != nil {
			log.Warn().Err(err).Msg("failed to record token usage")
		}
		metrics.CompletionTokensTotal.WithLabelValues(s.model, "prompt").Add(float64(result.Usage.PromptTokens))
		metrics.CompletionTokensTotal.WithLabelValues(s.model, "completion").Add(float64(result.Usage.CompletionTokens))
	}

	// Invalidation strictly after the rows are confirmed durable
	if s.cache != nil {
		s.cache.Invalidate(querycache.MessagesKey(conversationID))
		s.cache.Invalidate(querycache.ConversationsKey(s.ownerID))
	}

	return turn, nil
}

// fail marks the turn and moves to the error state. Partial assistant
// content stays visible; the turn is never silently discarded.
func (s *Session) fail(gen uint64, turn *Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	if turn != nil {
		turn.Failed = true
		turn.EndedAt = time.Now().UTC()
	}
	s.state = StateError
	s.lastActive = time.Now()
}

// SwitchConversation rebinds the session to another conversation, clearing
// the turn log and resetting to idle. An in-flight stream for the abandoned
// turn completes or fails without touching the new state.
func (s *Session) SwitchConversation(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.conversationID = conversationID
	s.turns = nil
	s.state = StateIdle
	s.lastActive = time.Now()
}

// Regenerate discards the turns from turnIndex onward and resubmits that
// user turn's text. Trailing turns are not restored.
func (s *Session) Regenerate(ctx context.Context, turnIndex int, onDelta func(completion.Delta)) (*Turn, error) {
	s.mu.Lock()
	if turnIndex < 0 || turnIndex >= len(s.turns) {
		s.mu.Unlock()
		return nil, platformerrors.NewError(ctx, platformerrors.LayerSync, platformerrors.ErrorTypeValidation,
			"turn index out of range", nil, "4d9b7e2c-8a5f-4d61-b3e0-6c1f9a4d7b35")
	}
	target := s.turns[turnIndex]
	if target.Role != conversation.SenderUser {
		s.mu.Unlock()
		return nil, platformerrors.NewError(ctx, platformerrors.LayerSync, platformerrors.ErrorTypeValidation,
			"only user turns can be regenerated", nil, "8a3f6c1d-5e9b-4a27-9d4f-2b7e0c8a5f63")
	}
	if s.state == StateAwaiting || s.state == StateStreaming {
		s.mu.Unlock()
		return nil, platformerrors.NewError(ctx, platformerrors.LayerSync, platformerrors.ErrorTypeConflict,
			"a response is already in flight", nil, "1e6d9a4b-7c2f-4e58-a0b3-8f5c2d9e6a71")
	}

	text := target.Text
	s.turns = s.turns[:turnIndex]
	s.state = StateIdle
	s.mu.Unlock()

	return s.Submit(ctx, text, onDelta)
}

func (s *Session) buildRequestLocked() openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(s.turns)+1)
	if s.profile.Instruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: s.profile.Instruction,
		})
	}
	for _, turn := range s.turns {
		if turn.Role == conversation.SenderAssistant && !turn.HasContent() {
			continue
		}
		role := openai.ChatMessageRoleUser
		if turn.Role == conversation.SenderAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}

	request := openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: messages,
	}
	if s.profile.Temperature != nil {
		request.Temperature = *s.profile.Temperature
	}
	if s.profile.MaxTokens != nil {
		request.MaxTokens = *s.profile.MaxTokens
	}
	if s.profile.SearchMode {
		request.Tools = []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "web_search",
				Description: "Search the web for current information",
			},
		}}
	}
	return request
}
