package conversation

import (
	"context"
	"strings"

	"studyhall/chat-api/internal/domain/query"
	"studyhall/chat-api/internal/infrastructure/logger"
	"studyhall/chat-api/internal/utils/idgen"
	"studyhall/chat-api/internal/utils/platformerrors"
)

// Service handles business logic for conversations and their messages
type Service struct {
	repo      ConversationRepository
	messages  MessageRepository
	validator *Validator
}

// NewService creates a new conversation service
func NewService(repo ConversationRepository, messages MessageRepository) *Service {
	return &Service{
		repo:      repo,
		messages:  messages,
		validator: NewValidator(nil), // Use default config
	}
}

// ===============================================
// Core CRUD Operations
// ===============================================

// CreateConversation validates and persists a conversation
func (s *Service) CreateConversation(ctx context.Context, conv *Conversation) (*Conversation, error) {
	if err := s.validator.ValidateConversation(conv); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "conversation validation failed", err, "4f6c1a2e-9b3d-4d78-8a51-0c2e7f9d1b64")
	}

	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create conversation")
	}

	return conv, nil
}

// GetConversationByPublicIDAndOwner retrieves a conversation by public ID and
// validates ownership. An ownership miss reads as not-found so callers never
// learn whether a foreign conversation exists.
func (s *Service) GetConversationByPublicIDAndOwner(ctx context.Context, publicID, ownerID string) (*Conversation, error) {
	if err := s.validator.ValidateConversationID(publicID); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid conversation ID", err, "8d1f4b7a-2c5e-4a90-b3d6-1e8f0a7c5d23")
	}

	conv, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "conversation not found")
	}

	if conv.OwnerID != ownerID {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "conversation not found", nil, "5a9e2d1c-7b4f-4e82-9c0d-3f6a8b1e4d57")
	}

	return conv, nil
}

// UpdateConversation validates and persists conversation changes
func (s *Service) UpdateConversation(ctx context.Context, conv *Conversation) (*Conversation, error) {
	if err := s.validator.ValidateConversation(conv); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "conversation validation failed", err, "2b7d9e4a-1f6c-4b35-8d0a-9c3e5f7a2b81")
	}

	if err := s.repo.Update(ctx, conv); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update conversation")
	}

	return conv, nil
}

// ===============================================
// Business Logic Operations (High-level)
// ===============================================

// CreateConversationInput represents the input for creating a conversation
type CreateConversationInput struct {
	OwnerID  string
	Title    *string
	Metadata map[string]string
}

// CreateConversationWithInput creates a new conversation, generating its
// public id. A nil title is allowed; the first user message later supplies
// a placeholder via PlaceholderTitle.
func (s *Service) CreateConversationWithInput(ctx context.Context, input CreateConversationInput) (*Conversation, error) {
	publicID, err := idgen.GenerateSecureID("conv", 16)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate conversation ID")
	}

	conv := NewConversation(publicID, input.OwnerID, input.Title, input.Metadata)
	return s.CreateConversation(ctx, conv)
}

// RenameConversation updates the title after an ownership check
func (s *Service) RenameConversation(ctx context.Context, ownerID, publicID, title string) (*Conversation, error) {
	conv, err := s.GetConversationByPublicIDAndOwner(ctx, publicID, ownerID)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "title cannot be empty", nil, "6e3a8c5d-4b2f-4d91-a7e0-8f1b9d6c3a42")
	}

	conv.Title = &trimmed
	return s.UpdateConversation(ctx, conv)
}

// DeleteConversation removes the conversation and all of its messages.
// Child messages go first so the foreign key constraint always holds.
func (s *Service) DeleteConversation(ctx context.Context, ownerID, publicID string) error {
	conv, err := s.GetConversationByPublicIDAndOwner(ctx, publicID, ownerID)
	if err != nil {
		return err
	}

	if _, err := s.messages.DeleteByConversationID(ctx, conv.ID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete conversation messages")
	}

	if err := s.repo.Delete(ctx, conv.ID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete conversation")
	}

	return nil
}

// ListSummaries returns the owner's conversations with preview data,
// most recently updated first.
func (s *Service) ListSummaries(ctx context.Context, ownerID string) ([]*Summary, error) {
	summaries, err := s.repo.ListSummaries(ctx, ownerID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list conversations")
	}
	return summaries, nil
}

// ===============================================
// Message Operations
// ===============================================

// AppendMessages persists messages to a conversation and bumps its
// updated_at to the newest message's timestamp.
func (s *Service) AppendMessages(ctx context.Context, conv *Conversation, msgs []*Message) ([]*Message, error) {
	if len(msgs) == 0 {
		return msgs, nil
	}

	for _, msg := range msgs {
		if msg.PublicID == "" {
			publicID, err := idgen.GenerateSecureID("msg", 16)
			if err != nil {
				return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate message ID")
			}
			msg.PublicID = publicID
		}
		msg.ConversationID = conv.ID
		if err := s.validator.ValidateMessage(msg); err != nil {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "message validation failed", err, "9c4b7e2a-5d8f-4c16-b3a9-0e6d1f8c4b75")
		}
	}

	if err := s.messages.BulkCreate(ctx, msgs); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to append messages")
	}

	conv.UpdatedAt = msgs[len(msgs)-1].CreatedAt
	if err := s.repo.Update(ctx, conv); err != nil {
		// Messages are already durable; a failed timestamp bump only
		// delays history reordering until the next write.
		log := logger.GetLogger()
		log.Warn().Err(err).
			Str("conversation_id", conv.PublicID).
			Msg("failed to bump conversation updated_at")
	}

	return msgs, nil
}

// GetMessages returns the conversation's messages in created_at order
func (s *Service) GetMessages(ctx context.Context, conv *Conversation, pagination *query.Pagination) ([]*Message, error) {
	msgs, err := s.messages.FindByConversationID(ctx, conv.ID, pagination)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to get messages")
	}
	return msgs, nil
}

// GetRecentMessages returns the newest limit messages for the preview pane
func (s *Service) GetRecentMessages(ctx context.Context, conv *Conversation, limit int) ([]*Message, error) {
	msgs, err := s.messages.FindRecent(ctx, conv.ID, limit)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to get recent messages")
	}
	return msgs, nil
}

// UpdateMessage is the explicit corrective edit path; history is otherwise
// append-only.
func (s *Service) UpdateMessage(ctx context.Context, conv *Conversation, msgPublicID, content string) (*Message, error) {
	msg, err := s.messages.FindByPublicID(ctx, msgPublicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "message not found")
	}
	if msg.ConversationID != conv.ID {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "message not found", nil, "1d8f3c6b-9a2e-4f70-8b5d-7c0e4a9f2d16")
	}

	msg.Content = content
	if err := s.validator.ValidateMessage(msg); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "message validation failed", err, "7a2c5e8d-0b4f-4a63-9d1e-6f3b8c5a0d94")
	}

	if err := s.messages.Update(ctx, msg); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update message")
	}

	return msg, nil
}

// DeleteMessage removes a single message from a conversation
func (s *Service) DeleteMessage(ctx context.Context, conv *Conversation, msgPublicID string) error {
	msg, err := s.messages.FindByPublicID(ctx, msgPublicID)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "message not found")
	}
	if msg.ConversationID != conv.ID {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "message not found", nil, "3e6a9d2f-8c1b-4e57-a0d4-5b7f2c8e6a31")
	}

	if err := s.messages.Delete(ctx, msg.ID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete message")
	}

	return nil
}

// ===============================================
// Helpers
// ===============================================

// PlaceholderTitle derives the generated placeholder title from the first
// user message: the first 60 characters broken at a word boundary.
func PlaceholderTitle(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "New Conversation"
	}
	if len(trimmed) <= 60 {
		return trimmed
	}
	truncated := trimmed[:60]
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > 30 {
		return trimmed[:lastSpace] + "..."
	}
	return truncated + "..."
}
