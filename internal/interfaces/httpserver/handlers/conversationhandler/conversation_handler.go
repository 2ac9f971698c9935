// Package conversationhandler implements the conversation CRUD operations
// behind the HTTP routes.
package conversationhandler

import (
	"context"

	"studyhall/chat-api/internal/domain/conversation"
	"studyhall/chat-api/internal/domain/query"
	conversationrequests "studyhall/chat-api/internal/interfaces/httpserver/requests/conversation"
	conversationresponses "studyhall/chat-api/internal/interfaces/httpserver/responses/conversation"
	"studyhall/chat-api/internal/sync/chatsession"
	"studyhall/chat-api/internal/sync/history"
	"studyhall/chat-api/internal/utils/platformerrors"
)

// ConversationHandler handles conversation-related HTTP requests
type ConversationHandler struct {
	conversations *conversation.Service
	history       *history.Service
	sessions      *chatsession.Manager
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(conversations *conversation.Service, historyService *history.Service, sessions *chatsession.Manager) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		history:       historyService,
		sessions:      sessions,
	}
}

// CreateConversation creates a new conversation
func (h *ConversationHandler) CreateConversation(
	ctx context.Context,
	ownerID string,
	req conversationrequests.CreateConversationRequest,
) (*conversationresponses.ConversationResponse, error) {
	conv, err := h.conversations.CreateConversationWithInput(ctx, conversation.CreateConversationInput{
		OwnerID:  ownerID,
		Title:    req.Title,
		Metadata: req.Metadata,
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to create conversation")
	}
	return conversationresponses.NewConversationResponse(conv), nil
}

// GetConversation retrieves a conversation by public ID
func (h *ConversationHandler) GetConversation(
	ctx context.Context,
	ownerID string,
	conversationID string,
) (*conversationresponses.ConversationResponse, error) {
	conv, err := h.conversations.GetConversationByPublicIDAndOwner(ctx, conversationID, ownerID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to get conversation")
	}
	return conversationresponses.NewConversationResponse(conv), nil
}

// RenameConversation renames a conversation. The optimistic cache overlay is
// applied and rolled back inside the history service.
func (h *ConversationHandler) RenameConversation(
	ctx context.Context,
	ownerID string,
	conversationID string,
	req conversationrequests.RenameConversationRequest,
) error {
	if err := h.history.Rename(ctx, ownerID, conversationID, req.Title); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to rename conversation")
	}
	return nil
}

// DeleteConversation deletes a conversation and all of its messages. Any
// live session bound to it rebinds to the new-chat state so the active view
// does not keep pointing at a dead conversation.
func (h *ConversationHandler) DeleteConversation(
	ctx context.Context,
	ownerID string,
	conversationID string,
) error {
	if err := h.history.Delete(ctx, ownerID, conversationID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to delete conversation")
	}
	if h.sessions != nil {
		h.sessions.ReleaseConversation(ownerID, conversationID)
	}
	return nil
}

// ListMessages returns the messages of an owned conversation in
// chronological order.
func (h *ConversationHandler) ListMessages(
	ctx context.Context,
	ownerID string,
	conversationID string,
	pagination *query.Pagination,
) (*conversationresponses.MessageListResponse, error) {
	conv, err := h.conversations.GetConversationByPublicIDAndOwner(ctx, conversationID, ownerID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to get conversation")
	}

	msgs, err := h.conversations.GetMessages(ctx, conv, pagination)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to list messages")
	}
	return conversationresponses.NewMessageListResponse(msgs), nil
}

// AppendMessages appends messages to an owned conversation.
func (h *ConversationHandler) AppendMessages(
	ctx context.Context,
	ownerID string,
	conversationID string,
	req conversationrequests.AppendMessagesRequest,
) (*conversationresponses.MessageListResponse, error) {
	conv, err := h.conversations.GetConversationByPublicIDAndOwner(ctx, conversationID, ownerID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to get conversation")
	}

	msgs := make([]*conversation.Message, 0, len(req.Messages))
	for _, input := range req.Messages {
		msgs = append(msgs, conversation.NewMessage("", conv.ID, conversation.SenderRole(input.Sender), input.Content, input.Metadata))
	}

	created, err := h.conversations.AppendMessages(ctx, conv, msgs)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to append messages")
	}
	return conversationresponses.NewMessageListResponse(created), nil
}

// UpdateMessage edits a message's content.
func (h *ConversationHandler) UpdateMessage(
	ctx context.Context,
	ownerID string,
	conversationID string,
	messageID string,
	req conversationrequests.UpdateMessageRequest,
) (*conversationresponses.MessageResponse, error) {
	conv, err := h.conversations.GetConversationByPublicIDAndOwner(ctx, conversationID, ownerID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to get conversation")
	}

	msg, err := h.conversations.UpdateMessage(ctx, conv, messageID, req.Content)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to update message")
	}
	return conversationresponses.NewMessageResponse(msg), nil
}

// DeleteMessage removes a message from an owned conversation.
func (h *ConversationHandler) DeleteMessage(
	ctx context.Context,
	ownerID string,
	conversationID string,
	messageID string,
) error {
	conv, err := h.conversations.GetConversationByPublicIDAndOwner(ctx, conversationID, ownerID)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to get conversation")
	}

	if err := h.conversations.DeleteMessage(ctx, conv, messageID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to delete message")
	}
	return nil
}
