// Package conversation holds conversation API request bodies.
package conversation

// CreateConversationRequest creates a new conversation.
type CreateConversationRequest struct {
	Title    *string           `json:"title,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RenameConversationRequest updates a conversation title.
type RenameConversationRequest struct {
	Title string `json:"title" binding:"required"`
}

// MessageInput is one message to append.
type MessageInput struct {
	Sender   string            `json:"sender" binding:"required,oneof=user assistant"`
	Content  string            `json:"content" binding:"required"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// AppendMessagesRequest appends messages to a conversation.
type AppendMessagesRequest struct {
	Messages []MessageInput `json:"messages" binding:"required,min=1,max=20,dive"`
}

// UpdateMessageRequest edits a message's content.
type UpdateMessageRequest struct {
	Content string `json:"content" binding:"required"`
}
