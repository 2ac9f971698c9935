package conversation

import (
	"context"
	"time"

	"studyhall/chat-api/internal/domain/query"
)

// ===============================================
// Conversation Types
// ===============================================

// SenderRole is the author of a message: exactly one of user or assistant.
type SenderRole string

const (
	SenderUser      SenderRole = "user"
	SenderAssistant SenderRole = "assistant"
)

// Valid reports whether the role is one of the two allowed values.
func (r SenderRole) Valid() bool {
	return r == SenderUser || r == SenderAssistant
}

// ===============================================
// Conversation Structure
// ===============================================

// Conversation is a single chat thread owned by one teacher account.
// OwnerID is immutable after creation; every read and write path verifies
// it against the acting principal.
type Conversation struct {
	ID        uint              `json:"-"`
	PublicID  string            `json:"id"`
	OwnerID   string            `json:"-"`
	Title     *string           `json:"title,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Message is one persisted turn of a conversation. Append-only except for
// the explicit corrective update path.
type Message struct {
	ID             uint              `json:"-"`
	PublicID       string            `json:"id"`
	ConversationID uint              `json:"-"`
	Sender         SenderRole        `json:"sender"`
	Content        string            `json:"content"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Summary augments a conversation with display data for the history
// browser: last-message preview and message count.
type Summary struct {
	Conversation
	Preview      string `json:"preview"`
	MessageCount int    `json:"message_count"`
}

// ===============================================
// Repositories
// ===============================================

type ConversationRepository interface {
	Create(ctx context.Context, conv *Conversation) error
	FindByPublicID(ctx context.Context, publicID string) (*Conversation, error)
	Update(ctx context.Context, conv *Conversation) error
	Delete(ctx context.Context, id uint) error

	// ListSummaries returns all conversations of the owner with preview and
	// message count, most recently updated first.
	ListSummaries(ctx context.Context, ownerID string) ([]*Summary, error)
}

type MessageFilter struct {
	ID             *uint
	PublicID       *string
	ConversationID *uint
	Sender         *SenderRole
}

type MessageRepository interface {
	Create(ctx context.Context, msg *Message) error
	BulkCreate(ctx context.Context, msgs []*Message) error
	FindByPublicID(ctx context.Context, publicID string) (*Message, error)

	// FindByConversationID returns messages strictly ordered by created_at
	// ascending.
	FindByConversationID(ctx context.Context, conversationID uint, pagination *query.Pagination) ([]*Message, error)

	// FindRecent returns the newest limit messages, still in ascending
	// created_at order.
	FindRecent(ctx context.Context, conversationID uint, limit int) ([]*Message, error)

	Count(ctx context.Context, filter *MessageFilter) (int64, error)
	Update(ctx context.Context, msg *Message) error
	Delete(ctx context.Context, id uint) error

	// DeleteByConversationID removes all child messages; callers invoke it
	// before deleting the conversation row itself.
	DeleteByConversationID(ctx context.Context, conversationID uint) (int64, error)
}

// ===============================================
// Factory Functions
// ===============================================

// NewConversation creates a new conversation owned by ownerID.
func NewConversation(publicID, ownerID string, title *string, metadata map[string]string) *Conversation {
	now := time.Now().UTC()

	if metadata == nil {
		metadata = make(map[string]string)
	}

	return &Conversation{
		PublicID:  publicID,
		OwnerID:   ownerID,
		Title:     title,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewMessage creates an in-memory message ready for persistence.
func NewMessage(publicID string, conversationID uint, sender SenderRole, content string, metadata map[string]string) *Message {
	return &Message{
		PublicID:       publicID,
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}
}
