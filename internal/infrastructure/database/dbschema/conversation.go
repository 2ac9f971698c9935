package dbschema

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"studyhall/chat-api/internal/domain/conversation"
	"studyhall/chat-api/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Conversation{})
	database.RegisterSchemaForAutoMigrate(Message{})
}

// Conversation represents the database schema for conversations
type Conversation struct {
	BaseModel
	PublicID string         `gorm:"type:varchar(50);uniqueIndex;not null"`
	OwnerID  string         `gorm:"type:varchar(100);index:idx_conversations_owner_updated_at;not null"`
	Title    *string        `gorm:"type:varchar(256)"`
	Metadata datatypes.JSON `gorm:"type:jsonb"`

	Messages []Message `gorm:"foreignKey:ConversationID"`
}

// Message represents the database schema for conversation messages
type Message struct {
	ID             uint           `gorm:"primaryKey;autoIncrement"`
	PublicID       string         `gorm:"type:varchar(50);uniqueIndex;not null"`
	ConversationID uint           `gorm:"index:idx_messages_conversation_created_at;not null"`
	Sender         string         `gorm:"type:varchar(20);not null"`
	Content        string         `gorm:"type:text;not null"`
	Metadata       datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"index:idx_messages_conversation_created_at;autoCreateTime"`
}

func metadataToJSON(m map[string]string) datatypes.JSON {
	if len(m) == 0 {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}

func metadataFromJSON(j datatypes.JSON) map[string]string {
	if len(j) == 0 {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(j, &m); err != nil {
		return nil
	}
	return m
}

// NewSchemaConversation creates a database schema from a domain conversation
func NewSchemaConversation(c *conversation.Conversation) *Conversation {
	return &Conversation{
		BaseModel: BaseModel{
			ID:        c.ID,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		},
		PublicID: c.PublicID,
		OwnerID:  c.OwnerID,
		Title:    c.Title,
		Metadata: metadataToJSON(c.Metadata),
	}
}

// EtoD converts database schema to domain conversation (Entity to Domain)
func (c *Conversation) EtoD() *conversation.Conversation {
	return &conversation.Conversation{
		ID:        c.ID,
		PublicID:  c.PublicID,
		OwnerID:   c.OwnerID,
		Title:     c.Title,
		Metadata:  metadataFromJSON(c.Metadata),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// NewSchemaMessage creates a database schema from a domain message
func NewSchemaMessage(m *conversation.Message) *Message {
	return &Message{
		ID:             m.ID,
		PublicID:       m.PublicID,
		ConversationID: m.ConversationID,
		Sender:         string(m.Sender),
		Content:        m.Content,
		Metadata:       metadataToJSON(m.Metadata),
		CreatedAt:      m.CreatedAt,
	}
}

// EtoD converts database schema to domain message (Entity to Domain)
func (m *Message) EtoD() *conversation.Message {
	return &conversation.Message{
		ID:             m.ID,
		PublicID:       m.PublicID,
		ConversationID: m.ConversationID,
		Sender:         conversation.SenderRole(m.Sender),
		Content:        m.Content,
		Metadata:       metadataFromJSON(m.Metadata),
		CreatedAt:      m.CreatedAt,
	}
}
