// Package conversation holds conversation API response DTOs.
package conversation

import (
	"studyhall/chat-api/internal/domain/conversation"
	"studyhall/chat-api/internal/sync/history"
)

// ConversationResponse is the API shape of a single conversation.
type ConversationResponse struct {
	ID        string            `json:"id"`
	Object    string            `json:"object"`
	Title     *string           `json:"title,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt int64             `json:"created_at"`
	UpdatedAt int64             `json:"updated_at"`
}

func NewConversationResponse(conv *conversation.Conversation) *ConversationResponse {
	return &ConversationResponse{
		ID:        conv.PublicID,
		Object:    "conversation",
		Title:     conv.Title,
		Metadata:  conv.Metadata,
		CreatedAt: conv.CreatedAt.Unix(),
		UpdatedAt: conv.UpdatedAt.Unix(),
	}
}

// MessageResponse is the API shape of a single message.
type MessageResponse struct {
	ID        string            `json:"id"`
	Object    string            `json:"object"`
	Sender    string            `json:"sender"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt int64             `json:"created_at"`
}

func NewMessageResponse(msg *conversation.Message) *MessageResponse {
	return &MessageResponse{
		ID:        msg.PublicID,
		Object:    "message",
		Sender:    string(msg.Sender),
		Content:   msg.Content,
		Metadata:  msg.Metadata,
		CreatedAt: msg.CreatedAt.Unix(),
	}
}

// MessageListResponse wraps a message listing.
type MessageListResponse struct {
	Object string             `json:"object"`
	Data   []*MessageResponse `json:"data"`
}

func NewMessageListResponse(msgs []*conversation.Message) *MessageListResponse {
	data := make([]*MessageResponse, 0, len(msgs))
	for _, msg := range msgs {
		data = append(data, NewMessageResponse(msg))
	}
	return &MessageListResponse{Object: "list", Data: data}
}

// SummaryResponse is one history browser entry.
type SummaryResponse struct {
	ID           string  `json:"id"`
	Title        *string `json:"title,omitempty"`
	Preview      string  `json:"preview"`
	MessageCount int     `json:"message_count"`
	CreatedAt    int64   `json:"created_at"`
	UpdatedAt    int64   `json:"updated_at"`
}

func NewSummaryResponse(summary *conversation.Summary) *SummaryResponse {
	return &SummaryResponse{
		ID:           summary.PublicID,
		Title:        summary.Title,
		Preview:      summary.Preview,
		MessageCount: summary.MessageCount,
		CreatedAt:    summary.CreatedAt.Unix(),
		UpdatedAt:    summary.UpdatedAt.Unix(),
	}
}

// SummaryListResponse wraps a flat summary listing.
type SummaryListResponse struct {
	Object string             `json:"object"`
	Data   []*SummaryResponse `json:"data"`
}

func NewSummaryListResponse(summaries []*conversation.Summary) *SummaryListResponse {
	data := make([]*SummaryResponse, 0, len(summaries))
	for _, summary := range summaries {
		data = append(data, NewSummaryResponse(summary))
	}
	return &SummaryListResponse{Object: "list", Data: data}
}

// HistoryBucketResponse is one date-grouped section of the history browser.
type HistoryBucketResponse struct {
	Label string             `json:"label"`
	Items []*SummaryResponse `json:"items"`
}

// HistoryResponse is the grouped history listing.
type HistoryResponse struct {
	Object  string                   `json:"object"`
	Buckets []*HistoryBucketResponse `json:"buckets"`
}

func NewHistoryResponse(buckets []history.Bucket) *HistoryResponse {
	out := make([]*HistoryBucketResponse, 0, len(buckets))
	for _, bucket := range buckets {
		items := make([]*SummaryResponse, 0, len(bucket.Items))
		for _, item := range bucket.Items {
			items = append(items, NewSummaryResponse(item))
		}
		out = append(out, &HistoryBucketResponse{Label: bucket.Label, Items: items})
	}
	return &HistoryResponse{Object: "history", Buckets: out}
}
