// Package chat holds chat API response DTOs, including the SSE event shapes.
package chat

import (
	"studyhall/chat-api/internal/sync/chatsession"
)

// DeltaEvent is one streamed increment.
type DeltaEvent struct {
	Object         string `json:"object"`
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content,omitempty"`
	Reasoning      string `json:"reasoning,omitempty"`
}

// CompletionResponse is the final (or non-streamed) chat response.
type CompletionResponse struct {
	Object         string  `json:"object"`
	ConversationID string  `json:"conversation_id"`
	State          string  `json:"state"`
	Content        string  `json:"content"`
	Reasoning      string  `json:"reasoning,omitempty"`
	Failed         bool    `json:"failed,omitempty"`
	Error          *string `json:"error,omitempty"`
}

func NewCompletionResponse(conversationID string, state chatsession.State, turn *chatsession.Turn) *CompletionResponse {
	resp := &CompletionResponse{
		Object:         "chat.completion",
		ConversationID: conversationID,
		State:          string(state),
	}
	if turn != nil {
		resp.Content = turn.Text
		resp.Reasoning = turn.Reasoning
		resp.Failed = turn.Failed
	}
	return resp
}

// TurnResponse is one session turn.
type TurnResponse struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Reasoning string `json:"reasoning,omitempty"`
	Failed    bool   `json:"failed,omitempty"`
}

// SessionResponse reports the session's current state and turn log.
type SessionResponse struct {
	Object         string         `json:"object"`
	ConversationID string         `json:"conversation_id,omitempty"`
	State          string         `json:"state"`
	Turns          []TurnResponse `json:"turns"`
}

func NewSessionResponse(session *chatsession.Session) *SessionResponse {
	turns := session.Turns()
	out := make([]TurnResponse, 0, len(turns))
	for _, turn := range turns {
		out = append(out, TurnResponse{
			Role:      string(turn.Role),
			Text:      turn.Text,
			Reasoning: turn.Reasoning,
			Failed:    turn.Failed,
		})
	}
	return &SessionResponse{
		Object:         "chat.session",
		ConversationID: session.ConversationID(),
		State:          string(session.State()),
		Turns:          out,
	}
}
