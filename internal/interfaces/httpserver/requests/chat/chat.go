// Package chat holds chat API request bodies.
package chat

// CompletionRequest submits a user message to the active chat session.
// Exactly one of Location or ConversationID may steer which conversation the
// session is bound to before the message streams; with neither, the session
// keeps its current binding (a fresh session creates a conversation on first
// send).
type CompletionRequest struct {
	Message        string `json:"message" binding:"required"`
	Location       string `json:"location,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	SessionKey     string `json:"session_key,omitempty"`
	Profile        string `json:"profile,omitempty"`
	Stream         bool   `json:"stream,omitempty"`
}

// RegenerateRequest re-runs a user turn, discarding everything after it.
type RegenerateRequest struct {
	TurnIndex  int    `json:"turn_index" binding:"min=0"`
	SessionKey string `json:"session_key,omitempty"`
	Stream     bool   `json:"stream,omitempty"`
}

// SwitchRequest rebinds the session to another conversation.
type SwitchRequest struct {
	Location       string `json:"location,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	SessionKey     string `json:"session_key,omitempty"`
}
