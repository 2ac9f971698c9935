// Package chathandler drives the streaming chat session over HTTP. One
// session per owner and session key survives navigation; the handler only
// translates between the wire and the session state machine.
package chathandler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"studyhall/chat-api/internal/infrastructure/completion"
	"studyhall/chat-api/internal/infrastructure/logger"
	"studyhall/chat-api/internal/infrastructure/observability"
	"studyhall/chat-api/internal/interfaces/httpserver/middlewares"
	chatrequests "studyhall/chat-api/internal/interfaces/httpserver/requests/chat"
	chatresponses "studyhall/chat-api/internal/interfaces/httpserver/responses/chat"
	"studyhall/chat-api/internal/interfaces/httpserver/responses"
	"studyhall/chat-api/internal/sync/chatsession"
	"studyhall/chat-api/internal/sync/sessionresolver"
	"studyhall/chat-api/internal/utils/platformerrors"
)

const doneMarker = "[DONE]"

// ChatHandler handles chat completion and session HTTP requests
type ChatHandler struct {
	sessions *chatsession.Manager
}

// NewChatHandler creates a new chat handler
func NewChatHandler(sessions *chatsession.Manager) *ChatHandler {
	return &ChatHandler{sessions: sessions}
}

// Completion submits a message to the owner's chat session. With
// stream=true the response is SSE; otherwise the full turn is returned once
// the stream finishes.
func (h *ChatHandler) Completion(reqCtx *gin.Context, ownerID string, req chatrequests.CompletionRequest) {
	ctx, span := observability.StartSpan(reqCtx.Request.Context(), "chat-api", "ChatHandler.Completion")
	defer span.End()

	observability.AddSpanAttributes(ctx,
		attribute.Bool("chat.stream", req.Stream),
		attribute.String("chat.profile", req.Profile),
	)

	session := h.sessions.Get(ownerID, req.SessionKey, req.Profile)
	if err := h.bindTarget(session, req.Location, req.ConversationID); err != nil {
		responses.HandleError(reqCtx, err, "invalid conversation target")
		return
	}
	observability.AddSpanAttributes(ctx,
		attribute.String("chat.conversation_id", session.ConversationID()),
	)

	if !req.Stream {
		turn, err := session.Submit(ctx, req.Message, nil)
		if err != nil {
			responses.HandleError(reqCtx, err, "completion failed")
			return
		}
		reqCtx.JSON(http.StatusOK, chatresponses.NewCompletionResponse(session.ConversationID(), session.State(), turn))
		return
	}

	flusher, ok := middlewares.PrepareSSE(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeInternal, "streaming unsupported by connection")
		return
	}

	log := logger.GetLogger()
	turn, err := session.Submit(ctx, req.Message, func(delta completion.Delta) {
		event := chatresponses.DeltaEvent{
			Object:         "chat.delta",
			ConversationID: session.ConversationID(),
			Content:        delta.Content,
			Reasoning:      delta.Reasoning,
		}
		if writeErr := writeSSEJSON(reqCtx, flusher, event); writeErr != nil {
			log.Debug().Err(writeErr).Msg("client disconnected mid-stream")
		}
	})

	final := chatresponses.NewCompletionResponse(session.ConversationID(), session.State(), turn)
	if err != nil {
		msg := err.Error()
		final.Error = &msg
	}
	if writeErr := writeSSEJSON(reqCtx, flusher, final); writeErr != nil {
		return
	}
	_ = writeSSEData(reqCtx, flusher, doneMarker)
}

// Regenerate re-runs a user turn, discarding everything after it.
func (h *ChatHandler) Regenerate(reqCtx *gin.Context, ownerID string, req chatrequests.RegenerateRequest) {
	ctx, span := observability.StartSpan(reqCtx.Request.Context(), "chat-api", "ChatHandler.Regenerate")
	defer span.End()

	observability.AddSpanAttributes(ctx, attribute.Int("chat.turn_index", req.TurnIndex))
	session := h.sessions.Get(ownerID, req.SessionKey, "")

	if !req.Stream {
		turn, err := session.Regenerate(ctx, req.TurnIndex, nil)
		if err != nil {
			responses.HandleError(reqCtx, err, "regenerate failed")
			return
		}
		reqCtx.JSON(http.StatusOK, chatresponses.NewCompletionResponse(session.ConversationID(), session.State(), turn))
		return
	}

	flusher, ok := middlewares.PrepareSSE(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeInternal, "streaming unsupported by connection")
		return
	}

	turn, err := session.Regenerate(ctx, req.TurnIndex, func(delta completion.Delta) {
		event := chatresponses.DeltaEvent{
			Object:         "chat.delta",
			ConversationID: session.ConversationID(),
			Content:        delta.Content,
			Reasoning:      delta.Reasoning,
		}
		_ = writeSSEJSON(reqCtx, flusher, event)
	})

	final := chatresponses.NewCompletionResponse(session.ConversationID(), session.State(), turn)
	if err != nil {
		msg := err.Error()
		final.Error = &msg
	}
	if writeErr := writeSSEJSON(reqCtx, flusher, final); writeErr != nil {
		return
	}
	_ = writeSSEData(reqCtx, flusher, doneMarker)
}

// Switch rebinds the session to the conversation named by the request.
func (h *ChatHandler) Switch(reqCtx *gin.Context, ownerID string, req chatrequests.SwitchRequest) {
	session := h.sessions.Get(ownerID, req.SessionKey, "")
	if err := h.bindTarget(session, req.Location, req.ConversationID); err != nil {
		responses.HandleError(reqCtx, err, "invalid conversation target")
		return
	}
	reqCtx.JSON(http.StatusOK, chatresponses.NewSessionResponse(session))
}

// GetSession reports the session's current state and turn log.
func (h *ChatHandler) GetSession(reqCtx *gin.Context, ownerID, sessionKey string) {
	session := h.sessions.Get(ownerID, sessionKey, "")
	reqCtx.JSON(http.StatusOK, chatresponses.NewSessionResponse(session))
}

// bindTarget resolves where the session should point before a submit. A
// location string wins over an explicit id; "new" or an unrecognized
// location means a fresh conversation. No-op when the session is already
// bound to the target.
func (h *ChatHandler) bindTarget(session *chatsession.Session, location, conversationID string) error {
	target := conversationID
	if location != "" {
		if resolved, ok := sessionresolver.Resolve(location); ok {
			target = resolved
		} else {
			target = ""
		}
	} else if conversationID == "" {
		// Nothing requested; keep the current binding
		return nil
	}

	if session.ConversationID() == target {
		return nil
	}
	session.SwitchConversation(target)
	return nil
}

func writeSSEJSON(reqCtx *gin.Context, flusher http.Flusher, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return writeSSEData(reqCtx, flusher, string(data))
}

func writeSSEData(reqCtx *gin.Context, flusher http.Flusher, data string) error {
	if _, err := reqCtx.Writer.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := reqCtx.Writer.Write([]byte(data)); err != nil {
		return err
	}
	if _, err := reqCtx.Writer.Write([]byte("\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
