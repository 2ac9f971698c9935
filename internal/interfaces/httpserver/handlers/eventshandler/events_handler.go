// Package eventshandler streams realtime conversation change batches to the
// client over SSE.
package eventshandler

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"studyhall/chat-api/internal/infrastructure/realtime"
	"studyhall/chat-api/internal/interfaces/httpserver/middlewares"
	"studyhall/chat-api/internal/interfaces/httpserver/responses"
	"studyhall/chat-api/internal/utils/platformerrors"
)

const keepAliveInterval = 30 * time.Second

type EventsHandler struct {
	hub *realtime.Hub
}

func NewEventsHandler(hub *realtime.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream subscribes the caller to their own conversation change feed. Each
// SSE event carries one throttled batch; a comment line keeps idle
// connections open through proxies.
func (h *EventsHandler) Stream(reqCtx *gin.Context, ownerID string) {
	flusher, ok := middlewares.PrepareSSE(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeInternal, "streaming unsupported by connection")
		return
	}

	events, cancel := h.hub.Subscribe(ownerID)
	defer cancel()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := reqCtx.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case batch, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(batch)
			if err != nil {
				continue
			}
			if _, err := reqCtx.Writer.Write([]byte("data: ")); err != nil {
				return
			}
			if _, err := reqCtx.Writer.Write(payload); err != nil {
				return
			}
			if _, err := reqCtx.Writer.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := reqCtx.Writer.Write([]byte(": keep-alive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
