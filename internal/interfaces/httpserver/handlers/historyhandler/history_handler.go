// Package historyhandler serves the date-grouped history browser.
package historyhandler

import (
	"context"
	"time"

	conversationresponses "studyhall/chat-api/internal/interfaces/httpserver/responses/conversation"
	"studyhall/chat-api/internal/sync/history"
	"studyhall/chat-api/internal/utils/platformerrors"
)

type HistoryHandler struct {
	history *history.Service
}

func NewHistoryHandler(historyService *history.Service) *HistoryHandler {
	return &HistoryHandler{history: historyService}
}

// ListGrouped returns the owner's conversations bucketed by recency
// (Today, Last 7 days, Last 30 days, This year, then one bucket per year).
func (h *HistoryHandler) ListGrouped(ctx context.Context, ownerID string) (*conversationresponses.HistoryResponse, error) {
	summaries, err := h.history.List(ctx, ownerID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to list history")
	}
	return conversationresponses.NewHistoryResponse(history.Group(summaries, time.Now())), nil
}

// Search filters the owner's conversations by a case-insensitive title
// substring, most recent first. An empty query returns everything.
func (h *HistoryHandler) Search(ctx context.Context, ownerID, q string) (*conversationresponses.SummaryListResponse, error) {
	summaries, err := h.history.List(ctx, ownerID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to search history")
	}
	return conversationresponses.NewSummaryListResponse(history.Search(summaries, q)), nil
}
