// Package previewhandler exposes the hover preview pane over HTTP. Each
// owner gets one debounced fetcher, so scrubbing the history list coalesces
// into a single load of the newest messages.
package previewhandler

import (
	"context"
	"sync"

	"studyhall/chat-api/internal/config"
	"studyhall/chat-api/internal/domain/conversation"
	"studyhall/chat-api/internal/sync/preview"
)

type PreviewHandler struct {
	mu       sync.Mutex
	fetchers map[string]*preview.Fetcher

	conversations *conversation.Service
	cfg           *config.Config
}

func NewPreviewHandler(conversations *conversation.Service, cfg *config.Config) *PreviewHandler {
	return &PreviewHandler{
		fetchers:      make(map[string]*preview.Fetcher),
		conversations: conversations,
		cfg:           cfg,
	}
}

// Hover schedules a debounced preview load for the conversation. The
// ownership check lives in the loader, so a foreign id surfaces as a
// preview error and nothing else.
func (h *PreviewHandler) Hover(ctx context.Context, ownerID, conversationID string) {
	h.fetcherFor(ownerID).Fetch(ctx, conversationID)
}

// Leave cancels any pending load and clears the owner's preview pane.
func (h *PreviewHandler) Leave(ownerID string) {
	h.fetcherFor(ownerID).Clear()
}

// Snapshot returns the owner's current preview pane state.
func (h *PreviewHandler) Snapshot(ownerID string) preview.Snapshot {
	return h.fetcherFor(ownerID).Snapshot()
}

func (h *PreviewHandler) fetcherFor(ownerID string) *preview.Fetcher {
	h.mu.Lock()
	defer h.mu.Unlock()

	if fetcher, ok := h.fetchers[ownerID]; ok {
		return fetcher
	}

	loader := func(ctx context.Context, conversationID string, limit int) ([]*conversation.Message, error) {
		conv, err := h.conversations.GetConversationByPublicIDAndOwner(ctx, conversationID, ownerID)
		if err != nil {
			return nil, err
		}
		return h.conversations.GetRecentMessages(ctx, conv, limit)
	}

	fetcher := preview.NewFetcher(loader, h.cfg.PreviewDebounce, h.cfg.PreviewMessageLimit)
	h.fetchers[ownerID] = fetcher
	return fetcher
}
