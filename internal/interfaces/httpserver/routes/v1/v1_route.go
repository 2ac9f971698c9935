package v1

import (
	"github.com/gin-gonic/gin"

	"studyhall/chat-api/internal/interfaces/httpserver/routes/v1/chat"
	"studyhall/chat-api/internal/interfaces/httpserver/routes/v1/conversation"
	"studyhall/chat-api/internal/interfaces/httpserver/routes/v1/events"
	"studyhall/chat-api/internal/interfaces/httpserver/routes/v1/history"
	"studyhall/chat-api/internal/interfaces/httpserver/routes/v1/usage"
)

type V1Route struct {
	conversation *conversation.ConversationRoute
	chat         *chat.ChatRoute
	history      *history.HistoryRoute
	usage        *usage.UsageRoute
	events       *events.EventsRoute
}

func NewV1Route(
	conversationRoute *conversation.ConversationRoute,
	chatRoute *chat.ChatRoute,
	historyRoute *history.HistoryRoute,
	usageRoute *usage.UsageRoute,
	eventsRoute *events.EventsRoute,
) *V1Route {
	return &V1Route{
		conversation: conversationRoute,
		chat:         chatRoute,
		history:      historyRoute,
		usage:        usageRoute,
		events:       eventsRoute,
	}
}

func (route *V1Route) RegisterRouter(router gin.IRouter) {
	v1 := router.Group("/v1")
	route.conversation.RegisterRouter(v1)
	route.chat.RegisterRouter(v1)
	route.history.RegisterRouter(v1)
	route.usage.RegisterRouter(v1)
	route.events.RegisterRouter(v1)
}
