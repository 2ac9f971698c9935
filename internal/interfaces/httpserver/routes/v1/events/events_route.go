package events

import (
	"github.com/gin-gonic/gin"

	"studyhall/chat-api/internal/interfaces/httpserver/handlers/eventshandler"
	"studyhall/chat-api/internal/interfaces/httpserver/middlewares"
	"studyhall/chat-api/internal/interfaces/httpserver/responses"
	"studyhall/chat-api/internal/utils/platformerrors"
)

type EventsRoute struct {
	handler *eventshandler.EventsHandler
}

func NewEventsRoute(handler *eventshandler.EventsHandler) *EventsRoute {
	return &EventsRoute{handler: handler}
}

func (route *EventsRoute) RegisterRouter(router gin.IRouter) {
	router.GET("/events", route.stream)
}

func (route *EventsRoute) stream(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	route.handler.Stream(reqCtx, principal.ID)
}
