package history

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studyhall/chat-api/internal/interfaces/httpserver/handlers/historyhandler"
	"studyhall/chat-api/internal/interfaces/httpserver/middlewares"
	"studyhall/chat-api/internal/interfaces/httpserver/responses"
	"studyhall/chat-api/internal/utils/platformerrors"
)

type HistoryRoute struct {
	handler *historyhandler.HistoryHandler
}

func NewHistoryRoute(handler *historyhandler.HistoryHandler) *HistoryRoute {
	return &HistoryRoute{handler: handler}
}

func (route *HistoryRoute) RegisterRouter(router gin.IRouter) {
	history := router.Group("/history")
	history.GET("", route.listGrouped)
	history.GET("/search", route.search)
}

func (route *HistoryRoute) listGrouped(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	response, err := route.handler.ListGrouped(reqCtx.Request.Context(), principal.ID)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to list history")
		return
	}
	reqCtx.JSON(http.StatusOK, response)
}

func (route *HistoryRoute) search(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	response, err := route.handler.Search(reqCtx.Request.Context(), principal.ID, reqCtx.Query("q"))
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to search history")
		return
	}
	reqCtx.JSON(http.StatusOK, response)
}
