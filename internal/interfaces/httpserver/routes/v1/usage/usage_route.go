package usage

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studyhall/chat-api/internal/interfaces/httpserver/handlers/usagehandler"
	"studyhall/chat-api/internal/interfaces/httpserver/middlewares"
	"studyhall/chat-api/internal/interfaces/httpserver/responses"
	"studyhall/chat-api/internal/utils/platformerrors"
)

type UsageRoute struct {
	handler *usagehandler.UsageHandler
}

func NewUsageRoute(handler *usagehandler.UsageHandler) *UsageRoute {
	return &UsageRoute{handler: handler}
}

func (route *UsageRoute) RegisterRouter(router gin.IRouter) {
	usage := router.Group("/usage")
	usage.GET("", route.getUsage)
	usage.GET("/daily", route.getDailyUsage)
}

func (route *UsageRoute) getUsage(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	response, err := route.handler.GetUsage(reqCtx.Request.Context(), principal.ID,
		reqCtx.Query("start_date"), reqCtx.Query("end_date"))
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to get usage")
		return
	}
	reqCtx.JSON(http.StatusOK, response)
}

func (route *UsageRoute) getDailyUsage(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	aggregates, err := route.handler.GetDailyUsage(reqCtx.Request.Context(), principal.ID,
		reqCtx.Query("start_date"), reqCtx.Query("end_date"))
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to get daily usage")
		return
	}
	reqCtx.JSON(http.StatusOK, gin.H{"object": "list", "data": aggregates})
}
