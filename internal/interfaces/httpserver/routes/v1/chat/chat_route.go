package chat

import (
	"github.com/gin-gonic/gin"

	"studyhall/chat-api/internal/interfaces/httpserver/handlers/chathandler"
	"studyhall/chat-api/internal/interfaces/httpserver/middlewares"
	chatrequests "studyhall/chat-api/internal/interfaces/httpserver/requests/chat"
	"studyhall/chat-api/internal/interfaces/httpserver/responses"
	"studyhall/chat-api/internal/utils/platformerrors"
)

type ChatRoute struct {
	handler *chathandler.ChatHandler
}

func NewChatRoute(handler *chathandler.ChatHandler) *ChatRoute {
	return &ChatRoute{handler: handler}
}

func (route *ChatRoute) RegisterRouter(router gin.IRouter) {
	chat := router.Group("/chat")
	chat.POST("/completions", route.completion)
	chat.POST("/regenerate", route.regenerate)
	chat.POST("/switch", route.switchConversation)
	chat.GET("/session", route.getSession)
}

func (route *ChatRoute) completion(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	var req chatrequests.CompletionRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "message is required")
		return
	}

	route.handler.Completion(reqCtx, principal.ID, req)
}

func (route *ChatRoute) regenerate(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	var req chatrequests.RegenerateRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "turn_index is required")
		return
	}

	route.handler.Regenerate(reqCtx, principal.ID, req)
}

func (route *ChatRoute) switchConversation(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	var req chatrequests.SwitchRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid request body")
		return
	}

	route.handler.Switch(reqCtx, principal.ID, req)
}

func (route *ChatRoute) getSession(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	route.handler.GetSession(reqCtx, principal.ID, reqCtx.Query("session_key"))
}
