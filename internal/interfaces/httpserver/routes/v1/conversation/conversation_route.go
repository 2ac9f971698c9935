package conversation

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"studyhall/chat-api/internal/interfaces/httpserver/handlers/conversationhandler"
	"studyhall/chat-api/internal/interfaces/httpserver/handlers/previewhandler"
	"studyhall/chat-api/internal/interfaces/httpserver/middlewares"
	"studyhall/chat-api/internal/interfaces/httpserver/requests"
	conversationrequests "studyhall/chat-api/internal/interfaces/httpserver/requests/conversation"
	"studyhall/chat-api/internal/interfaces/httpserver/responses"
	"studyhall/chat-api/internal/utils/platformerrors"
)

const (
	defaultMessageLimit = 100
	maxMessageLimit     = 500
)

type ConversationRoute struct {
	handler *conversationhandler.ConversationHandler
	preview *previewhandler.PreviewHandler
}

func NewConversationRoute(
	handler *conversationhandler.ConversationHandler,
	preview *previewhandler.PreviewHandler,
) *ConversationRoute {
	return &ConversationRoute{
		handler: handler,
		preview: preview,
	}
}

func (route *ConversationRoute) RegisterRouter(router gin.IRouter) {
	conversations := router.Group("/conversations")
	conversations.POST("", route.createConversation)
	conversations.GET("/:conv_public_id", route.getConversation)
	conversations.PATCH("/:conv_public_id", route.renameConversation)
	conversations.DELETE("/:conv_public_id", route.deleteConversation)
	conversations.GET("/:conv_public_id/messages", route.listMessages)
	conversations.POST("/:conv_public_id/messages", route.appendMessages)
	conversations.PATCH("/:conv_public_id/messages/:msg_public_id", route.updateMessage)
	conversations.DELETE("/:conv_public_id/messages/:msg_public_id", route.deleteMessage)

	preview := router.Group("/preview")
	preview.GET("", route.getPreview)
	preview.POST("/hover", route.hoverPreview)
	preview.DELETE("/hover", route.leavePreview)
}

func (route *ConversationRoute) createConversation(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	var req conversationrequests.CreateConversationRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid request body")
		return
	}

	response, err := route.handler.CreateConversation(reqCtx.Request.Context(), principal.ID, req)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to create conversation")
		return
	}
	reqCtx.JSON(http.StatusCreated, response)
}

func (route *ConversationRoute) getConversation(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	response, err := route.handler.GetConversation(reqCtx.Request.Context(), principal.ID, reqCtx.Param("conv_public_id"))
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to get conversation")
		return
	}
	reqCtx.JSON(http.StatusOK, response)
}

func (route *ConversationRoute) renameConversation(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	var req conversationrequests.RenameConversationRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "title is required")
		return
	}

	if err := route.handler.RenameConversation(reqCtx.Request.Context(), principal.ID, reqCtx.Param("conv_public_id"), req); err != nil {
		responses.HandleError(reqCtx, err, "failed to rename conversation")
		return
	}
	reqCtx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (route *ConversationRoute) deleteConversation(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	if err := route.handler.DeleteConversation(reqCtx.Request.Context(), principal.ID, reqCtx.Param("conv_public_id")); err != nil {
		responses.HandleError(reqCtx, err, "failed to delete conversation")
		return
	}
	reqCtx.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (route *ConversationRoute) listMessages(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	pagination, err := requests.GetPaginationFromQuery(reqCtx, defaultMessageLimit, maxMessageLimit)
	if err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid query parameters")
		return
	}

	response, err := route.handler.ListMessages(reqCtx.Request.Context(), principal.ID, reqCtx.Param("conv_public_id"), pagination)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to list messages")
		return
	}
	reqCtx.JSON(http.StatusOK, response)
}

func (route *ConversationRoute) appendMessages(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	var req conversationrequests.AppendMessagesRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid request body")
		return
	}

	response, err := route.handler.AppendMessages(reqCtx.Request.Context(), principal.ID, reqCtx.Param("conv_public_id"), req)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to append messages")
		return
	}
	reqCtx.JSON(http.StatusCreated, response)
}

func (route *ConversationRoute) updateMessage(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	var req conversationrequests.UpdateMessageRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "content is required")
		return
	}

	response, err := route.handler.UpdateMessage(
		reqCtx.Request.Context(), principal.ID,
		reqCtx.Param("conv_public_id"), reqCtx.Param("msg_public_id"), req)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to update message")
		return
	}
	reqCtx.JSON(http.StatusOK, response)
}

func (route *ConversationRoute) deleteMessage(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	err := route.handler.DeleteMessage(
		reqCtx.Request.Context(), principal.ID,
		reqCtx.Param("conv_public_id"), reqCtx.Param("msg_public_id"))
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to delete message")
		return
	}
	reqCtx.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (route *ConversationRoute) getPreview(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}
	reqCtx.JSON(http.StatusOK, route.preview.Snapshot(principal.ID))
}

func (route *ConversationRoute) hoverPreview(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	var req struct {
		ConversationID string `json:"conversation_id" binding:"required"`
	}
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "conversation_id is required")
		return
	}

	// The load outlives this request; the debounce window would otherwise
	// be cancelled with the request context.
	route.preview.Hover(context.Background(), principal.ID, req.ConversationID)
	reqCtx.JSON(http.StatusAccepted, gin.H{"status": "scheduled"})
}

func (route *ConversationRoute) leavePreview(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}
	route.preview.Leave(principal.ID)
	reqCtx.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
