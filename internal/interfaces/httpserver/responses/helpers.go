package responses

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"studyhall/chat-api/internal/utils/platformerrors"
)

// HandleError maps an error to an HTTP response. Platform errors carry their
// own type and code; anything else becomes an opaque internal error.
func HandleError(c *gin.Context, err error, message string) {
	logger := log.With().Str("path", c.Request.URL.Path).Logger()

	var platformErr *platformerrors.PlatformError
	if errors.As(err, &platformErr) {
		platformerrors.LogError(logger, platformErr)
		status := platformerrors.ErrorTypeToHTTPStatus(platformErr.Type)
		detail := &ErrorDetail{
			Message: platformErr.Message,
			Type:    errorTypeToString(platformErr.Type),
		}
		if status < http.StatusInternalServerError {
			detail.Code = platformErr.UUID
		} else {
			// Internal details stay in the logs
			detail.Message = message
		}
		c.AbortWithStatusJSON(status, ErrorResponse{Error: detail})
		return
	}

	logger.Error().Err(err).Msg(message)
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Error: &ErrorDetail{Message: message, Type: "internal_error"},
	})
}

// HandleErrorWithStatus handles errors with a custom HTTP status code.
func HandleErrorWithStatus(c *gin.Context, statusCode int, err error, message string) {
	_ = err
	c.AbortWithStatusJSON(statusCode, ErrorResponse{
		Error: &ErrorDetail{
			Message: message,
			Type:    statusToErrorType(statusCode),
		},
	})
}

// HandleNewError creates and writes a new typed error response.
// Use this for route-level errors like validation failures.
func HandleNewError(c *gin.Context, errorType platformerrors.ErrorType, message string) {
	status := platformerrors.ErrorTypeToHTTPStatus(errorType)
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: &ErrorDetail{
			Message: message,
			Type:    errorTypeToString(errorType),
		},
	})
}

func statusToErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation_error"
	case http.StatusUnauthorized:
		return "unauthorized_error"
	case http.StatusForbidden:
		return "forbidden_error"
	case http.StatusNotFound:
		return "not_found_error"
	case http.StatusConflict:
		return "conflict_error"
	default:
		return "internal_error"
	}
}

func errorTypeToString(t platformerrors.ErrorType) string {
	switch t {
	case platformerrors.ErrorTypeNotFound:
		return "not_found_error"
	case platformerrors.ErrorTypeValidation:
		return "validation_error"
	case platformerrors.ErrorTypeConflict:
		return "conflict_error"
	case platformerrors.ErrorTypeStale:
		return "stale_error"
	case platformerrors.ErrorTypeUnauthorized:
		return "unauthorized_error"
	case platformerrors.ErrorTypeForbidden:
		return "forbidden_error"
	case platformerrors.ErrorTypeExternal:
		return "external_error"
	case platformerrors.ErrorTypeDatabaseError, platformerrors.ErrorTypeInternal:
		fallthrough
	default:
		return "internal_error"
	}
}
