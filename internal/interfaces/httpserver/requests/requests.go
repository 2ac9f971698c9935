// Package requests holds shared HTTP request binding helpers.
package requests

import (
	"strings"

	"github.com/gin-gonic/gin"

	"studyhall/chat-api/internal/domain/query"
)

// PaginationQuery binds limit/offset/order query parameters.
type PaginationQuery struct {
	Limit  *int    `form:"limit"`
	Offset *int    `form:"offset"`
	Order  *string `form:"order"`
}

// GetPaginationFromQuery parses pagination parameters with sane defaults.
func GetPaginationFromQuery(c *gin.Context, defaultLimit, maxLimit int) (*query.Pagination, error) {
	var params PaginationQuery
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}

	pagination := &query.Pagination{}
	if params.Limit != nil {
		pagination.Limit = *params.Limit
	}
	if params.Offset != nil {
		pagination.Offset = *params.Offset
	}
	if params.Order != nil {
		pagination.Order = strings.ToLower(strings.TrimSpace(*params.Order))
	}
	pagination.Normalize(defaultLimit, maxLimit)
	return pagination, nil
}
