package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// SessionTokenHeader is accepted when the request body carries no token
const SessionTokenHeader = "X-Session-Token"

func ParseStringIDParam(c *gin.Context, param string) string {
	idStr := c.Param(param)
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID cannot be empty",
		})
		return ""
	}
	return idStr
}

// sessionToken prefers the body field and falls back to the header
func sessionToken(c *gin.Context, fromBody string) string {
	if token := strings.TrimSpace(fromBody); token != "" {
		return token
	}
	return strings.TrimSpace(c.GetHeader(SessionTokenHeader))
}

// bindOptionalJSON binds the body when one was sent. Token-only calls may send nothing.
func bindOptionalJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return false
	}
	return true
}
