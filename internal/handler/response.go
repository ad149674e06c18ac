package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tradingbot/internal/exception"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.AbortWithStatusJSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// statusFor maps pipeline errors onto HTTP statuses; anything unknown is a
// storage or upstream failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, exception.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, exception.ErrAlertNotFound):
		return http.StatusNotFound
	case errors.Is(err, exception.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, exception.ErrTransientUpstream):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func fail(c *gin.Context, err error) {
	Error(c, statusFor(err), err.Error(), nil)
}
