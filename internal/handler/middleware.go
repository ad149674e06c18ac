package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const InternalTokenHeader = "X-Internal-Token"

// RequireInternalToken guards operator endpoints with a shared token. Infra
// endpoints and the webhook, which carries its own signature, stay open.
func RequireInternalToken(token string) gin.HandlerFunc {
	token = strings.TrimSpace(token)
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if !strings.HasPrefix(p, "/api/") && !strings.HasPrefix(p, "/reports/") {
			c.Next()
			return
		}
		if token == "" {
			Error(c, http.StatusServiceUnavailable, "internal token not configured", nil)
			return
		}
		got := strings.TrimSpace(c.GetHeader(InternalTokenHeader))
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			Error(c, http.StatusUnauthorized, "invalid token", nil)
			return
		}
		c.Next()
	}
}

// AccessLog writes one line per request; 5xx at error, 4xx at warn.
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("took", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		switch {
		case status >= 500:
			logger.Error("http request", fields...)
		case status >= 400:
			logger.Warn("http request", fields...)
		default:
			logger.Debug("http request", fields...)
		}
	}
}
