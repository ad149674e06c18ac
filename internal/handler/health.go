package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type HealthHandler struct {
	DB       *gorm.DB
	Redis    redis.UniversalClient
	BuildSHA string
}

type HealthResponse struct {
	Status   string `json:"status"`
	BuildSHA string `json:"build_sha"`
	DB       string `json:"db"`
	Redis    string `json:"redis"`
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
}

func (h *HealthHandler) dbStatus(ctx context.Context) string {
	if h.DB == nil {
		return "missing"
	}
	sqlDB, err := h.DB.DB()
	if err != nil {
		return "error"
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return "error"
	}
	return "ok"
}

func (h *HealthHandler) redisStatus(ctx context.Context) string {
	if h.Redis == nil {
		return "disabled"
	}
	if err := h.Redis.Ping(ctx).Err(); err != nil {
		return "error"
	}
	return "ok"
}

// @Summary Health check
// @Description Always 200 while the process serves; dependency state is reported per field.
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /healthz [get]
func (h *HealthHandler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	sha := h.BuildSHA
	if sha == "" {
		sha = "dev"
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		BuildSHA: sha,
		DB:       h.dbStatus(ctx),
		Redis:    h.redisStatus(ctx),
	})
}

// @Summary Readiness check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /readyz [get]
func (h *HealthHandler) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if st := h.dbStatus(ctx); st != "ok" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_" + st})
		return
	}
	if st := h.redisStatus(ctx); st == "error" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
