package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tradingbot/internal/risk"
	"tradingbot/internal/service"
)

type DailyReporter interface {
	DailyPnL(ctx context.Context, day time.Time) ([]service.PnLRow, error)
}

type ReportHandler struct {
	Reports DailyReporter
	Now     func() time.Time
}

func (h *ReportHandler) Register(r *gin.Engine) {
	r.GET("/reports/daily", h.daily)
}

// @Summary Daily PnL report
// @Description Realized and unrealized PnL per symbol for a UTC day (default today).
// @Tags reports
// @Produce json
// @Param X-Internal-Token header string true "internal token"
// @Param day query string false "YYYY-MM-DD"
// @Success 200 {array} service.PnLRow
// @Failure 400 {object} apiResponse
// @Failure 401 {object} apiResponse
// @Router /reports/daily [get]
func (h *ReportHandler) daily(c *gin.Context) {
	if h.Reports == nil {
		Error(c, http.StatusInternalServerError, "reporting unavailable", nil)
		return
	}
	day := time.Now().UTC()
	if h.Now != nil {
		day = h.Now().UTC()
	}
	if v := strings.TrimSpace(c.Query("day")); v != "" {
		parsed, err := time.Parse(risk.TradeDayLayout, v)
		if err != nil {
			Error(c, http.StatusBadRequest, "day must be YYYY-MM-DD", nil)
			return
		}
		day = parsed
	}
	rows, err := h.Reports.DailyPnL(c.Request.Context(), day)
	if err != nil {
		fail(c, err)
		return
	}
	if rows == nil {
		rows = []service.PnLRow{}
	}
	c.JSON(http.StatusOK, rows)
}
