package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tradingbot/internal/repository"
)

// TradingHandler exposes read-only views of orders, positions, audit events
// and stored PnL snapshots.
type TradingHandler struct {
	Repo repository.Repository
}

func (h *TradingHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1")
	g.GET("/orders", h.listOrders)
	g.GET("/orders/by-alert/:alert_id", h.orderByAlert)
	g.GET("/positions", h.listPositions)
	g.GET("/positions/:symbol", h.getPosition)
	g.GET("/risk-events", h.listRiskEvents)
	g.GET("/pnl-snapshots", h.listSnapshots)
}

var (
	orderSort     = map[string]string{"created_at": "created_at", "symbol": "symbol", "qty": "qty"}
	positionSort  = map[string]string{"symbol": "symbol", "qty": "qty", "updated_at": "updated_at"}
	riskEventSort = map[string]string{"created_at": "created_at", "type": "type"}
)

// @Summary List orders
// @Tags trading
// @Produce json
// @Param X-Internal-Token header string true "internal token"
// @Param symbol query string false "symbol"
// @Param status query string false "pending|filled|submitted"
// @Param mode query string false "paper|live"
// @Param order_by query string false "created_at|symbol|qty"
// @Param asc query bool false "ascending"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/v1/orders [get]
func (h *TradingHandler) listOrders(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListOrdersParams{
		Limit:   limit,
		Offset:  offset,
		Symbol:  strQueryPtr(c, "symbol"),
		Status:  strQueryPtr(c, "status"),
		Mode:    strQueryPtr(c, "mode"),
		OrderBy: parseOrder(c.Query("order_by"), orderSort),
		Asc:     boolPtr(boolQueryDefault(c, "asc", false)),
	}
	items, err := h.Repo.ListOrders(c.Request.Context(), params)
	if err != nil {
		fail(c, err)
		return
	}
	total, err := h.Repo.CountOrders(c.Request.Context(), params)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Order for an alert
// @Tags trading
// @Produce json
// @Param X-Internal-Token header string true "internal token"
// @Param alert_id path string true "alert id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/orders/by-alert/{alert_id} [get]
func (h *TradingHandler) orderByAlert(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id, err := uuid.Parse(strings.TrimSpace(c.Param("alert_id")))
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid alert id", nil)
		return
	}
	item, err := h.Repo.GetOrderByAlertID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "order not found", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary List positions
// @Tags trading
// @Produce json
// @Param X-Internal-Token header string true "internal token"
// @Param open_only query bool false "only non-zero positions"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/v1/positions [get]
func (h *TradingHandler) listPositions(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	params := repository.ListPositionsParams{
		Limit:    limit,
		Offset:   offset,
		OpenOnly: boolQueryDefault(c, "open_only", false),
		OrderBy:  parseOrder(c.Query("order_by"), positionSort),
		Asc:      boolPtr(boolQueryDefault(c, "asc", true)),
	}
	items, err := h.Repo.ListPositions(c.Request.Context(), params)
	if err != nil {
		fail(c, err)
		return
	}
	total, err := h.Repo.CountPositions(c.Request.Context(), params)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Position for a symbol
// @Tags trading
// @Produce json
// @Param X-Internal-Token header string true "internal token"
// @Param symbol path string true "symbol"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/positions/{symbol} [get]
func (h *TradingHandler) getPosition(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	item, err := h.Repo.GetPosition(c.Request.Context(), strings.TrimSpace(c.Param("symbol")))
	if err != nil {
		fail(c, err)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "position not found", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary List risk events
// @Tags trading
// @Produce json
// @Param X-Internal-Token header string true "internal token"
// @Param type query string false "blocked|paper_fill|live_order|flat"
// @Param alert_id query string false "alert id"
// @Param since query string false "RFC3339 or YYYY-MM-DD"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/v1/risk-events [get]
func (h *TradingHandler) listRiskEvents(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListRiskEventsParams{
		Limit:   limit,
		Offset:  offset,
		Type:    strQueryPtr(c, "type"),
		Since:   timeQueryPtr(c, "since"),
		OrderBy: parseOrder(c.Query("order_by"), riskEventSort),
		Asc:     boolPtr(boolQueryDefault(c, "asc", false)),
	}
	if v := strings.TrimSpace(c.Query("alert_id")); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid alert_id", nil)
			return
		}
		params.AlertID = &id
	}
	items, err := h.Repo.ListRiskEvents(c.Request.Context(), params)
	if err != nil {
		fail(c, err)
		return
	}
	total, err := h.Repo.CountRiskEvents(c.Request.Context(), params)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Stored daily PnL snapshots
// @Tags reports
// @Produce json
// @Param X-Internal-Token header string true "internal token"
// @Param day query string true "YYYY-MM-DD"
// @Success 200 {object} apiResponse
// @Router /api/v1/pnl-snapshots [get]
func (h *TradingHandler) listSnapshots(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	day := strings.TrimSpace(c.Query("day"))
	if day == "" {
		Error(c, http.StatusBadRequest, "day is required", nil)
		return
	}
	items, err := h.Repo.ListPnLSnapshots(c.Request.Context(), day)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, items, nil)
}
