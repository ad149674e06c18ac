package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradingbot/internal/exception"
	"tradingbot/internal/metrics"
	"tradingbot/internal/models"
	"tradingbot/internal/queue"
	"tradingbot/internal/repository"
)

const (
	SignatureHeader = "X-Signature"
	maxWebhookBody  = 64 << 10
)

type Enqueuer interface {
	Enqueue(ctx context.Context, task queue.Task) error
}

type WebhookHandler struct {
	Alerts  repository.AlertRepository
	Queue   Enqueuer
	Metrics metrics.Sink
	Secret  string
	Logger  *zap.Logger
}

func (h *WebhookHandler) Register(r *gin.Engine) {
	r.POST("/webhook/tradingview", h.tradingview)
}

type alertIn struct {
	ID         *uuid.UUID       `json:"id"`
	Symbol     string           `json:"symbol"`
	Side       string           `json:"side"`
	Price      *decimal.Decimal `json:"price"`
	Confidence *float64         `json:"confidence"`
	Timeframe  *string          `json:"timeframe"`
	TS         *time.Time       `json:"ts"`
}

// AlertResponse is what TradingView sees; duplicates still answer 200.
type AlertResponse struct {
	Status  string    `json:"status"`
	AlertID uuid.UUID `json:"alert_id"`
}

func (in alertIn) validate() error {
	var problems []string
	if in.ID == nil || *in.ID == uuid.Nil {
		problems = append(problems, "id is required")
	}
	if strings.TrimSpace(in.Symbol) == "" {
		problems = append(problems, "symbol is required")
	}
	if strings.TrimSpace(in.Side) == "" {
		problems = append(problems, "side is required")
	}
	if in.Price == nil {
		problems = append(problems, "price is required")
	}
	if in.Confidence != nil && (*in.Confidence < 0 || *in.Confidence > 1) {
		problems = append(problems, "confidence must be within [0,1]")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", exception.ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body; senders put it in X-Signature.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *WebhookHandler) authorized(c *gin.Context, body []byte) (bool, string) {
	sig := strings.TrimSpace(c.GetHeader(SignatureHeader))
	if sig == "" {
		sig = strings.TrimSpace(c.Query("sig"))
	}
	if sig != "" {
		want := Sign(body, h.Secret)
		if !hmac.Equal([]byte(strings.ToLower(sig)), []byte(want)) {
			return false, "invalid signature"
		}
		return true, ""
	}
	auth := c.GetHeader("Authorization")
	if !hmac.Equal([]byte(auth), []byte("Bearer "+h.Secret)) {
		return false, "missing signature"
	}
	return true, ""
}

// @Summary TradingView alert webhook
// @Description Stores the alert and queues it for execution. Authenticated by X-Signature (hex HMAC-SHA256 of the body), ?sig=, or a Bearer secret.
// @Tags webhook
// @Accept json
// @Produce json
// @Param X-Signature header string false "hex HMAC-SHA256 of the body"
// @Success 200 {object} AlertResponse
// @Failure 401 {object} apiResponse
// @Failure 422 {object} apiResponse
// @Router /webhook/tradingview [post]
func (h *WebhookHandler) tradingview(c *gin.Context) {
	if h.Alerts == nil || h.Queue == nil || strings.TrimSpace(h.Secret) == "" {
		Error(c, http.StatusServiceUnavailable, "webhook unavailable", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		Error(c, http.StatusBadRequest, "read body", nil)
		return
	}
	if len(body) > maxWebhookBody {
		Error(c, http.StatusRequestEntityTooLarge, "body too large", nil)
		return
	}
	if ok, msg := h.authorized(c, body); !ok {
		Error(c, http.StatusUnauthorized, msg, nil)
		return
	}

	var in alertIn
	if err := json.Unmarshal(body, &in); err != nil {
		Error(c, http.StatusUnprocessableEntity, "invalid json: "+err.Error(), nil)
		return
	}
	if err := in.validate(); err != nil {
		fail(c, err)
		return
	}

	ctx := c.Request.Context()
	alert := &models.Alert{
		ID:         *in.ID,
		Symbol:     strings.TrimSpace(in.Symbol),
		Side:       strings.TrimSpace(in.Side),
		Price:      *in.Price,
		Confidence: in.Confidence,
		Timeframe:  in.Timeframe,
		ReceivedAt: time.Now().UTC(),
	}
	created, err := h.Alerts.InsertAlert(ctx, alert)
	if err != nil {
		fail(c, err)
		return
	}
	if !created {
		c.JSON(http.StatusOK, AlertResponse{Status: "duplicate", AlertID: alert.ID})
		return
	}

	metrics.OrNop(h.Metrics).AlertReceived()
	if err := h.Queue.Enqueue(ctx, queue.NewTask(alert.ID)); err != nil {
		if h.Logger != nil {
			h.Logger.Error("enqueue alert failed", zap.String("alert_id", alert.ID.String()), zap.Error(err))
		}
		Error(c, http.StatusServiceUnavailable, "queue unavailable", nil)
		return
	}
	if h.Logger != nil {
		h.Logger.Info("alert queued",
			zap.String("alert_id", alert.ID.String()),
			zap.String("symbol", alert.Symbol),
			zap.String("side", alert.Side),
		)
	}
	c.JSON(http.StatusOK, AlertResponse{Status: "queued", AlertID: alert.ID})
}
