package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tradingbot/internal/db/dbtest"
	"tradingbot/internal/models"
	"tradingbot/internal/queue"
	gormrepository "tradingbot/internal/repository/gorm"
	"tradingbot/internal/service"
)

const (
	testSecret = "hook-secret"
	testToken  = "ops-token"
)

type env struct {
	r     *gin.Engine
	store *gormrepository.Store
	queue *queue.MemoryQueue
	flags *service.SystemSettingsService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	conn := dbtest.Open(t)
	store := gormrepository.New(conn.Gorm)
	q := queue.NewMemoryQueue(16)
	flags := &service.SystemSettingsService{Repo: store}
	require.NoError(t, flags.EnsureDefaultSwitches(context.Background()))

	r := gin.New()
	r.Use(RequireInternalToken(testToken))
	(&WebhookHandler{Alerts: store, Queue: q, Secret: testSecret}).Register(r)
	(&HealthHandler{DB: conn.Gorm, BuildSHA: "abc123"}).Register(r)
	(&ReportHandler{Reports: &service.ReportingService{Repo: store}}).Register(r)
	(&TradingHandler{Repo: store}).Register(r)
	(&SwitchHandler{Repo: store, Settings: flags}).Register(r)
	return &env{r: r, store: store, queue: q, flags: flags}
}

func (e *env) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func alertBody(t *testing.T, id uuid.UUID, extra map[string]any) []byte {
	t.Helper()
	payload := map[string]any{
		"id":        id.String(),
		"symbol":    "BTC-USD",
		"side":      "buy",
		"price":     20000.5,
		"timeframe": "1h",
	}
	for k, v := range extra {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return raw
}

func signedRequest(body []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook/tradingview", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(body, testSecret))
	return req
}

func decodeAlertResponse(t *testing.T, w *httptest.ResponseRecorder) AlertResponse {
	t.Helper()
	var out AlertResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestWebhook_QueuesThenReportsDuplicate(t *testing.T) {
	e := newEnv(t)
	id := uuid.New()
	body := alertBody(t, id, map[string]any{"confidence": 0.7})

	w := e.do(signedRequest(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeAlertResponse(t, w)
	require.Equal(t, "queued", resp.Status)
	require.Equal(t, id, resp.AlertID)
	require.Equal(t, 1, e.queue.Len())

	stored, err := e.store.GetAlertByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.True(t, stored.Price.Equal(decimal.RequireFromString("20000.5")))
	require.NotNil(t, stored.Confidence)

	w = e.do(signedRequest(body))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "duplicate", decodeAlertResponse(t, w).Status)
	require.Equal(t, 1, e.queue.Len())
}

func TestWebhook_Authentication(t *testing.T) {
	e := newEnv(t)

	body := alertBody(t, uuid.New(), nil)
	req := httptest.NewRequest(http.MethodPost, "/webhook/tradingview", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, Sign(body, "wrong"))
	require.Equal(t, http.StatusUnauthorized, e.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/webhook/tradingview", bytes.NewReader(body))
	require.Equal(t, http.StatusUnauthorized, e.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/webhook/tradingview?sig="+Sign(body, testSecret), bytes.NewReader(body))
	require.Equal(t, http.StatusOK, e.do(req).Code)

	body = alertBody(t, uuid.New(), nil)
	req = httptest.NewRequest(http.MethodPost, "/webhook/tradingview", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testSecret)
	require.Equal(t, http.StatusOK, e.do(req).Code)

	require.Equal(t, 2, e.queue.Len())
}

func TestWebhook_Validation(t *testing.T) {
	e := newEnv(t)
	cases := []struct {
		name string
		body []byte
	}{
		{"confidence above one", alertBody(t, uuid.New(), map[string]any{"confidence": 1.5})},
		{"missing id", alertBody(t, uuid.Nil, map[string]any{"id": nil})},
		{"missing price", alertBody(t, uuid.New(), map[string]any{"price": nil})},
		{"bad uuid", alertBody(t, uuid.New(), map[string]any{"id": "nope"})},
		{"not json", []byte("{")},
	}
	for _, tc := range cases {
		w := e.do(signedRequest(tc.body))
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: status=%d body=%s", tc.name, w.Code, w.Body.String())
		}
	}
	require.Zero(t, e.queue.Len())
}

func TestInternalToken(t *testing.T) {
	e := newEnv(t)

	w := e.do(httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set(InternalTokenHeader, testToken)
	require.Equal(t, http.StatusOK, e.do(req).Code)

	require.Equal(t, http.StatusOK, e.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)

	r := gin.New()
	r.Use(RequireInternalToken(""))
	r.GET("/reports/daily", func(c *gin.Context) { c.Status(http.StatusOK) })
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/daily", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	w := e.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var out HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, HealthResponse{Status: "ok", BuildSHA: "abc123", DB: "ok", Redis: "disabled"}, out)

	w = e.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestDailyReport(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	orderID := uuid.New()
	err := e.store.InTx(ctx, func(tx *gorm.DB) error {
		if _, err := e.store.CreateOrderTx(ctx, tx, &models.Order{
			ID: orderID, AlertID: uuid.New(), Symbol: "BTC-USD", Side: models.SideSell,
			Qty: decimal.NewFromInt(2), LimitPrice: decimal.NewFromInt(90),
			Status: models.OrderStatusFilled, Mode: models.OrderModePaper,
		}); err != nil {
			return err
		}
		return e.store.InsertFillTx(ctx, tx, &models.Fill{
			ID: uuid.New(), OrderID: orderID, Symbol: "BTC-USD",
			Qty: decimal.NewFromInt(2), Price: decimal.NewFromInt(100),
			FilledAt: time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC),
		})
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/reports/daily?day=2026-03-04", nil)
	req.Header.Set(InternalTokenHeader, testToken)
	w := e.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rows []service.PnLRow
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	require.Equal(t, "BTC-USD", rows[0].Symbol)
	require.Equal(t, "2026-03-04", rows[0].Date)
	require.True(t, rows[0].RealizedPnL.Equal(decimal.NewFromInt(200)))

	req = httptest.NewRequest(http.MethodGet, "/reports/daily?day=03/04/2026", nil)
	req.Header.Set(InternalTokenHeader, testToken)
	require.Equal(t, http.StatusBadRequest, e.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/reports/daily", nil)
	require.Equal(t, http.StatusUnauthorized, e.do(req).Code)
}

func TestListPositionsEnvelope(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for _, sym := range []string{"BTC-USD", "ETH-USD"} {
		require.NoError(t, e.store.EnsurePosition(ctx, sym))
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/positions?limit=1", nil)
	req.Header.Set(InternalTokenHeader, testToken)
	w := e.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Code int               `json:"code"`
		Data []models.Position `json:"data"`
		Meta map[string]any    `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Zero(t, out.Code)
	require.Len(t, out.Data, 1)
	require.Equal(t, "BTC-USD", out.Data[0].Symbol)
	require.EqualValues(t, 2, out.Meta["total"])
	require.Equal(t, true, out.Meta["has_next"])

	req = httptest.NewRequest(http.MethodGet, "/api/v1/positions/SOL-USD", nil)
	req.Header.Set(InternalTokenHeader, testToken)
	require.Equal(t, http.StatusNotFound, e.do(req).Code)
}

func TestRiskEventsRejectsBadAlertID(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/risk-events?alert_id=xyz", nil)
	req.Header.Set(InternalTokenHeader, testToken)
	require.Equal(t, http.StatusBadRequest, e.do(req).Code)
}

func TestSwitches(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	put := func(name, body string) int {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/switches/"+name, bytes.NewBufferString(body))
		req.Header.Set(InternalTokenHeader, testToken)
		req.Header.Set("Content-Type", "application/json")
		return e.do(req).Code
	}
	require.Equal(t, http.StatusOK, put("execution", `{"enabled":false}`))
	require.False(t, e.flags.IsEnabled(ctx, service.FeatureExecution, true))

	require.Equal(t, http.StatusNotFound, put("nope", `{"enabled":true}`))
	require.Equal(t, http.StatusBadRequest, put("execution", `{}`))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/switches", nil)
	req.Header.Set(InternalTokenHeader, testToken)
	w := e.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"key":"feature.execution","enabled":false`)
}
