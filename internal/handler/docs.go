package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterDocs serves a short operator guide at /docs.
func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# tradingbot

Receives TradingView alerts, sizes and risk-checks them, and places paper
fills or live Coinbase limit orders.

## Ingress

- POST /webhook/tradingview
  - X-Signature: hex HMAC-SHA256 of the raw body (or ?sig=)
  - or Authorization: Bearer <webhook secret>

## Operator routes

All /api/* and /reports/* routes require the X-Internal-Token header.

- GET /reports/daily?day=YYYY-MM-DD
- GET /api/v1/orders
- GET /api/v1/orders/by-alert/{alert_id}
- GET /api/v1/positions
- GET /api/v1/positions/{symbol}
- GET /api/v1/risk-events
- GET /api/v1/pnl-snapshots?day=YYYY-MM-DD
- GET /api/v1/switches
- PUT /api/v1/switches/{name}  {"enabled": false} halts execution

## Infra

- GET /healthz
- GET /readyz
- GET /metrics
- GET /swagger/index.html
`)
	})
}
