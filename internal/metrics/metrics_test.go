package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCounters(t *testing.T) {
	p := NewPrometheus()
	p.AlertReceived()
	p.AlertReceived()
	p.OrderSent("paper")
	p.OrderFilled()
	p.RiskBlocked("throttled")
	p.ObserveTradeLatency(15 * time.Millisecond)
	p.SetDeadLetters(3)

	require.Equal(t, 2.0, testutil.ToFloat64(p.alertsReceived))
	require.Equal(t, 1.0, testutil.ToFloat64(p.ordersSent.WithLabelValues("paper")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.ordersFilled))
	require.Equal(t, 1.0, testutil.ToFloat64(p.riskBlocked.WithLabelValues("throttled")))
	require.Equal(t, 3.0, testutil.ToFloat64(p.deadLetters))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := NewPrometheus()
	r := gin.New()
	r.Use(p.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", gin.WrapH(p.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.True(t, strings.Contains(body, `tradingbot_request_latency_seconds_count{endpoint="/ping",method="GET",status="200"} 1`), body)
}

func TestNopSink(t *testing.T) {
	s := OrNop(nil)
	s.AlertReceived()
	s.RiskBlocked("x")
	if _, ok := s.(Nop); !ok {
		t.Fatalf("sink=%T want Nop", s)
	}
}
