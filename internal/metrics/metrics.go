// Package metrics records pipeline counters and latencies.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tradingbot"

// Sink is the fire-and-forget surface the pipeline reports into.
type Sink interface {
	AlertReceived()
	OrderSent(mode string)
	OrderFilled()
	RiskBlocked(reason string)
	ObserveTradeLatency(d time.Duration)
}

// Nop discards everything.
type Nop struct{}

func (Nop) AlertReceived()                    {}
func (Nop) OrderSent(string)                  {}
func (Nop) OrderFilled()                      {}
func (Nop) RiskBlocked(string)                {}
func (Nop) ObserveTradeLatency(time.Duration) {}

// OrNop lets services accept a nil sink.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	return s
}

type Prometheus struct {
	Registry *prometheus.Registry

	alertsReceived prometheus.Counter
	ordersSent     *prometheus.CounterVec
	ordersFilled   prometheus.Counter
	riskBlocked    *prometheus.CounterVec
	tradeLatency   prometheus.Histogram
	requestLatency *prometheus.HistogramVec
	deadLetters    prometheus.Gauge
}

// NewPrometheus registers every collector on a private registry together
// with the Go and process collectors.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	p := &Prometheus{
		Registry: reg,
		alertsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_received_total",
			Help:      "Alerts accepted by the webhook.",
		}),
		ordersSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_sent_total",
			Help:      "Orders created, by mode.",
		}, []string{"mode"}),
		ordersFilled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_filled_total",
			Help:      "Orders filled by the paper engine.",
		}),
		riskBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_blocked_total",
			Help:      "Alerts blocked before execution, by reason.",
		}, []string{"reason"}),
		tradeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trade_latency_seconds",
			Help:      "Time spent executing one alert.",
			Buckets:   prometheus.DefBuckets,
		}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_latency_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint", "status"}),
		deadLetters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dead_letter_tasks",
			Help:      "Tasks parked on the dead-letter queue.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.alertsReceived,
		p.ordersSent,
		p.ordersFilled,
		p.riskBlocked,
		p.tradeLatency,
		p.requestLatency,
		p.deadLetters,
	)
	return p
}

func (p *Prometheus) AlertReceived() { p.alertsReceived.Inc() }

func (p *Prometheus) OrderSent(mode string) { p.ordersSent.WithLabelValues(mode).Inc() }

func (p *Prometheus) OrderFilled() { p.ordersFilled.Inc() }

func (p *Prometheus) RiskBlocked(reason string) { p.riskBlocked.WithLabelValues(reason).Inc() }

func (p *Prometheus) ObserveTradeLatency(d time.Duration) { p.tradeLatency.Observe(d.Seconds()) }

func (p *Prometheus) SetDeadLetters(n int64) { p.deadLetters.Set(float64(n)) }

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{Registry: p.Registry})
}

// Middleware times every request. Unmatched routes are grouped under
// "unmatched" to keep label cardinality bounded.
func (p *Prometheus) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		p.requestLatency.
			WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
