package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes application-level instruments.
type Metrics struct {
	ordersCreated        *prometheus.CounterVec
	ordersCompleted      prometheus.Counter
	ordersCancelled      *prometheus.CounterVec
	stockConflicts       prometheus.Counter
	paymentConfirmations *prometheus.CounterVec
	paymentFailures      *prometheus.CounterVec
}

// New registers the storefront instruments on the given registry.
func New(reg *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_orders_created_total",
			Help: "Orders created, labeled by payment method.",
		}, []string{"method"}),
		ordersCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_orders_completed_total",
			Help: "Orders transitioned into completed.",
		}),
		ordersCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_orders_cancelled_total",
			Help: "Orders transitioned into cancelled, labeled by cause.",
		}, []string{"cause"}),
		stockConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_stock_conflicts_total",
			Help: "Stock reservations rejected for insufficient stock.",
		}),
		paymentConfirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_payment_confirmations_total",
			Help: "Payment confirmations, labeled by method.",
		}, []string{"method"}),
		paymentFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_payment_failures_total",
			Help: "Payment verification failures, labeled by method and kind.",
		}, []string{"method", "kind"}),
	}

	collectors := []prometheus.Collector{
		m.ordersCreated,
		m.ordersCompleted,
		m.ordersCancelled,
		m.stockConflicts,
		m.paymentConfirmations,
		m.paymentFailures,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) RecordOrderCreated(method string) {
	if m == nil {
		return
	}
	m.ordersCreated.WithLabelValues(strings.TrimSpace(method)).Inc()
}

func (m *Metrics) RecordOrderCompleted() {
	if m == nil {
		return
	}
	m.ordersCompleted.Inc()
}

func (m *Metrics) RecordOrderCancelled(cause string) {
	if m == nil {
		return
	}
	m.ordersCancelled.WithLabelValues(strings.TrimSpace(cause)).Inc()
}

func (m *Metrics) RecordStockConflict() {
	if m == nil {
		return
	}
	m.stockConflicts.Inc()
}

func (m *Metrics) RecordPaymentConfirmation(method string) {
	if m == nil {
		return
	}
	m.paymentConfirmations.WithLabelValues(strings.TrimSpace(method)).Inc()
}

func (m *Metrics) RecordPaymentFailure(method, kind string) {
	if m == nil {
		return
	}
	m.paymentFailures.WithLabelValues(strings.TrimSpace(method), strings.TrimSpace(kind)).Inc()
}

// HTTPMetrics holds the request-level instruments.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers HTTP instruments on the given registry.
func NewHTTPMetrics(reg *prometheus.Registry) (*HTTPMetrics, error) {
	h := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	if err := reg.Register(h.requests); err != nil {
		return nil, err
	}
	if err := reg.Register(h.duration); err != nil {
		return nil, err
	}
	return h, nil
}

// GinMiddleware records request counts and latency.
func GinMiddleware(h *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		h.requests.WithLabelValues(route, method, status).Inc()
		h.duration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}
