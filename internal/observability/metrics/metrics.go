package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the billing counters. A nil *Metrics is a valid no-op.
type Metrics struct {
	sequenceAllocations *prometheus.CounterVec
	invoicesIssued      *prometheus.CounterVec
	allocations         *prometheus.CounterVec
	receiptsIssued      prometheus.Counter
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

// New registers the billing collectors with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		sequenceAllocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "samda_sequence_allocations_total",
			Help: "Document numbers handed out per sequence key.",
		}, []string{"key"}),
		invoicesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "samda_invoices_issued_total",
			Help: "Invoices moved from DRAFT to ISSUED by invoice type.",
		}, []string{"type"}),
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "samda_allocations_total",
			Help: "Payment allocation attempts by outcome.",
		}, []string{"outcome"}),
		receiptsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "samda_receipts_issued_total",
			Help: "Receipts issued for payments.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "samda_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "samda_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	collectors := []prometheus.Collector{
		m.sequenceAllocations,
		m.invoicesIssued,
		m.allocations,
		m.receiptsIssued,
		m.httpRequests,
		m.httpDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) RecordSequenceAllocation(key string) {
	if m == nil {
		return
	}
	m.sequenceAllocations.WithLabelValues(sanitizeLabel(key)).Inc()
}

func (m *Metrics) RecordInvoiceIssued(invoiceType string) {
	if m == nil {
		return
	}
	m.invoicesIssued.WithLabelValues(sanitizeLabel(invoiceType)).Inc()
}

// RecordAllocation counts an allocation attempt. outcome is "accepted" or a
// rejection reason code.
func (m *Metrics) RecordAllocation(outcome string) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(sanitizeLabel(outcome)).Inc()
}

func (m *Metrics) RecordReceiptIssued() {
	if m == nil {
		return
	}
	m.receiptsIssued.Inc()
}

// GinMiddleware records request counts and latency per matched route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		method := strings.ToUpper(c.Request.Method)
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func sanitizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return strings.ToLower(value)
}
