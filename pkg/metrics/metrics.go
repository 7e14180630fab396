package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orders"

// Tier outcomes.
const (
	OutcomeHit        = "hit"
	OutcomeEmpty      = "empty"
	OutcomeSchemaMiss = "schema_miss"
	OutcomeError      = "error"
	OutcomeSkipped    = "skipped"
)

type Metrics struct {
	registry      *prometheus.Registry
	itemTiers     *prometheus.CounterVec
	checkoutLines *prometheus.CounterVec
	Requests      *prometheus.CounterVec
	LatencyMS     *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		itemTiers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_tier_total",
			Help:      "Order item reads by strategy tier and outcome.",
		}, []string{"tier", "outcome"}),
		checkoutLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_lines_total",
			Help:      "Order line insert attempts by result.",
		}, []string{"result"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
	}

	reg.MustRegister(m.itemTiers, m.checkoutLines, m.Requests, m.LatencyMS)

	return m
}

// ItemTier is safe on a nil receiver so components can run without metrics.
func (m *Metrics) ItemTier(tier, outcome string) {
	if m == nil {
		return
	}
	m.itemTiers.WithLabelValues(tier, outcome).Inc()
}

func (m *Metrics) CheckoutLine(result string) {
	if m == nil {
		return
	}
	m.checkoutLines.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRequest(route, status string, ms float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, status).Inc()
	m.LatencyMS.WithLabelValues(route).Observe(ms)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}
