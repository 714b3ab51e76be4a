package metrics

import "github.com/prometheus/client_golang/prometheus"

// PaymentMetrics exposes counters/histograms for the checkout flow.
type PaymentMetrics struct {
	intentsTotal  *prometheus.CounterVec
	commitsTotal  *prometheus.CounterVec
	commitLatency *prometheus.HistogramVec
	slotsTaken    prometheus.Counter
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	m := &PaymentMetrics{
		intentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diagnostic",
			Subsystem: "payments",
			Name:      "intents_total",
			Help:      "Payment intents requested from the gateway",
		}, []string{"outcome"}),
		commitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diagnostic",
			Subsystem: "payments",
			Name:      "commits_total",
			Help:      "Payment commits by outcome",
		}, []string{"outcome"}),
		commitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "diagnostic",
			Subsystem: "payments",
			Name:      "commit_latency_seconds",
			Help:      "Latency of the payment commit unit of work",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		slotsTaken: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "diagnostic",
			Subsystem: "catalog",
			Name:      "slots_consumed_total",
			Help:      "Test slots consumed by committed payments",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.intentsTotal, m.commitsTotal, m.commitLatency, m.slotsTaken)
	return m
}

func (m *PaymentMetrics) ObserveIntent(outcome string) {
	if m == nil {
		return
	}
	m.intentsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCommit records one commit attempt. A "committed" outcome also counts a consumed slot.
func (m *PaymentMetrics) ObserveCommit(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.commitsTotal.WithLabelValues(outcome).Inc()
	m.commitLatency.WithLabelValues(outcome).Observe(seconds)
	if outcome == "committed" {
		m.slotsTaken.Inc()
	}
}

// HTTPMetrics counts requests per route pattern.
type HTTPMetrics struct {
	requestsTotal *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diagnostic",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "diagnostic",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.latency)
	return m
}

func (m *HTTPMetrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, route, status).Inc()
	m.latency.WithLabelValues(method, route).Observe(seconds)
}
