package middleware

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/broady/tsrpc"
)

// Metrics records per-endpoint call counts and latency in Prometheus.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
}

// NewMetrics registers the call metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tsrpc_calls_total",
			Help: "Endpoint calls by endpoint and result code.",
		}, []string{"endpoint", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tsrpc_call_duration_seconds",
			Help:    "Endpoint call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tsrpc_calls_in_flight",
			Help: "Calls currently executing.",
		}, []string{"endpoint"}),
	}
	reg.MustRegister(m.calls, m.duration, m.inFlight)
	return m
}

// Interceptor returns an interceptor that records every call.
func (m *Metrics) Interceptor() tsrpc.UnaryInterceptor {
	return func(ctx *tsrpc.Context, params any, next tsrpc.HandlerFunc) (any, error) {
		endpoint := ctx.Endpoint()
		gauge := m.inFlight.WithLabelValues(endpoint)
		gauge.Inc()
		defer gauge.Dec()

		start := time.Now()
		res, err := next(ctx, params)
		m.duration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		m.calls.WithLabelValues(endpoint, codeOf(err)).Inc()
		return res, err
	}
}

// Handler serves the metrics gathered by reg.
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
