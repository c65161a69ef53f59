package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics interface for dependency injection
type Metrics interface {
	RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration)
	RecordIntentCreated(provider, outcome string)
	RecordStatusPoll(provider, result string)
	RecordGatewayCall(provider, operation string, statusCode int, duration time.Duration)
	SetDBConnectionsActive(count float64)
	RecordDBQuery(operation, status string)
	RecordReconcileRun(checked, settled int, duration time.Duration)
	Handler() http.Handler
}

// NoOpMetrics provides a no-op implementation
type NoOpMetrics struct{}

func (m *NoOpMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
}
func (m *NoOpMetrics) RecordIntentCreated(provider, outcome string) {}
func (m *NoOpMetrics) RecordStatusPoll(provider, result string)     {}
func (m *NoOpMetrics) RecordGatewayCall(provider, operation string, statusCode int, duration time.Duration) {
}
func (m *NoOpMetrics) SetDBConnectionsActive(count float64) {}
func (m *NoOpMetrics) RecordDBQuery(operation, status string) {}
func (m *NoOpMetrics) RecordReconcileRun(checked, settled int, duration time.Duration) {}
func (m *NoOpMetrics) Handler() http.Handler                                          { return http.NotFoundHandler() }

// PrometheusMetrics exports the checkout metrics on a private registry
type PrometheusMetrics struct {
	registry       *prometheus.Registry
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	intentsCreated *prometheus.CounterVec
	statusPolls    *prometheus.CounterVec
	gatewayCalls   *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
	dbConnsActive  prometheus.Gauge
	dbQueries      *prometheus.CounterVec
	reconcileRuns  prometheus.Counter
	reconciled     *prometheus.CounterVec
	reconcileTime  prometheus.Histogram
}

// NewPrometheus builds a PrometheusMetrics with Go runtime collectors attached
func NewPrometheus() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	m := &PrometheusMetrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout", Name: "http_requests_total", Help: "HTTP requests by route and status.",
		}, []string{"method", "endpoint", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "checkout", Name: "http_request_duration_seconds", Help: "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		intentsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout", Name: "intents_created_total", Help: "PIX intents requested from the gateway.",
		}, []string{"provider", "outcome"}),
		statusPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout", Name: "status_polls_total", Help: "Status checks by normalized result.",
		}, []string{"provider", "result"}),
		gatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout", Name: "gateway_calls_total", Help: "Upstream gateway calls by status code.",
		}, []string{"provider", "operation", "status"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "checkout", Name: "gateway_call_duration_seconds", Help: "Upstream gateway latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "operation"}),
		dbConnsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "checkout", Name: "db_connections_active", Help: "Acquired database connections.",
		}),
		dbQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout", Name: "db_queries_total", Help: "Database statements by outcome.",
		}, []string{"operation", "status"}),
		reconcileRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "checkout", Name: "reconcile_runs_total", Help: "Pending intent sweeps.",
		}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout", Name: "reconciled_intents_total", Help: "Intents checked by the reconciler.",
		}, []string{"result"}),
		reconcileTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "checkout", Name: "reconcile_duration_seconds", Help: "Sweep duration.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.intentsCreated, m.statusPolls,
		m.gatewayCalls, m.gatewayLatency, m.dbConnsActive, m.dbQueries,
		m.reconcileRuns, m.reconciled, m.reconcileTime,
	)
	return m
}

func (m *PrometheusMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordIntentCreated(provider, outcome string) {
	m.intentsCreated.WithLabelValues(provider, outcome).Inc()
}

func (m *PrometheusMetrics) RecordStatusPoll(provider, result string) {
	m.statusPolls.WithLabelValues(provider, result).Inc()
}

func (m *PrometheusMetrics) RecordGatewayCall(provider, operation string, statusCode int, duration time.Duration) {
	m.gatewayCalls.WithLabelValues(provider, operation, strconv.Itoa(statusCode)).Inc()
	m.gatewayLatency.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) SetDBConnectionsActive(count float64) { m.dbConnsActive.Set(count) }

func (m *PrometheusMetrics) RecordDBQuery(operation, status string) {
	m.dbQueries.WithLabelValues(operation, status).Inc()
}

func (m *PrometheusMetrics) RecordReconcileRun(checked, settled int, duration time.Duration) {
	m.reconcileRuns.Inc()
	m.reconciled.WithLabelValues("settled").Add(float64(settled))
	m.reconciled.WithLabelValues("pending").Add(float64(checked - settled))
	m.reconcileTime.Observe(duration.Seconds())
}

func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Global metrics instance
var globalMetrics Metrics = &NoOpMetrics{}

// Init switches the global instance to Prometheus
func Init() {
	globalMetrics = NewPrometheus()
}

// Set replaces the global instance, mainly for tests
func Set(m Metrics) {
	if m == nil {
		m = &NoOpMetrics{}
	}
	globalMetrics = m
}

// Handler returns the metrics handler
func Handler() http.Handler {
	return globalMetrics.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	globalMetrics.RecordHTTPRequest(method, endpoint, statusCode, duration)
}

// RecordIntentCreated counts CreateIntent outcomes (ok, invalid, gateway_error)
func RecordIntentCreated(provider, outcome string) {
	globalMetrics.RecordIntentCreated(provider, outcome)
}

// RecordStatusPoll counts GetStatus results (PENDING, SUCCESS, not_found, gateway_error)
func RecordStatusPoll(provider, result string) {
	globalMetrics.RecordStatusPoll(provider, result)
}

// RecordGatewayCall records one upstream round trip; statusCode 0 means transport failure
func RecordGatewayCall(provider, operation string, statusCode int, duration time.Duration) {
	globalMetrics.RecordGatewayCall(provider, operation, statusCode, duration)
}

// SetDBConnectionsActive sets the number of active database connections
func SetDBConnectionsActive(count float64) {
	globalMetrics.SetDBConnectionsActive(count)
}

// RecordDBQuery records database query metrics
func RecordDBQuery(operation, status string) {
	globalMetrics.RecordDBQuery(operation, status)
}

// RecordReconcileRun records one sweep over pending intents
func RecordReconcileRun(checked, settled int, duration time.Duration) {
	globalMetrics.RecordReconcileRun(checked, settled, duration)
}
