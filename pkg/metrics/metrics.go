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

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// Client request metrics, one observation per logical request
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ExhaustedTotal  *prometheus.CounterVec

	// Per candidate address
	AttemptsTotal   *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
	FailoversTotal  *prometheus.CounterVec

	// Analysis retry loop
	AnalysisAttemptsTotal *prometheus.CounterVec
	AnalysisRetriesTotal  prometheus.Counter

	// Credential store
	SessionOperations *prometheus.CounterVec

	// Stub server
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight *prometheus.GaugeVec
}

// Config holds metrics configuration
type Config struct {
	Namespace string `json:"namespace"`
	Subsystem string `json:"subsystem"`
	Enabled   bool   `json:"enabled"`
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Namespace: "nebula_client",
		Subsystem: "",
		Enabled:   true,
	}
}

// NewMetrics creates all Prometheus metrics and registers them on a private
// registry. A disabled configuration returns a Metrics whose record methods
// are no-ops.
func NewMetrics(config *Config) *Metrics {
	if config == nil {
		config = DefaultConfig()
	}

	if !config.Enabled {
		return &Metrics{}
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of logical API requests by outcome",
			},
			[]string{"method", "outcome"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Duration of logical API requests including failover",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "outcome"},
		),
		ExhaustedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "candidates_exhausted_total",
				Help:      "Requests for which every candidate address failed",
			},
			[]string{"method"},
		),
		AttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "attempts_total",
				Help:      "Attempts against a candidate address by result",
			},
			[]string{"base_url", "result"},
		),
		AttemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "attempt_duration_seconds",
				Help:      "Duration of a single attempt against a candidate address",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"base_url"},
		),
		FailoversTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "failovers_total",
				Help:      "Times a request moved on from a candidate address",
			},
			[]string{"base_url", "reason"},
		),
		AnalysisAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "analysis_attempts_total",
				Help:      "Analysis attempts by result",
			},
			[]string{"result"},
		),
		AnalysisRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "analysis_retries_total",
				Help:      "Analysis attempts that were followed by a retry",
			},
		),
		SessionOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "session_operations_total",
				Help:      "Credential store operations by backend and status",
			},
			[]string{"backend", "operation", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: "stub",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests served by the stub backend",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: "stub",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestsInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: "stub",
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
			[]string{"method", "path"},
		),
	}

	// Register all metrics
	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ExhaustedTotal,
		m.AttemptsTotal,
		m.AttemptDuration,
		m.FailoversTotal,
		m.AnalysisAttemptsTotal,
		m.AnalysisRetriesTotal,
		m.SessionOperations,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the private registry, nil when metrics are disabled
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest records the outcome of one logical request
func (m *Metrics) RecordRequest(method, outcome string, duration time.Duration) {
	if m == nil || m.RequestsTotal == nil {
		return
	}

	m.RequestsTotal.WithLabelValues(method, outcome).Inc()
	m.RequestDuration.WithLabelValues(method, outcome).Observe(duration.Seconds())
}

// RecordAttempt records one try against a candidate address
func (m *Metrics) RecordAttempt(baseURL, result string, duration time.Duration) {
	if m == nil || m.AttemptsTotal == nil {
		return
	}

	m.AttemptsTotal.WithLabelValues(baseURL, result).Inc()
	m.AttemptDuration.WithLabelValues(baseURL).Observe(duration.Seconds())
}

// RecordFailover records that a request left baseURL for the next candidate
func (m *Metrics) RecordFailover(baseURL, reason string) {
	if m == nil || m.FailoversTotal == nil {
		return
	}

	m.FailoversTotal.WithLabelValues(baseURL, reason).Inc()
}

// RecordExhausted records that every candidate failed
func (m *Metrics) RecordExhausted(method string) {
	if m == nil || m.ExhaustedTotal == nil {
		return
	}

	m.ExhaustedTotal.WithLabelValues(method).Inc()
}

// RecordAnalysisAttempt records one analysis attempt
func (m *Metrics) RecordAnalysisAttempt(result string) {
	if m == nil || m.AnalysisAttemptsTotal == nil {
		return
	}

	m.AnalysisAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordAnalysisRetry records that another analysis attempt was scheduled
func (m *Metrics) RecordAnalysisRetry() {
	if m == nil || m.AnalysisRetriesTotal == nil {
		return
	}

	m.AnalysisRetriesTotal.Inc()
}

// RecordSessionOperation records a credential store call
func (m *Metrics) RecordSessionOperation(backend, operation string, err error) {
	if m == nil || m.SessionOperations == nil {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SessionOperations.WithLabelValues(backend, operation, status).Inc()
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.HTTPRequestsTotal == nil {
		return
	}

	statusStr := strconv.Itoa(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
}

// PrometheusMiddleware creates a middleware for Prometheus metrics collection
func (m *Metrics) PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		if m != nil && m.HTTPRequestsInFlight != nil {
			m.HTTPRequestsInFlight.WithLabelValues(c.Request.Method, path).Inc()
			defer m.HTTPRequestsInFlight.WithLabelValues(c.Request.Method, path).Dec()
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), duration)
	}
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
