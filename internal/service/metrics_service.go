package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the session
// lifecycle. A nil *MetricsService is a valid no-op receiver so wiring
// stays optional in tests.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	sessionsCreated prometheus.Counter
	rotations       *prometheus.CounterVec
	revocations     *prometheus.CounterVec
	validations     *prometheus.CounterVec
	sweepDeleted    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	auditDropped    prometheus.Counter
}

// NewMetricsService registers the session lifecycle collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	sessionsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessions_created_total",
		Help: "Total sessions created",
	})

	rotations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_rotations_total",
		Help: "Rotation attempts by outcome",
	}, []string{"outcome"})

	revocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_revocations_total",
		Help: "Sessions revoked by reason",
	}, []string{"reason"})

	validations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_validations_total",
		Help: "Validation results by outcome",
	}, []string{"outcome"})

	sweepDeleted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sessions_swept_total",
		Help: "Session records deleted by the cleanup sweeper",
	}, []string{"kind"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "validation_cache_hits_total",
		Help: "Validation cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "validation_cache_misses_total",
		Help: "Validation cache misses",
	})

	auditDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_events_dropped_total",
		Help: "Audit events dropped after exhausting delivery retries",
	})

	registry.MustRegister(requestDuration, requestTotal, sessionsCreated, rotations, revocations, validations, sweepDeleted, cacheHits, cacheMisses, auditDropped)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		sessionsCreated: sessionsCreated,
		rotations:       rotations,
		revocations:     revocations,
		validations:     validations,
		sweepDeleted:    sweepDeleted,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		auditDropped:    auditDropped,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// IncSessionCreated counts a successful CreateSession.
func (m *MetricsService) IncSessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

// IncRotation counts a rotation attempt by outcome (rotated, noop,
// denied, conflict).
func (m *MetricsService) IncRotation(outcome string) {
	if m == nil {
		return
	}
	m.rotations.WithLabelValues(outcome).Inc()
}

// IncRevocation counts a revoked session by reason.
func (m *MetricsService) IncRevocation(reason string) {
	if m == nil {
		return
	}
	m.revocations.WithLabelValues(reason).Inc()
}

// IncValidation counts a validation result by outcome.
func (m *MetricsService) IncValidation(outcome string) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(outcome).Inc()
}

// AddSweepDeleted counts records removed by the sweeper.
func (m *MetricsService) AddSweepDeleted(kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepDeleted.WithLabelValues(kind).Add(float64(n))
}

// IncCacheHit counts a validation cache hit.
func (m *MetricsService) IncCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// IncCacheMiss counts a validation cache miss.
func (m *MetricsService) IncCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// IncAuditDropped counts an audit event lost after delivery retries.
func (m *MetricsService) IncAuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}
