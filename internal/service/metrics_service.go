package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the leave and
// substitution pipeline.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	leavesSubmitted      prometheus.Counter
	leavesAutoApproved   prometheus.Counter
	leavesManualResolved *prometheus.CounterVec
	substitutionsCreated prometheus.Counter
	unresolvedSlots      prometheus.Counter
	monitorScanErrors    prometheus.Counter
}

// NewMetricsService registers the service's Prometheus collectors.
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

	leavesSubmitted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leaves_submitted_total",
		Help: "Total leave requests submitted",
	})

	leavesAutoApproved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leaves_auto_approved_total",
		Help: "Total leave requests approved by the monitor",
	})

	leavesManualResolved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leaves_manual_resolved_total",
		Help: "Total leave requests resolved by an administrator",
	}, []string{"outcome"})

	substitutionsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "substitutions_created_total",
		Help: "Total substitute assignments created by the finder",
	})

	unresolvedSlots := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "substitution_unresolved_slots_total",
		Help: "Total period slots the finder could not cover",
	})

	monitorScanErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auto_approval_scan_errors_total",
		Help: "Total per-candidate errors during monitor scans",
	})

	registry.MustRegister(
		requestDuration,
		requestTotal,
		leavesSubmitted,
		leavesAutoApproved,
		leavesManualResolved,
		substitutionsCreated,
		unresolvedSlots,
		monitorScanErrors,
		prometheus.NewGoCollector(),
	)

	return &MetricsService{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		leavesSubmitted:      leavesSubmitted,
		leavesAutoApproved:   leavesAutoApproved,
		leavesManualResolved: leavesManualResolved,
		substitutionsCreated: substitutionsCreated,
		unresolvedSlots:      unresolvedSlots,
		monitorScanErrors:    monitorScanErrors,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// ObserveHTTPRequest records latency and count for a request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := prometheus.Labels{"method": method, "path": path, "status": strconv.Itoa(status)}
	m.requestDuration.With(labels).Observe(duration.Seconds())
	m.requestTotal.With(labels).Inc()
}

// LeaveSubmitted increments the submission counter.
func (m *MetricsService) LeaveSubmitted() {
	m.leavesSubmitted.Inc()
}

// LeaveAutoApproved increments the auto-approval counter.
func (m *MetricsService) LeaveAutoApproved() {
	m.leavesAutoApproved.Inc()
}

// LeaveManualResolved increments the manual resolution counter.
func (m *MetricsService) LeaveManualResolved(outcome string) {
	m.leavesManualResolved.WithLabelValues(outcome).Inc()
}

// SubstitutionsCreated adds to the created-assignment counter.
func (m *MetricsService) SubstitutionsCreated(n int) {
	m.substitutionsCreated.Add(float64(n))
}

// UnresolvedSlots adds to the unresolved-slot counter.
func (m *MetricsService) UnresolvedSlots(n int) {
	m.unresolvedSlots.Add(float64(n))
}

// MonitorScanError increments the scan error counter.
func (m *MetricsService) MonitorScanError() {
	m.monitorScanErrors.Inc()
}
