// Package metrics defines Prometheus metrics for scoutlane.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scoutlane_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoutlane_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoutlane_errors_total",
			Help: "Total errors by code",
		},
		[]string{"type"},
	)

	RateLimitDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoutlane_rate_limit_denials_total",
			Help: "Requests denied by the rate limiter, by endpoint class",
		},
		[]string{"class"},
	)

	AuthFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scoutlane_auth_failures_total",
			Help: "Bearer token verification failures",
		},
	)

	CSRFRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scoutlane_csrf_rejections_total",
			Help: "Requests rejected by the CSRF guard",
		},
	)

	TenantAccessDenials = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scoutlane_tenant_access_denials_total",
			Help: "Tenant resolutions denied for lack of membership",
		},
	)

	AuditRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoutlane_security_audit_runs_total",
			Help: "Completed security audit runs, by overall status",
		},
		[]string{"status"},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scoutlane_security_event_subscribers",
			Help: "Active security event stream subscribers",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		RateLimitDenials, AuthFailures, CSRFRejections,
		TenantAccessDenials, AuditRuns, WSConnections,
	)
}
