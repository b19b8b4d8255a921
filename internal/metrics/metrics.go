package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const prefix = "shopsuite"

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Quota enforcement metrics
	LimitDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_limit_denials_total",
			Help: "Total number of resource creations denied by plan limits",
		},
		[]string{"resource"},
	)

	// Billing lifecycle metrics
	PlanTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_plan_transitions_total",
			Help: "Total number of completed plan transitions",
		},
		[]string{"direction"},
	)

	// Authentication metrics
	LoginFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_login_failures_total",
			Help: "Total number of failed login attempts",
		},
	)

	AccountLockoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_account_lockouts_total",
			Help: "Total number of accounts locked after repeated login failures",
		},
	)

	// Audit pipeline metrics
	AuditWriteFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_audit_write_failures_total",
			Help: "Total number of audit events that could not be persisted",
		},
	)
)

// RecordLimitDenial increments the denial counter for a resource kind.
func RecordLimitDenial(resource string) {
	LimitDenialsTotal.WithLabelValues(resource).Inc()
}

// RecordPlanTransition increments the transition counter for a direction.
func RecordPlanTransition(direction string) {
	PlanTransitionsTotal.WithLabelValues(direction).Inc()
}
