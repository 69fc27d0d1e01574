package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Entity store operation latency (seconds)
	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_op_duration_seconds",
			Help:    "Entity store operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "collection", "status"},
	)

	// HTTP request latency (seconds)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	RecalculationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_recalculation_count",
			Help: "Total number of project metric recalculations",
		},
		[]string{"status"}, // success, failed
	)

	AuditFindingCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_audit_finding_count",
			Help: "Consistency findings by kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: fixed, reported
	)

	CascadeCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_cascade_delete_count",
			Help: "Cascade deletions by result",
		},
		[]string{"status"}, // success, failed, retried
	)

	ActivityDropCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activity_drop_count",
			Help: "Activity records that could not be delivered",
		},
		[]string{"kind"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
)

func RecordStoreOp(operation, collection, status string, duration time.Duration) {
	StoreOpDuration.WithLabelValues(operation, collection, status).Observe(duration.Seconds())
}

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementRecalculation(status string) {
	RecalculationCount.WithLabelValues(status).Inc()
}

func IncrementAuditFinding(kind, outcome string) {
	AuditFindingCount.WithLabelValues(kind, outcome).Inc()
}

func IncrementCascade(status string) {
	CascadeCount.WithLabelValues(status).Inc()
}

func IncrementActivityDrop(kind string) {
	ActivityDropCount.WithLabelValues(kind).Inc()
}

func SetBreakerState(name string, state float64) {
	BreakerState.WithLabelValues(name).Set(state)
}
