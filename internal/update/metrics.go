package update

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var (
	// statementsTotal counts ValidateAndApply calls by outcome:
	// "applied", "rejected" (validation failed, nothing mutated) or "failed".
	statementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treeup_statements_total",
		Help: "Total update statements by outcome",
	}, []string{"outcome"})

	// conflictsTotal counts validation failures by error code.
	conflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treeup_validation_errors_total",
		Help: "Total rejected update statements by error code",
	}, []string{"code"})

	primitivesRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "treeup_primitives_registered_total",
		Help: "Total primitives registered, before merging",
	})

	primitivesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treeup_primitives_applied_total",
		Help: "Total primitives applied by kind",
	}, []string{"kind"})

	applyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "treeup_apply_duration_seconds",
		Help:    "ValidateAndApply duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
	})
)

var tracer = otel.Tracer("treeup/update")
