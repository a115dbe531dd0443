package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("briefd.pipeline")

var (
	// stageDuration tracks how long each pipeline stage takes.
	// Labels: stage (planner, research, writer, verifier)
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "briefd",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// gateDecisions counts retrieval gate outcomes.
	// Labels: decision (found, not_found)
	gateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "briefd",
			Subsystem: "pipeline",
			Name:      "gate_decisions_total",
			Help:      "Total retrieval gate decisions",
		},
		[]string{"decision"},
	)

	// verifierIssues counts verification issues by type and severity.
	verifierIssues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "briefd",
			Subsystem: "pipeline",
			Name:      "verifier_issues_total",
			Help:      "Total verification issues found",
		},
		[]string{"type", "severity"},
	)

	// runsTotal counts completed runs by final status.
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "briefd",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total pipeline runs by final status",
		},
		[]string{"status"},
	)
)

func recordIssues(issues []Issue) {
	for _, issue := range issues {
		verifierIssues.WithLabelValues(issue.Type, string(issue.Severity)).Inc()
	}
}
