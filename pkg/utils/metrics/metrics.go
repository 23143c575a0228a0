package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run orchestration metrics exposed on /metrics.
var (
	RunsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drover",
		Name:      "runs_started_total",
		Help:      "Number of workflow runs started",
	}, []string{"workflow"})

	RunsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drover",
		Name:      "runs_completed_total",
		Help:      "Number of workflow runs finished, by terminal status",
	}, []string{"workflow", "status"})

	RunsCanceledBySupersede = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "drover",
		Name:      "runs_canceled_by_supersede_total",
		Help:      "Number of runs canceled because a newer run took the same concurrency group",
	})

	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "drover",
		Name:      "active_runs",
		Help:      "Number of runs currently executing",
	})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "drover",
		Name:      "job_duration_seconds",
		Help:      "Wall clock duration of job instances",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"workflow", "job", "status"})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drover",
		Name:      "webhook_events_total",
		Help:      "Number of webhook events received, by type and action",
	}, []string{"type", "action"})
)
