package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Worker and orchestrator counters, exposed on the worker's /metrics
// endpoint.
var (
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autopilot_worker_cycles_total",
		Help: "Completed worker cycles.",
	})

	TicksSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autopilot_worker_ticks_skipped_total",
		Help: "Ticks skipped because a previous cycle was still running.",
	})

	RulesExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autopilot_rules_executed_total",
		Help: "Rule cycles run by the orchestrator.",
	})

	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autopilot_actions_total",
		Help: "Action executions by result.",
	}, []string{"result"})

	NotificationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autopilot_notifications_total",
		Help: "Trigger notifications dispatched.",
	})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "autopilot_worker_cycle_duration_seconds",
		Help:    "Wall time of one full worker cycle.",
		Buckets: prometheus.DefBuckets,
	})
)
