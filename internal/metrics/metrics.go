// Package metrics provides Prometheus metrics for jobs, groups and event dispatch.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels are bounded: kind is job|serial|concurrent, state is a core.State,
// outcome is handled|unhandled|failed. No event or job names in labels.

var (
	// RunnableTotal counts runnables reaching a terminal state.
	RunnableTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brigadier_runnable_total",
		Help: "Total number of runnables that reached a terminal state, by kind and state.",
	}, []string{"kind", "state"})

	// RunnableDuration observes wall time from Running to terminal.
	RunnableDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "brigadier_runnable_duration_seconds",
		Help:    "Duration of runnables from start to terminal state, by kind.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 3600},
	}, []string{"kind"})

	// HostCancelTotal counts cancel requests sent to the job host, by reason.
	HostCancelTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brigadier_host_cancel_total",
		Help: "Total number of cancel requests issued to the job host, by reason (timeout/cancel).",
	}, []string{"reason"})

	// DispatchTotal counts event dispatches by outcome.
	DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brigadier_dispatch_total",
		Help: "Total number of event dispatches, by outcome (handled/unhandled/failed).",
	}, []string{"outcome"})

	// HandlerFailureTotal counts individual handler failures.
	HandlerFailureTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brigadier_handler_failure_total",
		Help: "Total number of event handler invocations that returned an error or panicked.",
	})

	// PipelineTotal counts declarative pipeline runs by result (succeeded/failed).
	PipelineTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brigadier_pipeline_total",
		Help: "Total number of declarative pipeline runs, by result.",
	}, []string{"result"})

	// QueueDepth tracks events waiting in the dispatcher queue.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "brigadier_event_queue_depth",
		Help: "Current number of events waiting to be processed.",
	})
)

// ObserveRunnable records a runnable reaching a terminal state.
func ObserveRunnable(kind, state string, elapsed time.Duration) {
	RunnableTotal.WithLabelValues(kind, state).Inc()
	RunnableDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}
