package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(tasksSubmittedTotal, tasksFinishedTotal, taskDurationSeconds, tasksStalled) }

var tasksSubmittedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tasks_submitted_total",
		Help: "Tasks accepted by the orchestrator, labeled by kind.",
	},
	[]string{"kind"},
)

var tasksFinishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tasks_finished_total",
		Help: "Tasks reaching a terminal state, labeled by kind and status.",
	},
	[]string{"kind", "status"},
)

var taskDurationSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "task_duration_seconds",
		Help:    "Wall-clock task execution time from STARTED to terminal.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 120, 300, 600},
	},
	[]string{"kind"},
)

var tasksStalled = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tasks_stalled_total",
		Help: "Active tasks observed with no update past the stall window.",
	},
	[]string{"kind"},
)

func IncTaskSubmitted(kind string) { tasksSubmittedTotal.WithLabelValues(norm(kind)).Inc() }

func ObserveTaskFinished(kind, status string, seconds float64) {
	tasksFinishedTotal.WithLabelValues(norm(kind), norm(status)).Inc()
	taskDurationSeconds.WithLabelValues(norm(kind)).Observe(seconds)
}

func IncTaskStalled(kind string) { tasksStalled.WithLabelValues(norm(kind)).Inc() }
