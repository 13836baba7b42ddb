package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finsight_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "finsight_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// Agent metrics
	AgentRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_agent_runs_total",
			Help: "Total number of orchestrator runs by terminal state",
		},
		[]string{"skill", "state"}, // state: DONE|DEGRADED_DONE
	)

	AgentCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_agent_model_calls_total",
			Help: "Total number of analysis provider calls",
		},
		[]string{"provider", "model", "status"}, // status: success|error
	)

	AgentLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finsight_agent_model_latency_seconds",
			Help:    "Analysis provider latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)

	// Tool metrics
	ToolExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_tool_executions_total",
			Help: "Total number of tool executions",
		},
		[]string{"tool", "status"}, // status: success|error|degraded
	)

	ToolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finsight_tool_latency_seconds",
			Help:    "Tool execution latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"tool"},
	)

	// Fallback metrics
	FallbackAdvances = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_fallback_advances_total",
			Help: "Candidates skipped after a soft failure",
		},
		[]string{"chain", "candidate"},
	)

	FallbackResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_fallback_resolved_total",
			Help: "Chain resolutions by answering candidate",
		},
		[]string{"chain", "source"},
	)

	// Task metrics
	TaskTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_task_transitions_total",
			Help: "Task status transitions",
		},
		[]string{"family", "status"},
	)

	TaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finsight_task_duration_seconds",
			Help:    "Task run time from start to terminal status",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"family"},
	)

	// Database metrics
	DBQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"database", "operation", "status"},
	)

	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finsight_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"database", "operation"},
	)

	// System metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_kafka_messages_total",
			Help: "Total number of Kafka messages published",
		},
		[]string{"topic", "status"},
	)
)

var initOnce sync.Once

// Init registers all metrics with Prometheus
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(WorkerExecutions)
		prometheus.MustRegister(WorkerDuration)
		prometheus.MustRegister(WorkerLastRun)

		prometheus.MustRegister(AgentRuns)
		prometheus.MustRegister(AgentCalls)
		prometheus.MustRegister(AgentLatency)

		prometheus.MustRegister(ToolExecutions)
		prometheus.MustRegister(ToolLatency)

		prometheus.MustRegister(FallbackAdvances)
		prometheus.MustRegister(FallbackResolved)

		prometheus.MustRegister(TaskTransitions)
		prometheus.MustRegister(TaskDuration)

		prometheus.MustRegister(DBQueries)
		prometheus.MustRegister(DBQueryDuration)

		prometheus.MustRegister(KafkaMessages)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	WorkerExecutions.WithLabelValues(worker, status(err)).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordModelCall records an analysis provider invocation
func RecordModelCall(provider, model string, latency time.Duration, err error) {
	AgentCalls.WithLabelValues(provider, model, status(err)).Inc()
	AgentLatency.WithLabelValues(provider, model).Observe(latency.Seconds())
}

// RecordAgentRun records the terminal state of an orchestrator run
func RecordAgentRun(skill, state string) {
	AgentRuns.WithLabelValues(skill, state).Inc()
}

// RecordToolExecution records a tool execution
func RecordToolExecution(tool string, latency time.Duration, degraded bool, err error) {
	s := status(err)
	if err == nil && degraded {
		s = "degraded"
	}
	ToolExecutions.WithLabelValues(tool, s).Inc()
	ToolLatency.WithLabelValues(tool).Observe(latency.Seconds())
}

// RecordFallbackAdvance records a candidate skipped on soft failure
func RecordFallbackAdvance(chain, candidate string) {
	FallbackAdvances.WithLabelValues(chain, candidate).Inc()
}

// RecordFallbackResolved records which candidate answered a chain
func RecordFallbackResolved(chain, source string) {
	FallbackResolved.WithLabelValues(chain, source).Inc()
}

// RecordTaskTransition records a task status change
func RecordTaskTransition(family, status string) {
	TaskTransitions.WithLabelValues(family, status).Inc()
}

// RecordTaskDuration records run time of a finished task
func RecordTaskDuration(family string, d time.Duration) {
	TaskDuration.WithLabelValues(family).Observe(d.Seconds())
}

// RecordDBQuery records a database query
func RecordDBQuery(database, operation string, duration time.Duration, err error) {
	DBQueries.WithLabelValues(database, operation, status(err)).Inc()
	DBQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// RecordKafkaMessage records a published message
func RecordKafkaMessage(topic string, err error) {
	KafkaMessages.WithLabelValues(topic, status(err)).Inc()
}
