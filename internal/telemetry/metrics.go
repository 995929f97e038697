package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики ядра. Все счётчики и гистограммы ключуются
// {component, name, outcome}, чтобы один dashboard покрывал
// unit'ы, breaker'ы и очередь единообразно.
var (
	// ExecutionsTotal — количество выполнений по компонентам.
	// component: "unit", "breaker", "retry", "queue", "orchestrator"
	// name: имя unit'а / breaker'а / типа workflow
	// outcome: "success", "failure", "timeout", "short_circuit", ...
	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_executions_total",
		Help: "Executions by component, name and outcome",
	}, []string{"component", "name", "outcome"})

	// ExecutionDuration — длительность выполнений в секундах.
	ExecutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "conveyor_execution_duration_seconds",
		Help:    "Execution duration by component, name and outcome",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms .. ~40s
	}, []string{"component", "name", "outcome"})

	// QueueEventsTotal — события очереди: enqueue, complete, fail,
	// redeliver, dead_letter, stall.
	QueueEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_queue_events_total",
		Help: "Queue lifecycle events",
	}, []string{"event"})

	// QueueDepth — глубина очереди по состояниям: waiting, active, delayed.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "conveyor_queue_depth",
		Help: "Sampled queue depth by state",
	}, []string{"state"})

	// BreakerState — состояние circuit breaker'а:
	// 0 = CLOSED, 1 = OPEN, 2 = HALF_OPEN.
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "conveyor_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"name"})

	// RetryAttemptsTotal — повторные попытки по имени операции.
	RetryAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_retry_attempts_total",
		Help: "Retry attempts by operation name",
	}, []string{"name"})
)

// Outcome-константы для единообразия меток.
const (
	OutcomeSuccess      = "success"
	OutcomeFailure      = "failure"
	OutcomeTimeout      = "timeout"
	OutcomeShortCircuit = "short_circuit"
	OutcomeInvalidInput = "invalid_input"
)

// ObserveExecution записывает одно выполнение: счётчик + гистограмма.
func ObserveExecution(component, name, outcome string, seconds float64) {
	ExecutionsTotal.WithLabelValues(component, name, outcome).Inc()
	ExecutionDuration.WithLabelValues(component, name, outcome).Observe(seconds)
}
