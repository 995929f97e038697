package domain

// JobStatus — статус выполнения job.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED
//
// Обратных переходов нет: COMPLETED и FAILED — терминальные статусы.
type JobStatus string

const (
	// JobStatusPending — job создан, но ещё не начал выполняться.
	JobStatusPending JobStatus = "PENDING"

	// JobStatusRunning — job в процессе выполнения оркестратором.
	JobStatusRunning JobStatus = "RUNNING"

	// JobStatusPaused — зарезервировано. Исполнитель этот статус
	// никогда не выставляет; используется только внешними системами
	// с ручным pause/resume.
	JobStatusPaused JobStatus = "PAUSED"

	// JobStatusCompleted — job успешно завершён.
	JobStatusCompleted JobStatus = "COMPLETED"

	// JobStatusFailed — job завершился с ошибкой.
	JobStatusFailed JobStatus = "FAILED"
)

// IsValid возвращает true для известного статуса job.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusPaused, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal возвращает true, если статус финальный (job завершён).
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// StepStatus — статус выполнения шага внутри workflow.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED
//	PENDING → SKIPPED (шаги после фатальной ошибки)
type StepStatus string

const (
	// StepStatusPending — шаг ещё не начал выполняться.
	StepStatusPending StepStatus = "PENDING"

	// StepStatusRunning — шаг выполняется.
	StepStatusRunning StepStatus = "RUNNING"

	// StepStatusCompleted — шаг успешно завершён.
	StepStatusCompleted StepStatus = "COMPLETED"

	// StepStatusFailed — шаг завершился с ошибкой (после всех retry).
	StepStatusFailed StepStatus = "FAILED"

	// StepStatusSkipped — шаг не выполнялся: предыдущий обязательный
	// шаг упал. Записывается только для наблюдаемости.
	StepStatusSkipped StepStatus = "SKIPPED"
)

// IsTerminal возвращает true, если статус финальный.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusCompleted, StepStatusFailed, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// Severity — уровень важности флага, выставленного task unit'ом.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)
