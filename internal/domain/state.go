package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowState — персистентное представление прогресса job по плану.
//
// Обновляется оркестратором инкрементально: после инициализации и после
// каждого завершённого шага, чтобы статус был виден снаружи в любой момент.
type WorkflowState struct {
	// JobID — ссылка на job.
	JobID uuid.UUID `json:"job_id"`

	// Status — текущий статус workflow (совпадает со статусом job).
	Status JobStatus `json:"status"`

	// CurrentStepIndex — индекс текущего шага. Монотонно не убывает
	// и не превышает TotalSteps.
	CurrentStepIndex int `json:"current_step_index"`

	// TotalSteps — количество шагов в плане.
	TotalSteps int `json:"total_steps"`

	// StepResults — результаты шагов в порядке выполнения.
	StepResults []StepResult `json:"step_results"`

	// StartedAt — время начала выполнения.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt — время завершения.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error — ошибка workflow, если Status == FAILED.
	Error string `json:"error,omitempty"`
}

// StepResult — результат выполнения одного шага.
type StepResult struct {
	// StepID — идентификатор шага из плана.
	StepID string `json:"step_id"`

	// UnitName — имя task unit'а, выполнявшего шаг.
	UnitName string `json:"unit_name"`

	// Status — статус выполнения шага.
	Status StepStatus `json:"status"`

	// Output — результат unit'а. Nil для SKIPPED шагов.
	Output *TaskOutput `json:"output,omitempty"`

	// RetryCount — сколько повторов потребовалось (0 — успех с первой
	// попытки). Не превышает Step.Retry.MaxRetries.
	RetryCount int `json:"retry_count"`

	// StartedAt — время начала выполнения шага.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt — время завершения шага.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error — ошибка шага при неудаче.
	Error string `json:"error,omitempty"`
}

// TaskOutput — унифицированный результат task unit'а.
//
// Unit никогда не возвращает ошибку наружу: любой сбой превращается
// в TaskOutput{Success: false, Error: ...}.
type TaskOutput struct {
	// Success — завершился ли unit успешно.
	Success bool `json:"success"`

	// Data — полезный результат. Структура принадлежит unit'у.
	Data map[string]any `json:"data,omitempty"`

	// ConfidenceScore — уверенность модели в результате (0–1),
	// если unit вызывал inference.
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`

	// Flags — находки для downstream-потребителей.
	Flags []Flag `json:"flags,omitempty"`

	// NextSteps — подсказки о следующих действиях.
	NextSteps []string `json:"next_steps,omitempty"`

	// Logs — трассировка выполнения unit'а.
	Logs []string `json:"logs,omitempty"`

	// Error — текст ошибки при Success == false.
	Error string `json:"error,omitempty"`
}

// Flag — находка task unit'а с уровнем важности.
type Flag struct {
	// Severity — уровень важности: INFO, WARNING, ERROR, CRITICAL.
	Severity Severity `json:"severity"`

	// Category — категория находки (например, "validation", "quality").
	Category string `json:"category"`

	// Message — описание находки.
	Message string `json:"message"`

	// SuggestedAction — рекомендованное действие.
	SuggestedAction string `json:"suggested_action,omitempty"`
}

// NewWorkflowState создаёт state для начала выполнения job.
func NewWorkflowState(jobID uuid.UUID, totalSteps int) *WorkflowState {
	return &WorkflowState{
		JobID:       jobID,
		Status:      JobStatusRunning,
		TotalSteps:  totalSteps,
		StepResults: make([]StepResult, 0, totalSteps),
		StartedAt:   time.Now(),
	}
}

// AddStepResult добавляет результат шага и сдвигает CurrentStepIndex.
func (s *WorkflowState) AddStepResult(result StepResult) {
	s.StepResults = append(s.StepResults, result)
	if result.Status != StepStatusSkipped {
		s.CurrentStepIndex++
	}
}

// MarkCompleted завершает workflow успешно.
func (s *WorkflowState) MarkCompleted() {
	now := time.Now()
	s.Status = JobStatusCompleted
	s.CompletedAt = &now
}

// MarkFailed завершает workflow с ошибкой.
func (s *WorkflowState) MarkFailed(err string) {
	now := time.Now()
	s.Status = JobStatusFailed
	s.CompletedAt = &now
	s.Error = err
}

// Progress возвращает прогресс 0–100 по количеству пройденных шагов.
func (s *WorkflowState) Progress() int {
	if s.TotalSteps == 0 {
		return 100
	}
	p := float64(s.CurrentStepIndex) / float64(s.TotalSteps) * 100
	return int(p + 0.5)
}

// AggregateOutput собирает map stepId → output.data по всем шагам.
func (s *WorkflowState) AggregateOutput() map[string]any {
	out := make(map[string]any, len(s.StepResults))
	for i := range s.StepResults {
		r := &s.StepResults[i]
		if r.Output != nil {
			out[r.StepID] = r.Output.Data
		}
	}
	return out
}
