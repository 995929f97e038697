package domain

import (
	"time"

	"github.com/google/uuid"
)

// Job — единица работы в очереди.
//
// Job создаётся внешним отправителем (API, scheduler, dead-letter requeue)
// и мутируется только оркестратором во время выполнения. После перехода
// в COMPLETED или FAILED job не изменяется.
type Job struct {
	// ID — уникальный идентификатор job.
	// Может быть задан отправителем явно для идемпотентной постановки.
	ID uuid.UUID `json:"id"`

	// WorkflowType — имя типа workflow (например, "document-intake").
	// По нему оркестратор находит WorkflowPlan.
	WorkflowType string `json:"workflow_type"`

	// OrgID — организация, от имени которой выполняется job.
	// Прокидывается в input каждого шага.
	OrgID string `json:"org_id,omitempty"`

	// UserID — пользователь, инициировавший job.
	UserID string `json:"user_id,omitempty"`

	// Payload — входные данные workflow. Структура принадлежит
	// task unit'ам, ядро её не интерпретирует.
	Payload map[string]any `json:"payload,omitempty"`

	// Status — текущий статус выполнения.
	Status JobStatus `json:"status"`

	// Progress — прогресс выполнения, 0–100.
	Progress int `json:"progress"`

	// Output — агрегированный результат: stepId → output.data.
	// Заполняется при успешном завершении.
	Output map[string]any `json:"output,omitempty"`

	// Error — текст ошибки, если job завершился с FAILED.
	Error string `json:"error,omitempty"`

	// Priority — приоритет доставки в очереди (0–9, больше = раньше).
	Priority int `json:"priority,omitempty"`

	// CreatedAt — время создания job.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — время завершения (успешного или с ошибкой).
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если job ещё не завершён.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

// IsFinished возвращает true, если job завершён.
func (j *Job) IsFinished() bool {
	return j.Status.IsTerminal()
}

// MarkRunning переводит job в статус RUNNING.
func (j *Job) MarkRunning() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Progress = 0
}

// MarkCompleted переводит job в статус COMPLETED с агрегированным output.
func (j *Job) MarkCompleted(output map[string]any) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.Output = output
	j.Progress = 100
}

// MarkFailed переводит job в статус FAILED с ошибкой.
func (j *Job) MarkFailed(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}
