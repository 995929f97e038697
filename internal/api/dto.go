package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/breaker"
	"github.com/shaiso/Conveyor/internal/domain"
)

// Job DTOs

// CreateJobRequest — запрос на постановку job.
type CreateJobRequest struct {
	WorkflowType string         `json:"workflow_type"`
	Payload      map[string]any `json:"payload,omitempty"`
	Priority     int            `json:"priority,omitempty"`
	DelayMs      int            `json:"delay_ms,omitempty"`
	OrgID        string         `json:"org_id,omitempty"`
	UserID       string         `json:"user_id,omitempty"`

	// ID — явный job ID для идемпотентной постановки.
	ID *uuid.UUID `json:"id,omitempty"`
}

// JobResponse — ответ с job.
type JobResponse struct {
	ID           uuid.UUID      `json:"id"`
	WorkflowType string         `json:"workflow_type"`
	OrgID        string         `json:"org_id,omitempty"`
	UserID       string         `json:"user_id,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	Status       string         `json:"status"`
	Progress     int            `json:"progress"`
	Output       map[string]any `json:"output,omitempty"`
	Error        string         `json:"error,omitempty"`
	Priority     int            `json:"priority,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// JobFromDomain конвертирует domain.Job в JobResponse.
func JobFromDomain(j domain.Job) JobResponse {
	return JobResponse{
		ID:           j.ID,
		WorkflowType: j.WorkflowType,
		OrgID:        j.OrgID,
		UserID:       j.UserID,
		Payload:      j.Payload,
		Status:       string(j.Status),
		Progress:     j.Progress,
		Output:       j.Output,
		Error:        j.Error,
		Priority:     j.Priority,
		CreatedAt:    j.CreatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}

// Workflow state DTOs

// StateResponse — ответ с прогрессом workflow.
type StateResponse struct {
	JobID            uuid.UUID           `json:"job_id"`
	Status           string              `json:"status"`
	CurrentStepIndex int                 `json:"current_step_index"`
	TotalSteps       int                 `json:"total_steps"`
	Progress         int                 `json:"progress"`
	StepResults      []domain.StepResult `json:"step_results"`
	StartedAt        time.Time           `json:"started_at"`
	CompletedAt      *time.Time          `json:"completed_at,omitempty"`
	Error            string              `json:"error,omitempty"`
}

// StateFromDomain конвертирует domain.WorkflowState в StateResponse.
func StateFromDomain(s *domain.WorkflowState) StateResponse {
	return StateResponse{
		JobID:            s.JobID,
		Status:           string(s.Status),
		CurrentStepIndex: s.CurrentStepIndex,
		TotalSteps:       s.TotalSteps,
		Progress:         s.Progress(),
		StepResults:      s.StepResults,
		StartedAt:        s.StartedAt,
		CompletedAt:      s.CompletedAt,
		Error:            s.Error,
	}
}

// Plan DTOs

// PlanResponse — ответ с планом workflow.
type PlanResponse struct {
	WorkflowType string         `json:"workflow_type"`
	Description  string         `json:"description,omitempty"`
	Steps        []StepResponse `json:"steps"`
}

// StepResponse — описание одного шага плана.
type StepResponse struct {
	StepID     string `json:"step_id"`
	UnitName   string `json:"unit_name"`
	MaxRetries int    `json:"max_retries"`
	BackoffMs  int    `json:"backoff_ms"`
	TimeoutMs  int    `json:"timeout_ms,omitempty"`
	Optional   bool   `json:"optional,omitempty"`
}

// PlanFromDomain конвертирует domain.WorkflowPlan в PlanResponse.
func PlanFromDomain(p *domain.WorkflowPlan) PlanResponse {
	steps := make([]StepResponse, len(p.Steps))
	for i, s := range p.Steps {
		steps[i] = StepResponse{
			StepID:     s.StepID,
			UnitName:   s.UnitName,
			MaxRetries: s.Retry.MaxRetries,
			BackoffMs:  s.Retry.BackoffMs,
			TimeoutMs:  s.TimeoutMs,
			Optional:   s.Optional,
		}
	}
	return PlanResponse{
		WorkflowType: p.WorkflowType,
		Description:  p.Description,
		Steps:        steps,
	}
}

// Dead letter DTOs

// DeadLetterResponse — ответ с dead letter.
type DeadLetterResponse struct {
	ID            uuid.UUID      `json:"id"`
	JobID         uuid.UUID      `json:"job_id"`
	WorkflowType  string         `json:"workflow_type"`
	Payload       map[string]any `json:"payload,omitempty"`
	Reason        string         `json:"reason"`
	AttemptsMade  int            `json:"attempts_made"`
	RequeuedAt    *time.Time     `json:"requeued_at,omitempty"`
	RequeuedJobID *uuid.UUID     `json:"requeued_job_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// DeadLetterFromDomain конвертирует domain.DeadLetter в DeadLetterResponse.
func DeadLetterFromDomain(d domain.DeadLetter) DeadLetterResponse {
	return DeadLetterResponse{
		ID:            d.ID,
		JobID:         d.JobID,
		WorkflowType:  d.WorkflowType,
		Payload:       d.Payload,
		Reason:        d.Reason,
		AttemptsMade:  d.AttemptsMade,
		RequeuedAt:    d.RequeuedAt,
		RequeuedJobID: d.RequeuedJobID,
		CreatedAt:     d.CreatedAt,
	}
}

// RequeueResponse — ответ на requeue dead letter.
type RequeueResponse struct {
	DeadLetterID uuid.UUID `json:"dead_letter_id"`
	NewJobID     uuid.UUID `json:"new_job_id"`
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule.
type CreateScheduleRequest struct {
	Name         string         `json:"name"`
	WorkflowType string         `json:"workflow_type"`
	CronExpr     string         `json:"cron_expr,omitempty"`
	IntervalSec  int            `json:"interval_sec,omitempty"`
	Timezone     string         `json:"timezone,omitempty"`
	Enabled      bool           `json:"enabled"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ с schedule.
type ScheduleResponse struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	WorkflowType string         `json:"workflow_type"`
	CronExpr     string         `json:"cron_expr,omitempty"`
	IntervalSec  int            `json:"interval_sec,omitempty"`
	Timezone     string         `json:"timezone"`
	Enabled      bool           `json:"enabled"`
	NextDueAt    *time.Time     `json:"next_due_at,omitempty"`
	LastRunAt    *time.Time     `json:"last_run_at,omitempty"`
	LastJobID    *uuid.UUID     `json:"last_job_id,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:           s.ID,
		Name:         s.Name,
		WorkflowType: s.WorkflowType,
		CronExpr:     s.CronExpr,
		IntervalSec:  s.IntervalSec,
		Timezone:     s.Timezone,
		Enabled:      s.Enabled,
		NextDueAt:    s.NextDueAt,
		LastRunAt:    s.LastRunAt,
		LastJobID:    s.LastJobID,
		Payload:      s.Payload,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// Breaker DTOs

// BreakerResponse — срез состояния circuit breaker'а.
type BreakerResponse = breaker.Snapshot
