package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeadLetter — job, исчерпавший бюджет доставок.
//
// Dead letter сохраняет исходный payload и причину падения для диагностики
// и ручного replay. Автоматически такие jobs никогда не перезапускаются.
type DeadLetter struct {
	// ID — идентификатор записи dead letter.
	ID uuid.UUID `json:"id"`

	// JobID — исходный job.
	JobID uuid.UUID `json:"job_id"`

	// WorkflowType — тип workflow исходного job.
	WorkflowType string `json:"workflow_type"`

	// Payload — исходный payload, байт-в-байт.
	Payload map[string]any `json:"payload,omitempty"`

	// Reason — причина последнего падения.
	Reason string `json:"reason"`

	// AttemptsMade — сколько доставок было сделано до эскалации.
	AttemptsMade int `json:"attempts_made"`

	// RequeuedAt — время ручного requeue, если был.
	RequeuedAt *time.Time `json:"requeued_at,omitempty"`

	// RequeuedJobID — ID нового job, созданного при requeue.
	RequeuedJobID *uuid.UUID `json:"requeued_job_id,omitempty"`

	// CreatedAt — время эскалации в dead letter.
	CreatedAt time.Time `json:"created_at"`
}

// MarkRequeued записывает информацию о ручном requeue.
func (d *DeadLetter) MarkRequeued(jobID uuid.UUID) {
	now := time.Now()
	d.RequeuedAt = &now
	d.RequeuedJobID = &jobID
}
