package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — расписание автоматической постановки jobs.
//
// Schedule позволяет ставить job в очередь:
// - По cron-выражению: "0 9 * * *" (каждый день в 9:00)
// - По интервалу: каждые N секунд
//
// Scheduler проверяет next_due_at и ставит job, когда время подошло.
type Schedule struct {
	// ID — уникальный идентификатор schedule.
	ID uuid.UUID `json:"id"`

	// Name — имя расписания для удобства.
	Name string `json:"name,omitempty"`

	// WorkflowType — тип workflow, который нужно ставить в очередь.
	WorkflowType string `json:"workflow_type"`

	// CronExpr — cron-выражение: "минуты часы дни месяцы дни_недели".
	// Если задан CronExpr, IntervalSec игнорируется.
	CronExpr string `json:"cron_expr,omitempty"`

	// IntervalSec — интервал в секундах между постановками.
	// Используется если CronExpr не задан.
	IntervalSec int `json:"interval_sec,omitempty"`

	// Timezone — часовой пояс для вычисления времени. По умолчанию UTC.
	Timezone string `json:"timezone"`

	// Enabled — флаг активности расписания.
	Enabled bool `json:"enabled"`

	// NextDueAt — время следующей постановки.
	NextDueAt *time.Time `json:"next_due_at,omitempty"`

	// LastRunAt — время последней постановки.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// LastJobID — ID последнего поставленного job.
	LastJobID *uuid.UUID `json:"last_job_id,omitempty"`

	// Payload — payload для каждого поставленного job.
	Payload map[string]any `json:"payload,omitempty"`

	// CreatedAt — время создания schedule.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsCron возвращает true, если расписание использует cron-выражение.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true, если расписание использует интервал.
func (s *Schedule) IsInterval() bool {
	return s.CronExpr == "" && s.IntervalSec > 0
}

// IsDue проверяет, пора ли ставить job.
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.Enabled {
		return false
	}
	if s.NextDueAt == nil {
		return false
	}
	return !now.Before(*s.NextDueAt)
}

// RecordRun записывает информацию о постановке.
func (s *Schedule) RecordRun(jobID uuid.UUID, nextDue time.Time) {
	now := time.Now()
	s.LastRunAt = &now
	s.LastJobID = &jobID
	s.NextDueAt = &nextDue
	s.UpdatedAt = now
}
