package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// События очереди для метрик и структурных логов.
const (
	EventEnqueue    = "enqueue"
	EventComplete   = "complete"
	EventFail       = "fail"
	EventRedeliver  = "redeliver"
	EventDeadLetter = "dead_letter"
	EventRequeue    = "requeue"
)

// JobStore — персистентность jobs. Реализуется repo.JobRepo.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	Update(ctx context.Context, job *domain.Job) error
	ListPending(ctx context.Context, limit int) ([]domain.Job, error)
	CountByStatus(ctx context.Context) (map[domain.JobStatus]int, error)
}

// DeadLetterStore — персистентность dead letters. Реализуется
// repo.DeadLetterRepo.
type DeadLetterStore interface {
	Create(ctx context.Context, dl *domain.DeadLetter) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DeadLetter, error)
	MarkRequeued(ctx context.Context, dl *domain.DeadLetter) error
}

// Dispatcher — публикация jobs в брокер. Реализуется mq.Publisher.
type Dispatcher interface {
	PublishJobReady(ctx context.Context, jobID uuid.UUID, priority int) error
	PublishJobDelayed(ctx context.Context, jobID uuid.UUID, attempt int, delay time.Duration) error
}

// Queue — сторона постановки: durable запись job в store плюс
// публикация в брокер для немедленной доставки.
//
// Job сначала персистится, потом публикуется: если брокер недоступен,
// постановка всё равно успешна — PENDING job подхватит polling-фолбэк
// worker'а.
type Queue struct {
	jobs        JobStore
	deadLetters DeadLetterStore
	dispatcher  Dispatcher
	logger      *slog.Logger
}

// Config — конфигурация Queue.
type Config struct {
	Jobs        JobStore
	DeadLetters DeadLetterStore

	// Dispatcher может быть nil: очередь работает в polling-only
	// режиме без брокера.
	Dispatcher Dispatcher

	Logger *slog.Logger
}

// New создаёт Queue.
func New(cfg Config) *Queue {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		jobs:        cfg.Jobs,
		deadLetters: cfg.DeadLetters,
		dispatcher:  cfg.Dispatcher,
		logger:      logger,
	}
}

// EnqueueOptions — необязательные параметры постановки.
type EnqueueOptions struct {
	// Priority — приоритет доставки, 0–9.
	Priority int

	// Delay — отложить первую доставку.
	Delay time.Duration

	// ID — явный ID для идемпотентной постановки. Повторная постановка
	// с тем же ID возвращает существующий ID без ошибки.
	ID uuid.UUID

	// OrgID, UserID — контекст исполнения, прокидывается в шаги.
	OrgID  string
	UserID string
}

// Enqueue ставит job в очередь и возвращает его ID.
func (q *Queue) Enqueue(ctx context.Context, workflowType string, payload map[string]any, opts EnqueueOptions) (uuid.UUID, error) {
	if workflowType == "" {
		return uuid.Nil, ErrEmptyWorkflowType
	}

	id := opts.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	job := &domain.Job{
		ID:           id,
		WorkflowType: workflowType,
		OrgID:        opts.OrgID,
		UserID:       opts.UserID,
		Payload:      payload,
		Status:       domain.JobStatusPending,
		Priority:     opts.Priority,
		CreatedAt:    time.Now(),
	}

	if err := q.jobs.Create(ctx, job); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			q.logger.Info("job already enqueued", "job_id", id)
			return id, nil
		}
		return uuid.Nil, fmt.Errorf("persist job: %w", err)
	}

	q.dispatch(ctx, job, opts.Delay)

	telemetry.QueueEventsTotal.WithLabelValues(EventEnqueue).Inc()
	q.logger.Info("job enqueued",
		"job_id", id,
		"workflow_type", workflowType,
		"priority", opts.Priority,
		"delay", opts.Delay,
	)
	return id, nil
}

// dispatch публикует job в брокер; ошибка публикации не фатальна.
func (q *Queue) dispatch(ctx context.Context, job *domain.Job, delay time.Duration) {
	if q.dispatcher == nil {
		return
	}

	var err error
	if delay > 0 {
		err = q.dispatcher.PublishJobDelayed(ctx, job.ID, 1, delay)
	} else {
		err = q.dispatcher.PublishJobReady(ctx, job.ID, job.Priority)
	}
	if err != nil {
		// PENDING job подберёт polling worker'а.
		q.logger.Warn("failed to publish job, relying on polling",
			"job_id", job.ID,
			"error", err,
		)
	}
}

// RequeueDeadLetter вручную ставит dead letter заново как новый job
// с исходным payload. Возвращает ID нового job.
func (q *Queue) RequeueDeadLetter(ctx context.Context, deadLetterID uuid.UUID) (uuid.UUID, error) {
	dl, err := q.deadLetters.GetByID(ctx, deadLetterID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("get dead letter: %w", err)
	}
	if dl.RequeuedJobID != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrAlreadyRequeued, deadLetterID)
	}

	jobID, err := q.Enqueue(ctx, dl.WorkflowType, dl.Payload, EnqueueOptions{})
	if err != nil {
		return uuid.Nil, fmt.Errorf("enqueue replay job: %w", err)
	}

	dl.MarkRequeued(jobID)
	if err := q.deadLetters.MarkRequeued(ctx, dl); err != nil {
		return uuid.Nil, fmt.Errorf("mark requeued: %w", err)
	}

	telemetry.QueueEventsTotal.WithLabelValues(EventRequeue).Inc()
	q.logger.Info("dead letter requeued",
		"dead_letter_id", deadLetterID,
		"original_job_id", dl.JobID,
		"new_job_id", jobID,
	)
	return jobID, nil
}
