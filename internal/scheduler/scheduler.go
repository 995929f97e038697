package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/queue"
)

// ScheduleStore — персистентность schedules. Реализуется repo.ScheduleRepo.
type ScheduleStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error)
	Update(ctx context.Context, schedule *domain.Schedule) error
}

// Enqueuer — постановка jobs. Реализуется queue.Queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, workflowType string, payload map[string]any, opts queue.EnqueueOptions) (uuid.UUID, error)
}

// Scheduler — планировщик, ставящий jobs по due schedules.
type Scheduler struct {
	schedules ScheduleStore
	enqueuer  Enqueuer
	logger    *slog.Logger
	batchSize int
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules ScheduleStore
	Enqueuer  Enqueuer
	Logger    *slog.Logger
	BatchSize int // количество schedules за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		schedules: cfg.Schedules,
		enqueuer:  cfg.Enqueuer,
		logger:    logger,
		batchSize: batchSize,
	}
}

// Run выполняет Tick каждые interval до отмены контекста.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error("scheduler tick failed", "error", err)
			}
		}
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due schedules (enabled=true, next_due_at <= now)
// 2. Для каждого schedule ставит job в очередь
// 3. Обновляет next_due_at
//
// Ошибки одного schedule не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now()

	schedules, err := s.schedules.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	if len(schedules) == 0 {
		return nil
	}

	s.logger.Debug("found due schedules", "count", len(schedules))

	var processed int
	for i := range schedules {
		sched := &schedules[i]

		if err := s.processSchedule(ctx, sched, now); err != nil {
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			// Продолжаем обработку остальных
			continue
		}
		processed++
	}

	s.logger.Info("scheduler tick completed",
		"due", len(schedules),
		"processed", processed,
	)

	return nil
}

// processSchedule обрабатывает один schedule: ставит job и двигает
// next_due_at.
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) error {
	// Job ID детерминирован из schedule ID и конкретного next_due_at:
	// для одного schedule и одного срабатывания существует ровно один
	// job, сколько бы экземпляров scheduler'а ни тикнуло одновременно.
	jobID := deterministicJobID(sched)

	enqueuedID, err := s.enqueuer.Enqueue(ctx, sched.WorkflowType, sched.Payload, queue.EnqueueOptions{
		ID: jobID,
	})
	if err != nil {
		return fmt.Errorf("enqueue scheduled job: %w", err)
	}

	s.logger.Info("enqueued job from schedule",
		"job_id", enqueuedID,
		"schedule_id", sched.ID,
		"schedule_name", sched.Name,
		"workflow_type", sched.WorkflowType,
	)

	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		s.logger.Error("failed to calculate next due, leaving schedule as is",
			"schedule_id", sched.ID,
			"error", err,
		)
		// Schedule некорректный — лучше не трогать next_due_at
		return nil
	}

	sched.RecordRun(enqueuedID, nextDue)
	if err := s.schedules.Update(ctx, sched); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}

	return nil
}

// deterministicJobID выводит job ID из schedule и его next_due_at.
func deterministicJobID(sched *domain.Schedule) uuid.UUID {
	due := sched.CreatedAt
	if sched.NextDueAt != nil {
		due = *sched.NextDueAt
	}
	return uuid.NewSHA1(sched.ID, []byte(strconv.FormatInt(due.Unix(), 10)))
}
