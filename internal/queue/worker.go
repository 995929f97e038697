package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/retry"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// Default configuration values.
const (
	defaultConcurrency  = 4
	defaultMaxAttempts  = 3
	defaultBackoffBase  = 2 * time.Second
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 50
)

// Executor — выполнение одного job. Реализуется orchestrator.Orchestrator.
type Executor interface {
	Execute(ctx context.Context, jobID uuid.UUID) (*domain.WorkflowState, error)
}

// Worker — потребляющая сторона очереди: пул из N обработчиков
// с at-least-once доставкой, redelivery backoff и dead-letter эскалацией.
//
// Worker:
//   - Получает jobs из jobs.ready (event-driven, по consumer'у на слот)
//   - Периодически проверяет PENDING jobs в БД (polling fallback)
//   - Выполняет job через Orchestrator
//   - Повторяет доставку до MaxAttempts с экспоненциальной задержкой
//   - Эскалирует исчерпавшие попытки jobs в dead letter store
//
// Workers масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди.
type Worker struct {
	jobs        JobStore
	deadLetters DeadLetterStore
	executor    Executor

	dispatcher Dispatcher
	conn       *mq.Connection

	consumers []*mq.Consumer

	concurrency  int
	maxAttempts  int
	backoffBase  time.Duration
	pollInterval time.Duration
	batchSize    int

	// Попытки доставок, сделанные через polling (jobID → count).
	// Брокерные доставки несут счётчик в сообщении, polling — нет.
	pollAttempts   map[uuid.UUID]int
	pollAttemptsMu sync.Mutex

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// WorkerConfig — конфигурация Worker.
type WorkerConfig struct {
	Jobs        JobStore
	DeadLetters DeadLetterStore
	Executor    Executor

	// MQ. Conn может быть nil — worker работает в polling-only режиме.
	Dispatcher Dispatcher
	Conn       *mq.Connection

	// Concurrency — размер пула обработчиков (default: 4).
	Concurrency int

	// MaxAttempts — бюджет доставок до dead letter (default: 3).
	MaxAttempts int

	// BackoffBase — базовая задержка redelivery (default: 2s).
	// Задержка перед доставкой k+1: BackoffBase * 2^(k-1).
	BackoffBase time.Duration

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество jobs за один poll (default: 50)

	Logger *slog.Logger
}

// NewWorker создаёт новый Worker.
func NewWorker(cfg WorkerConfig) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	backoffBase := cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = defaultBackoffBase
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		jobs:         cfg.Jobs,
		deadLetters:  cfg.DeadLetters,
		executor:     cfg.Executor,
		dispatcher:   cfg.Dispatcher,
		conn:         cfg.Conn,
		concurrency:  concurrency,
		maxAttempts:  maxAttempts,
		backoffBase:  backoffBase,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		pollAttempts: make(map[uuid.UUID]int),
		logger:       logger,
	}
}

// Start запускает Worker.
//
// Запускает consumer на каждый слот пула (брокер раздаёт jobs между
// ними с prefetch=1, что и даёт ограничение в N одновременных jobs)
// и polling горутину для fallback.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting queue worker",
		"concurrency", w.concurrency,
		"max_attempts", w.maxAttempts,
		"backoff_base", w.backoffBase,
		"poll_interval", w.pollInterval,
	)

	if w.conn != nil {
		for i := 0; i < w.concurrency; i++ {
			consumer := mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
				Handler:  w.processJob,
				Prefetch: 1,
			})
			w.consumers = append(w.consumers, consumer)

			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					w.logger.Error("job consumer error", "error", err)
				}
			}()
		}
	} else {
		w.logger.Warn("no broker connection, running in polling-only mode")
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	w.logger.Info("queue worker started")
	return nil
}

// Stop останавливает Worker и дожидается in-flight jobs.
func (w *Worker) Stop() {
	w.logger.Info("stopping queue worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	for _, c := range w.consumers {
		c.Stop()
	}

	w.wg.Wait()
	w.logger.Info("queue worker stopped")
}

// processJob выполняет одну доставку job. Сигнатура совпадает с
// mq.JobHandler: брокерные доставки попадают сюда напрямую из consumer'а,
// polling-фолбэк вызывает его сам.
//
// Ошибки оркестратора делятся на два класса:
//   - нет ошибки: job дошёл до терминального статуса, доставка закрыта;
//   - инфраструктурная ошибка: доставка провалена — redelivery с
//     задержкой, после MaxAttempts — dead letter.
func (w *Worker) processJob(ctx context.Context, jobID uuid.UUID, attempt int) error {
	logger := w.logger.With("job_id", jobID, "attempt", attempt)
	logger.Info("job delivery started")

	state, err := w.executor.Execute(ctx, jobID)
	if err == nil {
		w.clearPollAttempts(jobID)

		event := EventComplete
		if state.Status == domain.JobStatusFailed {
			event = EventFail
		}
		telemetry.QueueEventsTotal.WithLabelValues(event).Inc()
		logger.Info("job delivery finished", "status", state.Status)
		return nil
	}

	logger.Warn("job delivery failed", "error", err)

	if attempt >= w.maxAttempts {
		return w.deadLetter(ctx, jobID, err, attempt)
	}

	return w.redeliver(ctx, jobID, attempt, err)
}

// redeliver публикует повторную доставку с экспоненциальной задержкой.
func (w *Worker) redeliver(ctx context.Context, jobID uuid.UUID, attempt int, cause error) error {
	delay := retry.Delay(w.backoffBase, attempt)

	if w.dispatcher == nil {
		// Polling-only режим: PENDING job вернётся следующим poll'ом,
		// без задержки управлять нечем.
		w.logger.Warn("no dispatcher for redelivery, job stays pending",
			"job_id", jobID,
		)
		return nil
	}

	if err := w.dispatcher.PublishJobDelayed(ctx, jobID, attempt+1, delay); err != nil {
		// Не удалось запланировать redelivery — возвращаем ошибку,
		// чтобы доставка вернулась в очередь немедленно.
		return fmt.Errorf("schedule redelivery: %w", err)
	}

	telemetry.QueueEventsTotal.WithLabelValues(EventRedeliver).Inc()
	w.logger.Info("job redelivery scheduled",
		"job_id", jobID,
		"next_attempt", attempt+1,
		"delay", delay,
		"cause", cause,
	)
	return nil
}

// deadLetter эскалирует job в dead letter store.
//
// Исходный payload сохраняется без изменений для диагностики и
// ручного replay.
func (w *Worker) deadLetter(ctx context.Context, jobID uuid.UUID, cause error, attempts int) error {
	w.clearPollAttempts(jobID)

	job, err := w.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job for dead letter: %w", err)
	}

	dl := &domain.DeadLetter{
		ID:           uuid.New(),
		JobID:        job.ID,
		WorkflowType: job.WorkflowType,
		Payload:      job.Payload,
		Reason:       cause.Error(),
		AttemptsMade: attempts,
		CreatedAt:    time.Now(),
	}
	if err := w.deadLetters.Create(ctx, dl); err != nil {
		return fmt.Errorf("persist dead letter: %w", err)
	}

	// Job больше не будет доставляться — фиксируем терминальный статус.
	if !job.IsFinished() {
		job.MarkFailed(fmt.Sprintf("dead lettered after %d attempts: %s", attempts, cause))
		if err := w.jobs.Update(ctx, job); err != nil {
			w.logger.Error("failed to mark dead lettered job", "job_id", jobID, "error", err)
		}
	}

	telemetry.QueueEventsTotal.WithLabelValues(EventDeadLetter).Inc()
	w.logger.Error("job dead lettered",
		"job_id", jobID,
		"dead_letter_id", dl.ID,
		"attempts_made", attempts,
		"reason", cause,
	)
	return nil
}

// pollLoop — цикл polling для fallback.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем jobs, созданные
	// пока worker был выключен)
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (w *Worker) poll(ctx context.Context) {
	jobs, err := w.jobs.ListPending(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list pending jobs", "error", err)
		return
	}

	if len(jobs) == 0 {
		return
	}

	w.logger.Debug("poll found pending jobs", "count", len(jobs))

	for i := range jobs {
		job := &jobs[i]

		attempt := w.nextPollAttempt(job.ID)
		if err := w.processJob(ctx, job.ID, attempt); err != nil {
			w.logger.Error("failed to process job from poll",
				"job_id", job.ID,
				"error", err,
			)
		}
	}
}

// nextPollAttempt увеличивает и возвращает счётчик polling-доставок.
func (w *Worker) nextPollAttempt(jobID uuid.UUID) int {
	w.pollAttemptsMu.Lock()
	defer w.pollAttemptsMu.Unlock()
	w.pollAttempts[jobID]++
	return w.pollAttempts[jobID]
}

// clearPollAttempts забывает счётчик после закрытия доставки.
func (w *Worker) clearPollAttempts(jobID uuid.UUID) {
	w.pollAttemptsMu.Lock()
	defer w.pollAttemptsMu.Unlock()
	delete(w.pollAttempts, jobID)
}
