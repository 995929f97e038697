package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/plan"
	"github.com/shaiso/Conveyor/internal/retry"
	"github.com/shaiso/Conveyor/internal/telemetry"
	"github.com/shaiso/Conveyor/internal/unit"
)

// JobStore — доступ к jobs. Реализуется repo.JobRepo.
type JobStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	Update(ctx context.Context, job *domain.Job) error
}

// StateStore — доступ к workflow states. Реализуется repo.StateRepo.
type StateStore interface {
	Save(ctx context.Context, state *domain.WorkflowState) error
}

// Orchestrator выполняет план одного job: двигает state machine
// PENDING → RUNNING → {COMPLETED, FAILED}, персистит прогресс после
// каждого шага и агрегирует результаты.
//
// Оркестратор строго последователен внутри одного job; параллелизм
// между jobs обеспечивает пул worker'ов очереди.
type Orchestrator struct {
	jobs   JobStore
	states StateStore
	plans  *plan.Registry
	units  *unit.Registry
	runner *unit.Runner
	retry  *retry.Executor
	logger *slog.Logger
}

// Config — конфигурация Orchestrator.
type Config struct {
	Jobs   JobStore
	States StateStore
	Plans  *plan.Registry
	Units  *unit.Registry

	// Retry — executor повторов шагов. Если nil, создаётся
	// executor с настоящими часами.
	Retry *retry.Executor

	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	retryExec := cfg.Retry
	if retryExec == nil {
		retryExec = retry.New(logger)
	}

	return &Orchestrator{
		jobs:   cfg.Jobs,
		states: cfg.States,
		plans:  cfg.Plans,
		units:  cfg.Units,
		runner: unit.NewRunner(logger),
		retry:  retryExec,
		logger: logger,
	}
}

// Execute выполняет план для job и возвращает финальный state.
//
// Ошибка возвращается только при сбоях инфраструктуры (store недоступен,
// план не найден) — такие ошибки пробрасываются наружу, чтобы сработала
// политика redelivery очереди. Провал шага ошибкой не является: он
// фиксируется в state, и Execute возвращает state со статусом FAILED.
//
// Повторный вызов для того же job начинает план с нулевого шага.
func (o *Orchestrator) Execute(ctx context.Context, jobID uuid.UUID) (*domain.WorkflowState, error) {
	start := time.Now()
	logger := o.logger.With("job_id", jobID)

	// 1. Загружаем job. NotFound фатален для этого вызова;
	// очередь может повторить доставку сама.
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrJobNotFound, jobID, err)
	}

	if job.IsFinished() {
		logger.Info("job already finished, skipping", "status", job.Status)
		return finishedState(job), nil
	}

	// 2. Находим план. Неизвестный workflow type фатален и
	// детектируется до любой записи статуса RUNNING.
	p, err := o.plans.Get(job.WorkflowType)
	if err != nil {
		return nil, fmt.Errorf("resolve plan for job %s: %w", jobID, err)
	}

	logger = logger.With("workflow_type", job.WorkflowType)
	logger.Info("workflow started", "total_steps", len(p.Steps))

	// 3. Инициализируем состояние и персистим RUNNING, progress=0.
	job.MarkRunning()
	if err := o.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("persist running status: %w", err)
	}

	state := domain.NewWorkflowState(job.ID, len(p.Steps))
	if err := o.states.Save(ctx, state); err != nil {
		return nil, o.failJob(ctx, job, state, fmt.Errorf("persist initial state: %w", err))
	}

	// 4. Выполняем шаги строго последовательно.
	for i := range p.Steps {
		step := &p.Steps[i]
		stepLogger := logger.With("step_id", step.StepID, "unit", step.UnitName)

		result := o.executeStep(ctx, step, job, state, stepLogger)
		state.AddStepResult(result)

		// Прогресс персистится после каждого шага, чтобы статус
		// был виден снаружи в любой момент.
		job.Progress = state.Progress()
		if err := o.jobs.Update(ctx, job); err != nil {
			return nil, o.failJob(ctx, job, state, fmt.Errorf("persist progress: %w", err))
		}
		if err := o.states.Save(ctx, state); err != nil {
			return nil, o.failJob(ctx, job, state, fmt.Errorf("persist state: %w", err))
		}

		if result.Status != domain.StepStatusFailed {
			continue
		}

		if step.Optional {
			stepLogger.Warn("optional step failed, continuing", "error", result.Error)
			continue
		}

		// Обязательный шаг упал: оставшиеся шаги помечаются SKIPPED
		// для наблюдаемости, workflow завершается с FAILED.
		o.skipRemaining(state, p.Steps[i+1:])
		state.MarkFailed(result.Error)
		job.MarkFailed(result.Error)

		if err := o.persistFinal(ctx, job, state); err != nil {
			return nil, err
		}

		telemetry.ObserveExecution("orchestrator", job.WorkflowType,
			telemetry.OutcomeFailure, time.Since(start).Seconds())
		logger.Info("workflow failed",
			"step_id", step.StepID,
			"error", result.Error,
			"duration", time.Since(start),
		)
		return state, nil
	}

	// 5. Все шаги пройдены: агрегируем output и завершаем.
	state.MarkCompleted()
	job.MarkCompleted(state.AggregateOutput())

	if err := o.persistFinal(ctx, job, state); err != nil {
		return nil, err
	}

	telemetry.ObserveExecution("orchestrator", job.WorkflowType,
		telemetry.OutcomeSuccess, time.Since(start).Seconds())
	logger.Info("workflow completed", "duration", time.Since(start))
	return state, nil
}

// executeStep выполняет один шаг с retry и возвращает его результат.
func (o *Orchestrator) executeStep(ctx context.Context, step *domain.Step, job *domain.Job, state *domain.WorkflowState, logger *slog.Logger) domain.StepResult {
	result := domain.StepResult{
		StepID:    step.StepID,
		UnitName:  step.UnitName,
		Status:    domain.StepStatusRunning,
		StartedAt: time.Now(),
	}

	finish := func(status domain.StepStatus, errMsg string) domain.StepResult {
		now := time.Now()
		result.Status = status
		result.CompletedAt = &now
		result.Error = errMsg
		return result
	}

	// Отсутствующий unit — провал без retry: повторы не помогут.
	u, err := o.units.Get(step.UnitName)
	if err != nil {
		logger.Error("task unit not found", "error", err)
		return finish(domain.StepStatusFailed, err.Error())
	}

	input := plan.BuildInput(step, job, state)

	// Таймаут шага покрывает весь запуск, включая retry-паузы.
	stepCtx := ctx
	if step.TimeoutMs > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, step.Timeout())
		defer cancel()
	}

	// Unit никогда не возвращает ошибку наружу, поэтому "провал" для
	// retry-адаптера — это output.Success == false.
	var lastOutput *domain.TaskOutput
	attempts := 0
	retryErr := o.retry.Execute(stepCtx, step.StepID, step.Retry.MaxRetries, step.Retry.Backoff(),
		func(ctx context.Context) error {
			attempts++
			lastOutput = o.runner.Run(ctx, u, input)
			if !lastOutput.Success {
				if rle := rateLimitFromOutput(lastOutput); rle != nil {
					return rle
				}
				return fmt.Errorf("%w: %s", ErrStepFailed, lastOutput.Error)
			}
			return nil
		})

	result.RetryCount = attempts - 1
	result.Output = lastOutput

	if retryErr == nil {
		logger.Info("step completed", "retry_count", result.RetryCount)
		return finish(domain.StepStatusCompleted, "")
	}

	// Таймаут или отмена прерывает ожидание внутри executor'а и
	// возвращается как ошибка без output.
	if lastOutput == nil || errors.Is(retryErr, context.DeadlineExceeded) {
		errMsg := retryErr.Error()
		if errors.Is(retryErr, context.DeadlineExceeded) {
			errMsg = fmt.Sprintf("%s after %s", ErrStepTimeout, step.Timeout())
		}
		logger.Error("step aborted", "error", errMsg, "retry_count", result.RetryCount)
		return finish(domain.StepStatusFailed, errMsg)
	}

	logger.Error("step failed", "error", lastOutput.Error, "retry_count", result.RetryCount)
	return finish(domain.StepStatusFailed, lastOutput.Error)
}

// skipRemaining помечает невыполненные шаги как SKIPPED.
func (o *Orchestrator) skipRemaining(state *domain.WorkflowState, remaining []domain.Step) {
	now := time.Now()
	for i := range remaining {
		state.AddStepResult(domain.StepResult{
			StepID:      remaining[i].StepID,
			UnitName:    remaining[i].UnitName,
			Status:      domain.StepStatusSkipped,
			StartedAt:   now,
			CompletedAt: &now,
		})
	}
}

// persistFinal сохраняет финальный статус job и state.
func (o *Orchestrator) persistFinal(ctx context.Context, job *domain.Job, state *domain.WorkflowState) error {
	if err := o.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persist final job status: %w", err)
	}
	if err := o.states.Save(ctx, state); err != nil {
		return fmt.Errorf("persist final state: %w", err)
	}
	return nil
}

// failJob best-effort помечает job и state как FAILED при
// инфраструктурной ошибке и возвращает её для проброса наружу.
func (o *Orchestrator) failJob(ctx context.Context, job *domain.Job, state *domain.WorkflowState, cause error) error {
	job.MarkFailed(cause.Error())
	if state != nil {
		state.MarkFailed(cause.Error())
	}

	if err := o.jobs.Update(ctx, job); err != nil {
		o.logger.Error("failed to persist FAILED status", "job_id", job.ID, "error", err)
	}
	if state != nil {
		if err := o.states.Save(ctx, state); err != nil {
			o.logger.Error("failed to persist FAILED state", "job_id", job.ID, "error", err)
		}
	}

	return cause
}

// rateLimitFromOutput восстанавливает RateLimitError из output шага.
//
// Runner гасит все ошибки unit'а, включая rate limit от зависимости,
// поэтому сигнал retry-after переносится через Data["retry_after_ms"].
func rateLimitFromOutput(out *domain.TaskOutput) *retry.RateLimitError {
	if out == nil || out.Data == nil {
		return nil
	}
	ms, ok := out.Data["retry_after_ms"].(float64)
	if !ok || ms <= 0 {
		return nil
	}
	return &retry.RateLimitError{
		RetryAfter: time.Duration(ms) * time.Millisecond,
		Err:        fmt.Errorf("%w: %s", ErrStepFailed, out.Error),
	}
}

// finishedState строит state для уже завершённого job.
func finishedState(job *domain.Job) *domain.WorkflowState {
	state := &domain.WorkflowState{
		JobID:       job.ID,
		Status:      job.Status,
		CompletedAt: job.CompletedAt,
		Error:       job.Error,
	}
	if job.StartedAt != nil {
		state.StartedAt = *job.StartedAt
	}
	return state
}
