package unit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/retry"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// Runner прогоняет unit через жизненный цикл validate → execute → produce.
//
// Runner — жёсткая граница изоляции сбоев: невалидный input, ошибка
// ExecuteTask и даже panic превращаются в TaskOutput{Success: false}
// с трассировкой в Logs. Наружу ошибка не выходит никогда.
type Runner struct {
	logger *slog.Logger
}

// NewRunner создаёт Runner.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger}
}

// Run выполняет полный цикл unit'а и возвращает TaskOutput.
//
// Весь вызов измеряется; старт и финиш логируются с длительностью;
// счётчики инкрементируются по имени unit'а и исходу.
func (r *Runner) Run(ctx context.Context, u Unit, input map[string]any) (output *domain.TaskOutput) {
	name := u.Name()
	start := time.Now()
	trace := []string{fmt.Sprintf("unit %s: started", name)}

	r.logger.Debug("unit started", "unit", name)

	outcome := telemetry.OutcomeSuccess
	defer func() {
		if rec := recover(); rec != nil {
			outcome = telemetry.OutcomeFailure
			trace = append(trace, fmt.Sprintf("unit %s: panic: %v", name, rec))
			output = failure(fmt.Sprintf("panic: %v", rec), trace)
		}

		elapsed := time.Since(start)
		output.Logs = append(output.Logs, fmt.Sprintf("unit %s: finished in %s", name, elapsed))
		telemetry.ObserveExecution("unit", name, outcome, elapsed.Seconds())

		r.logger.Info("unit finished",
			"unit", name,
			"success", output.Success,
			"duration", elapsed,
		)
	}()

	// 1. Валидация входа
	if v := u.ValidateInput(input); !v.Valid {
		outcome = telemetry.OutcomeInvalidInput
		trace = append(trace, fmt.Sprintf("unit %s: input validation failed: %s", name, v.Error))
		return failure(fmt.Sprintf("%s: %s", ErrInvalidInput, v.Error), trace)
	}
	trace = append(trace, fmt.Sprintf("unit %s: input valid", name))

	// 2. Выполнение
	raw, err := u.ExecuteTask(ctx, input)
	if err != nil {
		outcome = telemetry.OutcomeFailure
		trace = append(trace, fmt.Sprintf("unit %s: execute failed: %v", name, err))
		out := failure(err.Error(), trace)
		// Сигнал rate limit переносится через output, чтобы retry
		// выше мог использовать retry-after вместо своей задержки.
		var rle *retry.RateLimitError
		if errors.As(err, &rle) && rle.RetryAfter > 0 {
			out.Data = map[string]any{
				"retry_after_ms": float64(rle.RetryAfter.Milliseconds()),
			}
		}
		return out
	}
	trace = append(trace, fmt.Sprintf("unit %s: executed", name))

	// 3. Сборка результата
	out := u.ProduceOutput(raw, input)
	if out == nil {
		out = &domain.TaskOutput{Success: true, Data: raw}
	}
	out.Logs = append(trace, out.Logs...)

	if !out.Success {
		outcome = telemetry.OutcomeFailure
	}
	return out
}

// failure собирает failure-output с трассировкой.
func failure(errMsg string, trace []string) *domain.TaskOutput {
	return &domain.TaskOutput{
		Success: false,
		Error:   errMsg,
		Logs:    trace,
	}
}
