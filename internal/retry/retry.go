package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Conveyor/internal/telemetry"
)

// maxBackoffShift ограничивает экспоненту, чтобы не переполнить Duration.
const maxBackoffShift = 32

// RateLimitError — сигнал rate limit от зависимости с явным retry-after.
//
// Если операция вернула RateLimitError, executor ждёт RetryAfter вместо
// вычисленной экспоненциальной задержки — но только для этого одного
// ожидания.
type RateLimitError struct {
	// RetryAfter — задержка, запрошенная сервером.
	RetryAfter time.Duration

	// Err — исходная ошибка.
	Err error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s: %v", e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// Delay — чистая функция задержки перед повтором attempt (attempt >= 1).
//
//	Delay(base, 1) = base
//	Delay(base, 2) = base * 2
//	Delay(base, 3) = base * 4
//
// Jitter намеренно отсутствует: задержки детерминированы и тестируемы.
func Delay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 || base <= 0 {
		return 0
	}
	shift := attempt - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return base << shift
}

// Executor — обёртка bounded retry с экспоненциальной задержкой.
//
// Executor сам ничего не знает про природу операции: им пользуются
// и оркестратор (повтор task unit'ов), и любой код с нестабильной
// зависимостью.
type Executor struct {
	clock  Clock
	logger *slog.Logger
}

// New создаёт Executor с настоящими часами.
func New(logger *slog.Logger) *Executor {
	return NewWithClock(logger, RealClock())
}

// NewWithClock создаёт Executor с внедрёнными часами (для тестов).
func NewWithClock(logger *slog.Logger, clock Clock) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = RealClock()
	}
	return &Executor{clock: clock, logger: logger}
}

// Execute выполняет op с повторами.
//
// Всего попыток maxRetries+1; maxRetries=0 — ровно одна попытка.
// Перед повтором k executor ждёт Delay(base, k), либо RetryAfter,
// если последняя ошибка — RateLimitError. При исчерпании попыток
// возвращается ошибка последней попытки; ошибки предыдущих попыток
// только логируются.
func (e *Executor) Execute(ctx context.Context, name string, maxRetries int, base time.Duration, op func(ctx context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt >= maxRetries {
			return lastErr
		}

		wait := Delay(base, attempt+1)
		var rle *RateLimitError
		if errors.As(lastErr, &rle) && rle.RetryAfter > 0 {
			wait = rle.RetryAfter
		}

		e.logger.Warn("operation failed, retrying",
			"name", name,
			"attempt", attempt+1,
			"max_attempts", maxRetries+1,
			"delay", wait,
			"error", lastErr,
		)
		telemetry.RetryAttemptsTotal.WithLabelValues(name).Inc()

		if err := e.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Do выполняет op с повторами и возвращает результат последней попытки.
//
// Типизированный вариант Execute для операций с результатом.
func Do[T any](ctx context.Context, e *Executor, name string, maxRetries int, base time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := e.Execute(ctx, name, maxRetries, base, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}
