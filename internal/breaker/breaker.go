package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Conveyor/internal/retry"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// Ошибки breaker'а.
var (
	// ErrCircuitOpen — цепь разомкнута, операция не выполнялась.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrOperationTimeout — операция превысила таймаут breaker'а.
	ErrOperationTimeout = errors.New("operation timeout")
)

// State — состояние circuit breaker'а.
type State string

const (
	// StateClosed — цепь замкнута, вызовы проходят.
	StateClosed State = "CLOSED"

	// StateOpen — цепь разомкнута, вызовы отклоняются без выполнения.
	StateOpen State = "OPEN"

	// StateHalfOpen — пробный режим после reset timeout.
	StateHalfOpen State = "HALF_OPEN"
)

// Значения по умолчанию.
const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 2
	defaultResetTimeout     = 30 * time.Second
	defaultOperationTimeout = 30 * time.Second
)

// Breaker — fail-fast защита одной внешней зависимости.
//
// Состояния: CLOSED → OPEN → HALF_OPEN → CLOSED.
//
// Каждая зависимость (model inference, object storage, payment,
// notifications) получает свой экземпляр с независимыми порогами.
// Breaker сам не делает retry — это отдельная ответственность
// retry.Executor, который композируется вокруг вызовов breaker'а.
type Breaker struct {
	name string

	mu            sync.Mutex
	state         State
	failureCount  int
	successCount  int
	nextAttemptAt time.Time

	failureThreshold int
	successThreshold int
	resetTimeout     time.Duration
	operationTimeout time.Duration

	clock  retry.Clock
	logger *slog.Logger
}

// Config — конфигурация Breaker.
type Config struct {
	// FailureThreshold — сколько подряд ошибок размыкают цепь (default: 5).
	FailureThreshold int

	// SuccessThreshold — сколько подряд успехов в HALF_OPEN
	// замыкают цепь обратно (default: 2).
	SuccessThreshold int

	// ResetTimeout — сколько цепь остаётся разомкнутой до пробного
	// вызова (default: 30s).
	ResetTimeout time.Duration

	// OperationTimeout — жёсткий таймаут одного вызова зависимости
	// (default: 30s). Таймаут считается ошибкой.
	OperationTimeout time.Duration

	// Clock — часы (для тестов).
	Clock retry.Clock

	// Logger — логгер.
	Logger *slog.Logger
}

// New создаёт Breaker для зависимости name.
func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = defaultSuccessThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaultResetTimeout
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaultOperationTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = retry.RealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	b := &Breaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		resetTimeout:     cfg.ResetTimeout,
		operationTimeout: cfg.OperationTimeout,
		clock:            cfg.Clock,
		logger:           cfg.Logger.With("breaker", name),
	}
	b.publishState(StateClosed)
	return b
}

// Name возвращает имя защищаемой зависимости.
func (b *Breaker) Name() string {
	return b.name
}

// Execute выполняет op через breaker.
//
// Если цепь разомкнута и reset timeout не истёк, возвращает ErrCircuitOpen
// не вызывая op. Иначе op выполняется под OperationTimeout; таймаут
// считается ошибкой зависимости.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := b.beforeCall(); err != nil {
		telemetry.ExecutionsTotal.WithLabelValues("breaker", b.name, telemetry.OutcomeShortCircuit).Inc()
		return err
	}

	start := b.clock.Now()
	err := b.call(ctx, op)
	elapsed := b.clock.Now().Sub(start)

	if err != nil {
		b.onFailure()
		outcome := telemetry.OutcomeFailure
		if errors.Is(err, ErrOperationTimeout) {
			outcome = telemetry.OutcomeTimeout
		}
		telemetry.ObserveExecution("breaker", b.name, outcome, elapsed.Seconds())
		return err
	}

	b.onSuccess()
	telemetry.ObserveExecution("breaker", b.name, telemetry.OutcomeSuccess, elapsed.Seconds())
	return nil
}

// call выполняет op под жёстким таймаутом.
func (b *Breaker) call(ctx context.Context, op func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, b.operationTimeout)
	defer cancel()

	err := op(opCtx)
	if err != nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w after %s: %v", ErrOperationTimeout, b.operationTimeout, err)
	}
	return err
}

// beforeCall проверяет, можно ли выполнять вызов.
// OPEN → HALF_OPEN, если reset timeout истёк.
func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}

	if b.clock.Now().Before(b.nextAttemptAt) {
		return fmt.Errorf("%w: %s until %s", ErrCircuitOpen, b.name, b.nextAttemptAt.Format(time.RFC3339))
	}

	b.transition(StateHalfOpen)
	return nil
}

// onSuccess обрабатывает успешный вызов.
func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0

	if b.state == StateHalfOpen {
		b.successCount++
		if b.successCount >= b.successThreshold {
			b.transition(StateClosed)
			b.successCount = 0
		}
	}
}

// onFailure обрабатывает неуспешный вызов.
// В HALF_OPEN первая же ошибка размыкает цепь заново.
func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.successCount = 0

	if b.state == StateHalfOpen || b.failureCount >= b.failureThreshold {
		b.nextAttemptAt = b.clock.Now().Add(b.resetTimeout)
		b.transition(StateOpen)
	}
}

// transition переводит breaker в новое состояние (под мьютексом).
func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}

	from := b.state
	b.state = to
	b.publishState(to)

	b.logger.Warn("circuit state changed",
		"from", from,
		"to", to,
		"failures", b.failureCount,
	)
}

// publishState обновляет gauge состояния.
func (b *Breaker) publishState(s State) {
	var v float64
	switch s {
	case StateOpen:
		v = 1
	case StateHalfOpen:
		v = 2
	}
	telemetry.BreakerState.WithLabelValues(b.name).Set(v)
}

// State возвращает текущее состояние.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot — наблюдаемое состояние breaker'а.
type Snapshot struct {
	Name             string    `json:"name"`
	State            State     `json:"state"`
	FailureCount     int       `json:"failure_count"`
	SuccessCount     int       `json:"success_count"`
	NextAttemptAt    time.Time `json:"next_attempt_at,omitzero"`
	FailureThreshold int       `json:"failure_threshold"`
	SuccessThreshold int       `json:"success_threshold"`
	ResetTimeoutMs   int64     `json:"reset_timeout_ms"`
	OperationTimeout int64     `json:"operation_timeout_ms"`
}

// Snapshot возвращает срез текущего состояния для диагностики.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		Name:             b.name,
		State:            b.state,
		FailureCount:     b.failureCount,
		SuccessCount:     b.successCount,
		NextAttemptAt:    b.nextAttemptAt,
		FailureThreshold: b.failureThreshold,
		SuccessThreshold: b.successThreshold,
		ResetTimeoutMs:   b.resetTimeout.Milliseconds(),
		OperationTimeout: b.operationTimeout.Milliseconds(),
	}
}
