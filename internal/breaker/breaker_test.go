package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shaiso/Conveyor/internal/retry"
)

func newTestBreaker(clock retry.Clock) *Breaker {
	return New("test-dep", Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		ResetTimeout:     30 * time.Second,
		OperationTimeout: time.Minute,
		Clock:            clock,
	})
}

func failOp(ctx context.Context) error { return errors.New("dependency down") }
func okOp(ctx context.Context) error   { return nil }

func TestBreakerOpensAfterThreshold(t *testing.T) {
	clock := retry.NewFakeClock(time.Now())
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		if b.State() != StateClosed {
			t.Fatalf("call %d: expected CLOSED, got %s", i, b.State())
		}
		b.Execute(context.Background(), failOp)
	}

	if b.State() != StateOpen {
		t.Fatalf("expected OPEN after 3 failures, got %s", b.State())
	}

	// Разомкнутая цепь отклоняет вызовы без выполнения.
	calls := 0
	err := b.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if calls != 0 {
		t.Error("operation must not run while circuit is open")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	clock := retry.NewFakeClock(time.Now())
	b := newTestBreaker(clock)

	b.Execute(context.Background(), failOp)
	b.Execute(context.Background(), failOp)
	b.Execute(context.Background(), okOp)
	b.Execute(context.Background(), failOp)
	b.Execute(context.Background(), failOp)

	if b.State() != StateClosed {
		t.Fatalf("expected CLOSED, got %s", b.State())
	}
}

func TestBreakerHalfOpenAfterResetTimeout(t *testing.T) {
	clock := retry.NewFakeClock(time.Now())
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		b.Execute(context.Background(), failOp)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected OPEN, got %s", b.State())
	}

	clock.Advance(31 * time.Second)

	// Пробный вызов проходит; один успех ещё не замыкает цепь.
	if err := b.Execute(context.Background(), okOp); err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected HALF_OPEN after first success, got %s", b.State())
	}

	// Второй успех замыкает.
	if err := b.Execute(context.Background(), okOp); err != nil {
		t.Fatalf("second probe failed: %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected CLOSED after 2 successes, got %s", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := retry.NewFakeClock(time.Now())
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		b.Execute(context.Background(), failOp)
	}
	clock.Advance(31 * time.Second)

	// Первая же ошибка в HALF_OPEN размыкает заново.
	b.Execute(context.Background(), failOp)
	if b.State() != StateOpen {
		t.Fatalf("expected OPEN after half-open failure, got %s", b.State())
	}

	// Новый reset timeout: вызовы снова отклоняются.
	if err := b.Execute(context.Background(), okOp); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreakerOperationTimeout(t *testing.T) {
	b := New("slow-dep", Config{
		FailureThreshold: 2,
		OperationTimeout: 10 * time.Millisecond,
	})

	err := b.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, ErrOperationTimeout) {
		t.Fatalf("expected ErrOperationTimeout, got %v", err)
	}
}

func TestBreakerSnapshot(t *testing.T) {
	clock := retry.NewFakeClock(time.Now())
	b := newTestBreaker(clock)

	b.Execute(context.Background(), failOp)

	snap := b.Snapshot()
	if snap.Name != "test-dep" {
		t.Errorf("unexpected name %q", snap.Name)
	}
	if snap.State != StateClosed {
		t.Errorf("expected CLOSED, got %s", snap.State)
	}
	if snap.FailureCount != 1 {
		t.Errorf("expected 1 failure, got %d", snap.FailureCount)
	}
	if snap.FailureThreshold != 3 || snap.SuccessThreshold != 2 {
		t.Error("thresholds not reported")
	}
}

func TestSet(t *testing.T) {
	s := NewSet()
	s.Add(New("alpha", Config{}))
	s.Add(New("beta", Config{}))

	if s.Get("alpha") == nil || s.Get("beta") == nil {
		t.Fatal("breakers not found in set")
	}
	if s.Get("gamma") != nil {
		t.Error("unknown breaker must be nil")
	}

	names := s.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("unexpected names: %v", names)
	}

	snaps := s.Snapshots()
	if len(snaps) != 2 || snaps[0].Name != "alpha" {
		t.Errorf("unexpected snapshots: %v", snaps)
	}
}

func TestDefaultSet(t *testing.T) {
	s := DefaultSet(Config{})

	for _, name := range []string{DepModelInference, DepObjectStorage, DepPayments, DepNotifications} {
		if s.Get(name) == nil {
			t.Errorf("missing breaker %q", name)
		}
	}
}
