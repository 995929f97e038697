package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDelay(t *testing.T) {
	base := 500 * time.Millisecond

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{0, 0},
		{-1, 0},
	}
	for _, tc := range cases {
		if got := Delay(base, tc.attempt); got != tc.want {
			t.Errorf("Delay(%s, %d) = %s, want %s", base, tc.attempt, got, tc.want)
		}
	}

	if Delay(0, 3) != 0 {
		t.Error("zero base must give zero delay")
	}
}

func TestExecuteFirstAttemptSucceeds(t *testing.T) {
	clock := NewFakeClock(time.Now())
	e := NewWithClock(nil, clock)

	calls := 0
	err := e.Execute(context.Background(), "op", 3, time.Second, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if len(clock.Sleeps) != 0 {
		t.Errorf("no sleeps expected, got %v", clock.Sleeps)
	}
}

func TestExecuteRetriesWithExponentialDelay(t *testing.T) {
	clock := NewFakeClock(time.Now())
	e := NewWithClock(nil, clock)

	calls := 0
	err := e.Execute(context.Background(), "op", 3, time.Second, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}

	want := []time.Duration{time.Second, 2 * time.Second}
	if len(clock.Sleeps) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), clock.Sleeps)
	}
	for i := range want {
		if clock.Sleeps[i] != want[i] {
			t.Errorf("sleep %d: got %s, want %s", i, clock.Sleeps[i], want[i])
		}
	}
}

func TestExecuteExhaustsAttempts(t *testing.T) {
	clock := NewFakeClock(time.Now())
	e := NewWithClock(nil, clock)

	last := errors.New("still broken")
	calls := 0
	err := e.Execute(context.Background(), "op", 2, time.Second, func(ctx context.Context) error {
		calls++
		return last
	})

	// maxRetries=2 — всего три попытки, возвращается последняя ошибка.
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if !errors.Is(err, last) {
		t.Errorf("expected last attempt error, got %v", err)
	}
}

func TestExecuteZeroRetriesSingleAttempt(t *testing.T) {
	clock := NewFakeClock(time.Now())
	e := NewWithClock(nil, clock)

	calls := 0
	err := e.Execute(context.Background(), "op", 0, time.Second, func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call, got %d", calls)
	}
	if len(clock.Sleeps) != 0 {
		t.Errorf("no sleeps expected, got %v", clock.Sleeps)
	}
}

func TestExecuteRateLimitOverridesOneWait(t *testing.T) {
	clock := NewFakeClock(time.Now())
	e := NewWithClock(nil, clock)

	calls := 0
	err := e.Execute(context.Background(), "op", 3, time.Second, func(ctx context.Context) error {
		calls++
		switch calls {
		case 1:
			return &RateLimitError{RetryAfter: 7 * time.Second, Err: errors.New("429")}
		case 2:
			return errors.New("transient")
		default:
			return nil
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Первое ожидание — RetryAfter, второе — обычная экспонента.
	want := []time.Duration{7 * time.Second, 2 * time.Second}
	if len(clock.Sleeps) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), clock.Sleeps)
	}
	for i := range want {
		if clock.Sleeps[i] != want[i] {
			t.Errorf("sleep %d: got %s, want %s", i, clock.Sleeps[i], want[i])
		}
	}
}

func TestExecuteContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	clock := NewFakeClock(time.Now())
	e := NewWithClock(nil, clock)

	err := e.Execute(ctx, "op", 3, time.Second, func(ctx context.Context) error {
		cancel() // отмена до первого ожидания
		return errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDoReturnsResult(t *testing.T) {
	clock := NewFakeClock(time.Now())
	e := NewWithClock(nil, clock)

	calls := 0
	got, err := Do(context.Background(), e, "op", 2, time.Second, func(ctx context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}

func TestRateLimitErrorUnwrap(t *testing.T) {
	inner := errors.New("quota exceeded")
	var err error = &RateLimitError{RetryAfter: time.Second, Err: inner}

	if !errors.Is(err, inner) {
		t.Error("RateLimitError must unwrap to inner error")
	}

	var rle *RateLimitError
	if !errors.As(err, &rle) || rle.RetryAfter != time.Second {
		t.Error("errors.As must recover RetryAfter")
	}
}
