package retry

import (
	"context"
	"time"
)

// Clock — абстракция времени для executor'а.
//
// Вынесена в интерфейс, чтобы тесты backoff'а не ждали реальных задержек.
type Clock interface {
	// Now возвращает текущее время.
	Now() time.Time

	// Sleep ждёт d с учётом отмены контекста.
	Sleep(ctx context.Context, d time.Duration) error
}

// realClock — Clock на основе настоящего времени.
type realClock struct{}

// RealClock возвращает Clock на основе time.Now / time.After.
func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FakeClock — Clock для тестов: записывает запрошенные задержки
// и возвращается мгновенно.
type FakeClock struct {
	// Sleeps — все задержки, запрошенные через Sleep, по порядку.
	Sleeps []time.Duration

	// Current — "текущее" время; сдвигается на каждую задержку.
	Current time.Time
}

// NewFakeClock создаёт FakeClock с заданным стартовым временем.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{Current: start}
}

func (c *FakeClock) Now() time.Time {
	return c.Current
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Sleeps = append(c.Sleeps, d)
	c.Current = c.Current.Add(d)
	return nil
}

// Advance сдвигает текущее время вперёд.
func (c *FakeClock) Advance(d time.Duration) {
	c.Current = c.Current.Add(d)
}
