package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/queue"
)

func TestCalculateNextDueInterval(t *testing.T) {
	sched := &domain.Schedule{
		IntervalSec: 300,
		Timezone:    "UTC",
	}

	from := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := from.Add(5 * time.Minute)
	if !next.Equal(want) {
		t.Errorf("expected %s, got %s", want, next)
	}
}

func TestCalculateNextDueCron(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "0 9 * * *",
		Timezone: "UTC",
	}

	from := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %s, got %s", want, next)
	}
}

func TestCalculateNextDueInvalidTimezoneFallsBackToUTC(t *testing.T) {
	sched := &domain.Schedule{
		IntervalSec: 60,
		Timezone:    "Mars/Olympus",
	}

	from := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Equal(from.Add(time.Minute)) {
		t.Errorf("unexpected next due: %s", next)
	}
}

func TestCalculateNextDueEmptySchedule(t *testing.T) {
	sched := &domain.Schedule{Timezone: "UTC"}

	if _, err := CalculateNextDue(sched, time.Now()); err == nil {
		t.Fatal("expected error for schedule without cron or interval")
	}
}

func TestValidateCronExpr(t *testing.T) {
	if err := ValidateCronExpr("*/5 * * * *"); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := ValidateCronExpr("not a cron"); err == nil {
		t.Error("invalid expression accepted")
	}
}

// fakeScheduleStore — in-memory ScheduleStore.
type fakeScheduleStore struct {
	due     []domain.Schedule
	updated []domain.Schedule
	listErr error
}

func (s *fakeScheduleStore) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error) {
	return s.due, s.listErr
}

func (s *fakeScheduleStore) Update(ctx context.Context, schedule *domain.Schedule) error {
	s.updated = append(s.updated, *schedule)
	return nil
}

// fakeEnqueuer записывает постановки.
type fakeEnqueuer struct {
	enqueued []queue.EnqueueOptions
	types    []string
	err      error
}

func (e *fakeEnqueuer) Enqueue(ctx context.Context, workflowType string, payload map[string]any, opts queue.EnqueueOptions) (uuid.UUID, error) {
	if e.err != nil {
		return uuid.Nil, e.err
	}
	e.enqueued = append(e.enqueued, opts)
	e.types = append(e.types, workflowType)
	return opts.ID, nil
}

func dueSchedule(interval int) domain.Schedule {
	due := time.Now().Add(-time.Minute)
	return domain.Schedule{
		ID:           uuid.New(),
		Name:         "nightly",
		WorkflowType: "document-processing",
		IntervalSec:  interval,
		Timezone:     "UTC",
		Enabled:      true,
		NextDueAt:    &due,
		Payload:      map[string]any{"source": "cron"},
		CreatedAt:    time.Now().Add(-time.Hour),
	}
}

func TestTickEnqueuesDueSchedules(t *testing.T) {
	store := &fakeScheduleStore{due: []domain.Schedule{dueSchedule(300)}}
	enq := &fakeEnqueuer{}
	s := New(Config{Schedules: store, Enqueuer: enq})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(enq.enqueued) != 1 {
		t.Fatalf("expected 1 enqueue, got %d", len(enq.enqueued))
	}
	if enq.types[0] != "document-processing" {
		t.Errorf("unexpected workflow type %q", enq.types[0])
	}

	if len(store.updated) != 1 {
		t.Fatalf("expected schedule update, got %d", len(store.updated))
	}
	updated := store.updated[0]
	if updated.NextDueAt == nil || !updated.NextDueAt.After(time.Now()) {
		t.Error("next_due_at must move into the future")
	}
	if updated.LastJobID == nil {
		t.Error("last_job_id must be recorded")
	}
}

func TestTickJobIDDeterministic(t *testing.T) {
	// Два тика над одним и тем же срабатыванием дают один job ID.
	sched := dueSchedule(300)
	store := &fakeScheduleStore{due: []domain.Schedule{sched, sched}}
	enq := &fakeEnqueuer{}
	s := New(Config{Schedules: store, Enqueuer: enq})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(enq.enqueued) != 2 {
		t.Fatalf("expected 2 enqueues, got %d", len(enq.enqueued))
	}
	if enq.enqueued[0].ID != enq.enqueued[1].ID {
		t.Errorf("expected deterministic job ID, got %s and %s",
			enq.enqueued[0].ID, enq.enqueued[1].ID)
	}
}

func TestTickContinuesAfterScheduleError(t *testing.T) {
	broken := dueSchedule(300)
	broken.IntervalSec = 0 // ни cron, ни interval

	store := &fakeScheduleStore{due: []domain.Schedule{broken, dueSchedule(60)}}
	enq := &fakeEnqueuer{}
	s := New(Config{Schedules: store, Enqueuer: enq})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Оба schedule поставили job; сломанный не обновил next_due_at.
	if len(enq.enqueued) != 2 {
		t.Fatalf("expected 2 enqueues, got %d", len(enq.enqueued))
	}
	if len(store.updated) != 1 {
		t.Errorf("expected 1 schedule update, got %d", len(store.updated))
	}
}

func TestTickListError(t *testing.T) {
	store := &fakeScheduleStore{listErr: errors.New("db down")}
	s := New(Config{Schedules: store, Enqueuer: &fakeEnqueuer{}})

	if err := s.Tick(context.Background()); err == nil {
		t.Fatal("expected error when store is unavailable")
	}
}
