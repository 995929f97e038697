package queue

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/repo"
)

// fakeJobStore — in-memory JobStore.
type fakeJobStore struct {
	jobs map[uuid.UUID]*domain.Job
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[uuid.UUID]*domain.Job)}
}

func (s *fakeJobStore) Create(ctx context.Context, job *domain.Job) error {
	if _, exists := s.jobs[job.ID]; exists {
		return repo.ErrAlreadyExists
	}
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *fakeJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *j
	return &copied, nil
}

func (s *fakeJobStore) Update(ctx context.Context, job *domain.Job) error {
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *fakeJobStore) ListPending(ctx context.Context, limit int) ([]domain.Job, error) {
	var pending []domain.Job
	for _, j := range s.jobs {
		if j.Status == domain.JobStatusPending {
			pending = append(pending, *j)
		}
	}
	return pending, nil
}

func (s *fakeJobStore) CountByStatus(ctx context.Context) (map[domain.JobStatus]int, error) {
	counts := make(map[domain.JobStatus]int)
	for _, j := range s.jobs {
		counts[j.Status]++
	}
	return counts, nil
}

// fakeDeadLetterStore — in-memory DeadLetterStore.
type fakeDeadLetterStore struct {
	letters map[uuid.UUID]*domain.DeadLetter
}

func newFakeDeadLetterStore() *fakeDeadLetterStore {
	return &fakeDeadLetterStore{letters: make(map[uuid.UUID]*domain.DeadLetter)}
}

func (s *fakeDeadLetterStore) Create(ctx context.Context, dl *domain.DeadLetter) error {
	copied := *dl
	s.letters[dl.ID] = &copied
	return nil
}

func (s *fakeDeadLetterStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeadLetter, error) {
	dl, ok := s.letters[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *dl
	return &copied, nil
}

func (s *fakeDeadLetterStore) MarkRequeued(ctx context.Context, dl *domain.DeadLetter) error {
	copied := *dl
	s.letters[dl.ID] = &copied
	return nil
}

// delayedPublish — записанная отложенная публикация.
type delayedPublish struct {
	jobID   uuid.UUID
	attempt int
	delay   time.Duration
}

// fakeDispatcher записывает публикации вместо брокера.
type fakeDispatcher struct {
	ready   []uuid.UUID
	delayed []delayedPublish
	failAll bool
}

func (d *fakeDispatcher) PublishJobReady(ctx context.Context, jobID uuid.UUID, priority int) error {
	if d.failAll {
		return errors.New("broker down")
	}
	d.ready = append(d.ready, jobID)
	return nil
}

func (d *fakeDispatcher) PublishJobDelayed(ctx context.Context, jobID uuid.UUID, attempt int, delay time.Duration) error {
	if d.failAll {
		return errors.New("broker down")
	}
	d.delayed = append(d.delayed, delayedPublish{jobID: jobID, attempt: attempt, delay: delay})
	return nil
}

// failingExecutor всегда возвращает инфраструктурную ошибку.
type failingExecutor struct {
	calls int
}

func (e *failingExecutor) Execute(ctx context.Context, jobID uuid.UUID) (*domain.WorkflowState, error) {
	e.calls++
	return nil, errors.New("store unreachable")
}

func TestEnqueuePersistsAndPublishes(t *testing.T) {
	jobs := newFakeJobStore()
	dispatcher := &fakeDispatcher{}
	q := New(Config{Jobs: jobs, DeadLetters: newFakeDeadLetterStore(), Dispatcher: dispatcher})

	id, err := q.Enqueue(context.Background(), "document-processing",
		map[string]any{"doc": "x"}, EnqueueOptions{Priority: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, ok := jobs.jobs[id]
	if !ok {
		t.Fatal("job not persisted")
	}
	if stored.Status != domain.JobStatusPending {
		t.Errorf("expected PENDING, got %s", stored.Status)
	}
	if len(dispatcher.ready) != 1 || dispatcher.ready[0] != id {
		t.Errorf("expected ready publish for %s, got %v", id, dispatcher.ready)
	}
}

func TestEnqueueIdempotentByID(t *testing.T) {
	jobs := newFakeJobStore()
	dispatcher := &fakeDispatcher{}
	q := New(Config{Jobs: jobs, DeadLetters: newFakeDeadLetterStore(), Dispatcher: dispatcher})

	explicit := uuid.New()
	first, err := q.Enqueue(context.Background(), "flow", nil, EnqueueOptions{ID: explicit})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := q.Enqueue(context.Background(), "flow", nil, EnqueueOptions{ID: explicit})
	if err != nil {
		t.Fatalf("unexpected error on duplicate: %v", err)
	}

	if first != explicit || second != explicit {
		t.Errorf("expected both enqueues to return %s, got %s and %s", explicit, first, second)
	}
	if len(jobs.jobs) != 1 {
		t.Errorf("expected single job, got %d", len(jobs.jobs))
	}
	if len(dispatcher.ready) != 1 {
		t.Errorf("duplicate enqueue must not republish, got %d publishes", len(dispatcher.ready))
	}
}

func TestEnqueueSurvivesBrokerOutage(t *testing.T) {
	jobs := newFakeJobStore()
	q := New(Config{Jobs: jobs, DeadLetters: newFakeDeadLetterStore(), Dispatcher: &fakeDispatcher{failAll: true}})

	id, err := q.Enqueue(context.Background(), "flow", nil, EnqueueOptions{})
	if err != nil {
		t.Fatalf("enqueue must succeed without broker: %v", err)
	}
	if _, ok := jobs.jobs[id]; !ok {
		t.Error("job not persisted")
	}
}

func TestWorkerRedeliveryBackoff(t *testing.T) {
	// Первая и вторая доставки падают: redelivery с задержками 2s и 4s.
	jobs := newFakeJobStore()
	dispatcher := &fakeDispatcher{}
	w := NewWorker(WorkerConfig{
		Jobs:        jobs,
		DeadLetters: newFakeDeadLetterStore(),
		Executor:    &failingExecutor{},
		Dispatcher:  dispatcher,
	})

	jobID := uuid.New()
	jobs.Create(context.Background(), &domain.Job{ID: jobID, WorkflowType: "flow", Status: domain.JobStatusPending})

	for attempt := 1; attempt <= 2; attempt++ {
		if err := w.processJob(context.Background(), jobID, attempt); err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", attempt, err)
		}
	}

	if len(dispatcher.delayed) != 2 {
		t.Fatalf("expected 2 delayed publishes, got %d", len(dispatcher.delayed))
	}
	if dispatcher.delayed[0].delay != 2*time.Second || dispatcher.delayed[0].attempt != 2 {
		t.Errorf("first redelivery: got attempt=%d delay=%s",
			dispatcher.delayed[0].attempt, dispatcher.delayed[0].delay)
	}
	if dispatcher.delayed[1].delay != 4*time.Second || dispatcher.delayed[1].attempt != 3 {
		t.Errorf("second redelivery: got attempt=%d delay=%s",
			dispatcher.delayed[1].attempt, dispatcher.delayed[1].delay)
	}
}

func TestWorkerDeadLettersAfterMaxAttempts(t *testing.T) {
	// Job с бюджетом 3 доставок, падающий каждую: уходит в dead letter
	// с attemptsMade=3 и нетронутым исходным payload.
	jobs := newFakeJobStore()
	deadLetters := newFakeDeadLetterStore()
	dispatcher := &fakeDispatcher{}
	executor := &failingExecutor{}
	w := NewWorker(WorkerConfig{
		Jobs:        jobs,
		DeadLetters: deadLetters,
		Executor:    executor,
		Dispatcher:  dispatcher,
		MaxAttempts: 3,
	})

	payload := map[string]any{"doc": "x", "pages": float64(3)}
	jobID := uuid.New()
	jobs.Create(context.Background(), &domain.Job{
		ID:           jobID,
		WorkflowType: "flow",
		Payload:      payload,
		Status:       domain.JobStatusPending,
	})

	for attempt := 1; attempt <= 3; attempt++ {
		if err := w.processJob(context.Background(), jobID, attempt); err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", attempt, err)
		}
	}

	if executor.calls != 3 {
		t.Errorf("expected 3 executions, got %d", executor.calls)
	}
	if len(deadLetters.letters) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(deadLetters.letters))
	}

	var dl *domain.DeadLetter
	for _, l := range deadLetters.letters {
		dl = l
	}
	if dl.AttemptsMade != 3 {
		t.Errorf("expected attemptsMade=3, got %d", dl.AttemptsMade)
	}
	if dl.JobID != jobID {
		t.Errorf("expected job %s, got %s", jobID, dl.JobID)
	}
	if !reflect.DeepEqual(dl.Payload, payload) {
		t.Errorf("payload must be intact: %v", dl.Payload)
	}
	if dl.Reason == "" {
		t.Error("expected failure reason")
	}

	if got := jobs.jobs[jobID].Status; got != domain.JobStatusFailed {
		t.Errorf("dead lettered job must be FAILED, got %s", got)
	}
}

func TestRequeueDeadLetter(t *testing.T) {
	jobs := newFakeJobStore()
	deadLetters := newFakeDeadLetterStore()
	q := New(Config{Jobs: jobs, DeadLetters: deadLetters, Dispatcher: &fakeDispatcher{}})

	payload := map[string]any{"doc": "x"}
	dl := &domain.DeadLetter{
		ID:           uuid.New(),
		JobID:        uuid.New(),
		WorkflowType: "flow",
		Payload:      payload,
		Reason:       "store unreachable",
		AttemptsMade: 3,
		CreatedAt:    time.Now(),
	}
	deadLetters.Create(context.Background(), dl)

	newID, err := q.RequeueDeadLetter(context.Background(), dl.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	replay, ok := jobs.jobs[newID]
	if !ok {
		t.Fatal("replay job not created")
	}
	if replay.Status != domain.JobStatusPending {
		t.Errorf("expected PENDING replay, got %s", replay.Status)
	}
	if !reflect.DeepEqual(replay.Payload, payload) {
		t.Errorf("replay payload mismatch: %v", replay.Payload)
	}

	// Повторный requeue отклоняется.
	if _, err := q.RequeueDeadLetter(context.Background(), dl.ID); !errors.Is(err, ErrAlreadyRequeued) {
		t.Fatalf("expected ErrAlreadyRequeued, got %v", err)
	}
}

func TestEnqueueRequiresWorkflowType(t *testing.T) {
	q := New(Config{Jobs: newFakeJobStore(), DeadLetters: newFakeDeadLetterStore()})

	_, err := q.Enqueue(context.Background(), "", nil, EnqueueOptions{})
	if !errors.Is(err, ErrEmptyWorkflowType) {
		t.Fatalf("expected ErrEmptyWorkflowType, got %v", err)
	}
}
