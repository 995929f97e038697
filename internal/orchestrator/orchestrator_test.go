package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/plan"
	"github.com/shaiso/Conveyor/internal/retry"
	"github.com/shaiso/Conveyor/internal/unit"
)

// fakeJobStore — in-memory JobStore.
type fakeJobStore struct {
	jobs    map[uuid.UUID]*domain.Job
	updates []domain.JobStatus
	failOn  string // имя операции, на которой store "падает"
}

func newFakeJobStore(jobs ...*domain.Job) *fakeJobStore {
	s := &fakeJobStore{jobs: make(map[uuid.UUID]*domain.Job)}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *fakeJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	if s.failOn == "get" {
		return nil, errors.New("store unreachable")
	}
	j, ok := s.jobs[id]
	if !ok {
		return nil, errors.New("no such job")
	}
	copied := *j
	return &copied, nil
}

func (s *fakeJobStore) Update(ctx context.Context, job *domain.Job) error {
	if s.failOn == "update" {
		return errors.New("store unreachable")
	}
	copied := *job
	s.jobs[job.ID] = &copied
	s.updates = append(s.updates, job.Status)
	return nil
}

// fakeStateStore — in-memory StateStore.
type fakeStateStore struct {
	states map[uuid.UUID]*domain.WorkflowState
	saves  int
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: make(map[uuid.UUID]*domain.WorkflowState)}
}

func (s *fakeStateStore) Save(ctx context.Context, state *domain.WorkflowState) error {
	copied := *state
	copied.StepResults = append([]domain.StepResult(nil), state.StepResults...)
	s.states[state.JobID] = &copied
	s.saves++
	return nil
}

// scriptedUnit — unit с заранее заданной последовательностью исходов.
// Каждый вызов ExecuteTask берёт следующий исход; после исчерпания
// повторяется последний.
type scriptedUnit struct {
	name     string
	outcomes []bool
	calls    int
}

func (s *scriptedUnit) Name() string { return s.name }

func (s *scriptedUnit) ValidateInput(input map[string]any) unit.ValidationResult {
	return unit.Valid()
}

func (s *scriptedUnit) ExecuteTask(ctx context.Context, input map[string]any) (map[string]any, error) {
	i := s.calls
	if i >= len(s.outcomes) {
		i = len(s.outcomes) - 1
	}
	s.calls++
	if !s.outcomes[i] {
		return nil, fmt.Errorf("scripted failure %d", s.calls)
	}
	return map[string]any{"call": s.calls}, nil
}

func (s *scriptedUnit) ProduceOutput(raw, input map[string]any) *domain.TaskOutput {
	return &domain.TaskOutput{Success: true, Data: raw}
}

// testHarness собирает оркестратор с fake-хранилищами.
type testHarness struct {
	orch   *Orchestrator
	jobs   *fakeJobStore
	states *fakeStateStore
	units  *unit.Registry
	clock  *retry.FakeClock
}

func newHarness(t *testing.T, job *domain.Job, units []unit.Unit, p *domain.WorkflowPlan) *testHarness {
	t.Helper()

	unitReg := unit.NewRegistry()
	for _, u := range units {
		unitReg.Register(u)
	}

	planReg := plan.NewRegistry(unitReg)
	if p != nil {
		if err := planReg.Register(p); err != nil {
			t.Fatalf("register plan: %v", err)
		}
	}

	jobs := newFakeJobStore(job)
	states := newFakeStateStore()
	clock := retry.NewFakeClock(time.Now())

	orch := New(Config{
		Jobs:   jobs,
		States: states,
		Plans:  planReg,
		Units:  unitReg,
		Retry:  retry.NewWithClock(nil, clock),
	})

	return &testHarness{orch: orch, jobs: jobs, states: states, units: unitReg, clock: clock}
}

func pendingJob(workflowType string) *domain.Job {
	return &domain.Job{
		ID:           uuid.New(),
		WorkflowType: workflowType,
		Status:       domain.JobStatusPending,
		Payload:      map[string]any{"doc": "x"},
		CreatedAt:    time.Now(),
	}
}

func TestExecuteCompletesTwoStepPlan(t *testing.T) {
	job := pendingJob("two-step")
	h := newHarness(t, job,
		[]unit.Unit{
			&scriptedUnit{name: "first-unit", outcomes: []bool{true}},
			&scriptedUnit{name: "second-unit", outcomes: []bool{true}},
		},
		&domain.WorkflowPlan{
			WorkflowType: "two-step",
			Steps: []domain.Step{
				{StepID: "one", UnitName: "first-unit"},
				{StepID: "two", UnitName: "second-unit"},
			},
		})

	state, err := h.orch.Execute(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.Status != domain.JobStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", state.Status)
	}
	if len(state.StepResults) != 2 {
		t.Fatalf("expected 2 step results, got %d", len(state.StepResults))
	}

	stored := h.jobs.jobs[job.ID]
	if stored.Status != domain.JobStatusCompleted {
		t.Errorf("persisted job status %s", stored.Status)
	}
	if stored.Progress != 100 {
		t.Errorf("expected progress 100, got %d", stored.Progress)
	}
	if _, ok := stored.Output["one"]; !ok {
		t.Errorf("expected aggregated output for step one, got %v", stored.Output)
	}
	if _, ok := stored.Output["two"]; !ok {
		t.Errorf("expected aggregated output for step two, got %v", stored.Output)
	}
}

func TestExecuteRequiredStepFailsAllRetries(t *testing.T) {
	// Двухшаговый план, шаг 1 падает все 3 попытки: workflow FAILED,
	// выполнен ровно один шаг, progress=50, второй шаг SKIPPED.
	job := pendingJob("failing")
	failing := &scriptedUnit{name: "failing-unit", outcomes: []bool{false}}
	h := newHarness(t, job,
		[]unit.Unit{
			failing,
			&scriptedUnit{name: "second-unit", outcomes: []bool{true}},
		},
		&domain.WorkflowPlan{
			WorkflowType: "failing",
			Steps: []domain.Step{
				{StepID: "one", UnitName: "failing-unit", Retry: domain.RetryPolicy{MaxRetries: 2, BackoffMs: 1000}},
				{StepID: "two", UnitName: "second-unit"},
			},
		})

	state, err := h.orch.Execute(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.Status != domain.JobStatusFailed {
		t.Errorf("expected FAILED, got %s", state.Status)
	}
	if state.TotalSteps != 2 {
		t.Errorf("expected totalSteps=2, got %d", state.TotalSteps)
	}
	if failing.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", failing.calls)
	}

	var executed []domain.StepResult
	for _, r := range state.StepResults {
		if r.Status != domain.StepStatusSkipped {
			executed = append(executed, r)
		}
	}
	if len(executed) != 1 {
		t.Fatalf("expected 1 executed step, got %d", len(executed))
	}
	if executed[0].Status != domain.StepStatusFailed {
		t.Errorf("expected step FAILED, got %s", executed[0].Status)
	}
	if executed[0].RetryCount != 2 {
		t.Errorf("expected retryCount=2, got %d", executed[0].RetryCount)
	}

	if h.jobs.jobs[job.ID].Progress != 50 {
		t.Errorf("expected progress 50, got %d", h.jobs.jobs[job.ID].Progress)
	}

	// Retry-паузы детерминированы: 1s, 2s.
	if len(h.clock.Sleeps) != 2 || h.clock.Sleeps[0] != time.Second || h.clock.Sleeps[1] != 2*time.Second {
		t.Errorf("unexpected retry delays: %v", h.clock.Sleeps)
	}
}

func TestExecuteOptionalStepFailureContinues(t *testing.T) {
	// Шаг 1 optional и всегда падает, шаг 2 обязательный и успешен:
	// workflow COMPLETED, оба результата записаны, progress=100.
	job := pendingJob("optional")
	h := newHarness(t, job,
		[]unit.Unit{
			&scriptedUnit{name: "flaky-unit", outcomes: []bool{false}},
			&scriptedUnit{name: "solid-unit", outcomes: []bool{true}},
		},
		&domain.WorkflowPlan{
			WorkflowType: "optional",
			Steps: []domain.Step{
				{StepID: "one", UnitName: "flaky-unit", Optional: true},
				{StepID: "two", UnitName: "solid-unit"},
			},
		})

	state, err := h.orch.Execute(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.Status != domain.JobStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", state.Status)
	}
	if len(state.StepResults) != 2 {
		t.Fatalf("expected 2 step results, got %d", len(state.StepResults))
	}
	if state.StepResults[0].Status != domain.StepStatusFailed {
		t.Errorf("expected optional step FAILED, got %s", state.StepResults[0].Status)
	}
	if state.StepResults[1].Status != domain.StepStatusCompleted {
		t.Errorf("expected second step COMPLETED, got %s", state.StepResults[1].Status)
	}
	if h.jobs.jobs[job.ID].Progress != 100 {
		t.Errorf("expected progress 100, got %d", h.jobs.jobs[job.ID].Progress)
	}
}

func TestExecuteUnknownWorkflowType(t *testing.T) {
	// Неизвестный workflow type: ошибка сразу, статус остаётся PENDING
	// без промежуточной записи RUNNING.
	job := pendingJob("unknown-xyz")
	h := newHarness(t, job, nil, nil)

	_, err := h.orch.Execute(context.Background(), job.ID)
	if !errors.Is(err, plan.ErrUnknownWorkflowType) {
		t.Fatalf("expected ErrUnknownWorkflowType, got %v", err)
	}

	if got := h.jobs.jobs[job.ID].Status; got != domain.JobStatusPending {
		t.Errorf("expected job to remain PENDING, got %s", got)
	}
	if len(h.jobs.updates) != 0 {
		t.Errorf("expected no status writes, got %v", h.jobs.updates)
	}
}

func TestExecuteJobNotFound(t *testing.T) {
	h := newHarness(t, pendingJob("whatever"), nil, nil)

	_, err := h.orch.Execute(context.Background(), uuid.New())
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestExecuteMissingUnitFailsStep(t *testing.T) {
	// Unit зарегистрирован при регистрации плана, но исчез к моменту
	// выполнения: шаг FAILED без retry.
	job := pendingJob("vanishing")
	h := newHarness(t, job,
		[]unit.Unit{&scriptedUnit{name: "ghost-unit", outcomes: []bool{true}}},
		&domain.WorkflowPlan{
			WorkflowType: "vanishing",
			Steps: []domain.Step{
				{StepID: "one", UnitName: "ghost-unit", Retry: domain.RetryPolicy{MaxRetries: 3, BackoffMs: 1000}},
			},
		})

	// Подменяем реестр unit'ов на пустой
	h.orch.units = unit.NewRegistry()

	state, err := h.orch.Execute(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.Status != domain.JobStatusFailed {
		t.Errorf("expected FAILED, got %s", state.Status)
	}
	if state.StepResults[0].RetryCount != 0 {
		t.Errorf("missing unit must not be retried, retryCount=%d", state.StepResults[0].RetryCount)
	}
	if len(h.clock.Sleeps) != 0 {
		t.Errorf("expected no retry sleeps, got %v", h.clock.Sleeps)
	}
}

func TestExecuteFinishedJobIsNoop(t *testing.T) {
	job := pendingJob("two-step")
	job.MarkRunning()
	job.MarkCompleted(map[string]any{"one": "done"})

	h := newHarness(t, job, nil, nil)

	state, err := h.orch.Execute(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Status != domain.JobStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", state.Status)
	}
	if len(h.jobs.updates) != 0 {
		t.Errorf("finished job must not be touched, got updates %v", h.jobs.updates)
	}
}

// blockingUnit висит в ExecuteTask до отмены контекста.
type blockingUnit struct {
	name  string
	calls int
}

func (b *blockingUnit) Name() string { return b.name }

func (b *blockingUnit) ValidateInput(input map[string]any) unit.ValidationResult {
	return unit.Valid()
}

func (b *blockingUnit) ExecuteTask(ctx context.Context, input map[string]any) (map[string]any, error) {
	b.calls++
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *blockingUnit) ProduceOutput(raw, input map[string]any) *domain.TaskOutput {
	return &domain.TaskOutput{Success: true, Data: raw}
}

func TestExecuteStepTimeoutFailsWorkflow(t *testing.T) {
	// Шаг с timeout_ms=30 и бюджетом повторов: unit висит до дедлайна,
	// повторы после истечения таймаута не запускаются.
	job := pendingJob("slow")
	slow := &blockingUnit{name: "slow-unit"}
	h := newHarness(t, job,
		[]unit.Unit{slow},
		&domain.WorkflowPlan{
			WorkflowType: "slow",
			Steps: []domain.Step{
				{StepID: "one", UnitName: "slow-unit", TimeoutMs: 30, Retry: domain.RetryPolicy{MaxRetries: 2, BackoffMs: 1000}},
			},
		})

	state, err := h.orch.Execute(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.Status != domain.JobStatusFailed {
		t.Errorf("expected FAILED, got %s", state.Status)
	}
	if slow.calls != 1 {
		t.Errorf("expected 1 attempt before deadline, got %d", slow.calls)
	}
	if got := state.StepResults[0].Error; !strings.Contains(got, ErrStepTimeout.Error()) {
		t.Errorf("expected timeout error, got %q", got)
	}
	if len(h.clock.Sleeps) != 0 {
		t.Errorf("expected no retry sleeps after deadline, got %v", h.clock.Sleeps)
	}
	if got := h.jobs.jobs[job.ID].Status; got != domain.JobStatusFailed {
		t.Errorf("persisted job status %s", got)
	}
}

// rateLimitedUnit отвечает rate limit с retry-after на первый вызов,
// после — успешно.
type rateLimitedUnit struct {
	name       string
	retryAfter time.Duration
	calls      int
}

func (u *rateLimitedUnit) Name() string { return u.name }

func (u *rateLimitedUnit) ValidateInput(input map[string]any) unit.ValidationResult {
	return unit.Valid()
}

func (u *rateLimitedUnit) ExecuteTask(ctx context.Context, input map[string]any) (map[string]any, error) {
	u.calls++
	if u.calls == 1 {
		return nil, &retry.RateLimitError{
			RetryAfter: u.retryAfter,
			Err:        errors.New("throttled by dependency"),
		}
	}
	return map[string]any{"call": u.calls}, nil
}

func (u *rateLimitedUnit) ProduceOutput(raw, input map[string]any) *domain.TaskOutput {
	return &domain.TaskOutput{Success: true, Data: raw}
}

func TestExecuteRetryHonorsServerRetryAfter(t *testing.T) {
	// Зависимость отвечает rate limit с retry-after 7s: ожидание перед
	// повтором берётся из ответа сервера, а не из экспоненты BackoffMs.
	// Сигнал проходит весь путь: unit → output → retry executor.
	job := pendingJob("throttled")
	throttled := &rateLimitedUnit{name: "throttled-unit", retryAfter: 7 * time.Second}
	h := newHarness(t, job,
		[]unit.Unit{throttled},
		&domain.WorkflowPlan{
			WorkflowType: "throttled",
			Steps: []domain.Step{
				{StepID: "one", UnitName: "throttled-unit", Retry: domain.RetryPolicy{MaxRetries: 2, BackoffMs: 2000}},
			},
		})

	state, err := h.orch.Execute(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.Status != domain.JobStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", state.Status)
	}
	if throttled.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", throttled.calls)
	}
	if state.StepResults[0].RetryCount != 1 {
		t.Errorf("expected retryCount=1, got %d", state.StepResults[0].RetryCount)
	}
	if len(h.clock.Sleeps) != 1 || h.clock.Sleeps[0] != 7*time.Second {
		t.Errorf("expected single 7s wait from retry-after, got %v", h.clock.Sleeps)
	}
}

func TestExecuteRetrySucceedsSecondAttempt(t *testing.T) {
	job := pendingJob("flaky")
	flaky := &scriptedUnit{name: "flaky-unit", outcomes: []bool{false, true}}
	h := newHarness(t, job,
		[]unit.Unit{flaky},
		&domain.WorkflowPlan{
			WorkflowType: "flaky",
			Steps: []domain.Step{
				{StepID: "one", UnitName: "flaky-unit", Retry: domain.RetryPolicy{MaxRetries: 2, BackoffMs: 500}},
			},
		})

	state, err := h.orch.Execute(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.Status != domain.JobStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", state.Status)
	}
	if flaky.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", flaky.calls)
	}
	if state.StepResults[0].RetryCount != 1 {
		t.Errorf("expected retryCount=1, got %d", state.StepResults[0].RetryCount)
	}
}
