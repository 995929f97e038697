package plan

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/unit"
)

// stubUnit — минимальный unit для проверки реестра планов.
type stubUnit struct {
	name string
}

func (s *stubUnit) Name() string { return s.name }

func (s *stubUnit) ValidateInput(input map[string]any) unit.ValidationResult {
	return unit.Valid()
}

func (s *stubUnit) ExecuteTask(ctx context.Context, input map[string]any) (map[string]any, error) {
	return nil, nil
}

func (s *stubUnit) ProduceOutput(raw, input map[string]any) *domain.TaskOutput {
	return &domain.TaskOutput{Success: true}
}

func testUnits(names ...string) *unit.Registry {
	r := unit.NewRegistry()
	for _, name := range names {
		r.Register(&stubUnit{name: name})
	}
	return r
}

func validPlan() *domain.WorkflowPlan {
	return &domain.WorkflowPlan{
		WorkflowType: "test-flow",
		Steps: []domain.Step{
			{StepID: "first", UnitName: "unit-a"},
			{StepID: "second", UnitName: "unit-b"},
		},
	}
}

func TestRegistryRegisterValid(t *testing.T) {
	r := NewRegistry(testUnits("unit-a", "unit-b"))

	if err := r.Register(validPlan()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := r.Get("test-flow")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Steps) != 2 {
		t.Errorf("expected 2 steps, got %d", len(p.Steps))
	}
}

func TestRegistryUnknownType(t *testing.T) {
	r := NewRegistry(testUnits())

	_, err := r.Get("unknown-xyz")
	if !errors.Is(err, ErrUnknownWorkflowType) {
		t.Fatalf("expected ErrUnknownWorkflowType, got %v", err)
	}
}

func TestRegistryRejectsUnknownUnit(t *testing.T) {
	// Шаг ссылается на unit, которого нет в реестре unit'ов.
	r := NewRegistry(testUnits("unit-a"))

	err := r.Register(validPlan())
	if !errors.Is(err, ErrUnknownUnit) {
		t.Fatalf("expected ErrUnknownUnit, got %v", err)
	}
	if r.Has("test-flow") {
		t.Error("invalid plan must not be registered")
	}
}

func TestRegistryRejectsDuplicateStepID(t *testing.T) {
	r := NewRegistry(testUnits("unit-a"))

	err := r.Register(&domain.WorkflowPlan{
		WorkflowType: "dup-flow",
		Steps: []domain.Step{
			{StepID: "same", UnitName: "unit-a"},
			{StepID: "same", UnitName: "unit-a"},
		},
	})
	if !errors.Is(err, ErrDuplicateStepID) {
		t.Fatalf("expected ErrDuplicateStepID, got %v", err)
	}
}

func TestRegistryRejectsEmptyPlan(t *testing.T) {
	r := NewRegistry(testUnits())

	err := r.Register(&domain.WorkflowPlan{WorkflowType: "empty-flow"})
	if !errors.Is(err, ErrEmptySteps) {
		t.Fatalf("expected ErrEmptySteps, got %v", err)
	}
}

func TestRegistryRejectsDuplicatePlan(t *testing.T) {
	r := NewRegistry(testUnits("unit-a", "unit-b"))

	if err := r.Register(validPlan()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := r.Register(validPlan())
	if !errors.Is(err, ErrDuplicatePlan) {
		t.Fatalf("expected ErrDuplicatePlan, got %v", err)
	}
}

func TestBuildInput(t *testing.T) {
	job := &domain.Job{
		ID:     uuid.New(),
		OrgID:  "org-1",
		UserID: "user-1",
		Payload: map[string]any{
			"document_text": "hello",
		},
	}

	state := domain.NewWorkflowState(job.ID, 2)
	state.AddStepResult(domain.StepResult{
		StepID: "extract",
		Status: domain.StepStatusCompleted,
		Output: &domain.TaskOutput{
			Success: true,
			Data:    map[string]any{"fields": map[string]any{"total": "10"}},
		},
	})

	step := &domain.Step{
		StepID:   "validate",
		UnitName: "unit-a",
		InputTemplate: map[string]any{
			"source_step": "extract",
		},
	}

	input := BuildInput(step, job, state)

	if input[unit.InputKeyJobID] != job.ID.String() {
		t.Errorf("expected job_id %s, got %v", job.ID, input[unit.InputKeyJobID])
	}
	if input[unit.InputKeyOrgID] != "org-1" {
		t.Errorf("expected org_id org-1, got %v", input[unit.InputKeyOrgID])
	}
	if input["source_step"] != "extract" {
		t.Errorf("template not merged: %v", input)
	}
	if input["document_text"] != "hello" {
		t.Errorf("payload not merged: %v", input)
	}

	prev, ok := input[unit.InputKeyPreviousSteps].(map[string]any)
	if !ok {
		t.Fatalf("expected previous_steps map, got %T", input[unit.InputKeyPreviousSteps])
	}
	if _, ok := prev["extract"]; !ok {
		t.Errorf("expected extract output in previous_steps, got %v", prev)
	}
}

func TestBuildInputTemplateWinsOverPayload(t *testing.T) {
	job := &domain.Job{
		ID:      uuid.New(),
		Payload: map[string]any{"channel": "payload-channel"},
	}
	step := &domain.Step{
		StepID:        "notify",
		InputTemplate: map[string]any{"channel": "template-channel"},
	}

	input := BuildInput(step, job, nil)
	if input["channel"] != "template-channel" {
		t.Errorf("template must win over payload, got %v", input["channel"])
	}
}

func TestBuiltinPlansRegister(t *testing.T) {
	units := testUnits(
		unit.UnitDocumentExtract,
		unit.UnitFieldValidate,
		unit.UnitClassify,
		unit.UnitSummarize,
		unit.UnitArchive,
		unit.UnitNotify,
		unit.UnitPaymentCapture,
	)
	r := NewRegistry(units)

	RegisterBuiltin(r)

	if !r.Has(WorkflowDocumentProcessing) {
		t.Error("document-processing plan missing")
	}
	if !r.Has(WorkflowDocumentSummary) {
		t.Error("document-summary plan missing")
	}
}
