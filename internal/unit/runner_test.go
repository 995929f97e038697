package unit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shaiso/Conveyor/internal/domain"
)

// fakeUnit — управляемый unit для тестов Runner'а.
type fakeUnit struct {
	name       string
	validation ValidationResult
	raw        map[string]any
	execErr    error
	panicWith  any
	output     *domain.TaskOutput
}

func (f *fakeUnit) Name() string { return f.name }

func (f *fakeUnit) ValidateInput(input map[string]any) ValidationResult {
	return f.validation
}

func (f *fakeUnit) ExecuteTask(ctx context.Context, input map[string]any) (map[string]any, error) {
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return f.raw, f.execErr
}

func (f *fakeUnit) ProduceOutput(raw map[string]any, input map[string]any) *domain.TaskOutput {
	return f.output
}

func TestRunnerSuccess(t *testing.T) {
	u := &fakeUnit{
		name:       "ok-unit",
		validation: Valid(),
		raw:        map[string]any{"value": 42},
		output: &domain.TaskOutput{
			Success: true,
			Data:    map[string]any{"value": 42},
		},
	}

	out := NewRunner(nil).Run(context.Background(), u, map[string]any{})

	if !out.Success {
		t.Fatalf("expected success, got error %q", out.Error)
	}
	if out.Data["value"] != 42 {
		t.Errorf("expected data value 42, got %v", out.Data["value"])
	}
	if len(out.Logs) == 0 {
		t.Error("expected trace in logs")
	}
}

func TestRunnerInvalidInput(t *testing.T) {
	u := &fakeUnit{
		name:       "strict-unit",
		validation: Invalid("field x is required"),
	}

	out := NewRunner(nil).Run(context.Background(), u, map[string]any{})

	if out.Success {
		t.Fatal("expected failure for invalid input")
	}
	if !strings.Contains(out.Error, "field x is required") {
		t.Errorf("expected validation reason in error, got %q", out.Error)
	}
	if !strings.Contains(out.Error, ErrInvalidInput.Error()) {
		t.Errorf("expected %q in error, got %q", ErrInvalidInput, out.Error)
	}
}

func TestRunnerExecuteError(t *testing.T) {
	u := &fakeUnit{
		name:       "failing-unit",
		validation: Valid(),
		execErr:    errors.New("upstream unavailable"),
	}

	out := NewRunner(nil).Run(context.Background(), u, map[string]any{})

	if out.Success {
		t.Fatal("expected failure when execute returns error")
	}
	if out.Error != "upstream unavailable" {
		t.Errorf("expected execute error, got %q", out.Error)
	}
}

func TestRunnerContainsPanic(t *testing.T) {
	u := &fakeUnit{
		name:       "panicking-unit",
		validation: Valid(),
		panicWith:  "boom",
	}

	out := NewRunner(nil).Run(context.Background(), u, map[string]any{})

	if out == nil {
		t.Fatal("expected output, got nil")
	}
	if out.Success {
		t.Fatal("expected failure after panic")
	}
	if !strings.Contains(out.Error, "panic: boom") {
		t.Errorf("expected panic message in error, got %q", out.Error)
	}
	found := false
	for _, line := range out.Logs {
		if strings.Contains(line, "panic") {
			found = true
		}
	}
	if !found {
		t.Error("expected panic trace in logs")
	}
}

func TestRunnerDefaultOutput(t *testing.T) {
	// ProduceOutput возвращает nil — Runner собирает output сам.
	u := &fakeUnit{
		name:       "lazy-unit",
		validation: Valid(),
		raw:        map[string]any{"k": "v"},
		output:     nil,
	}

	out := NewRunner(nil).Run(context.Background(), u, map[string]any{})

	if !out.Success {
		t.Fatalf("expected success, got error %q", out.Error)
	}
	if out.Data["k"] != "v" {
		t.Errorf("expected raw result as data, got %v", out.Data)
	}
}

func TestRunnerLogicalFailure(t *testing.T) {
	u := &fakeUnit{
		name:       "validator-unit",
		validation: Valid(),
		raw:        map[string]any{},
		output: &domain.TaskOutput{
			Success: false,
			Error:   "2 required fields missing",
		},
	}

	out := NewRunner(nil).Run(context.Background(), u, map[string]any{})

	if out.Success {
		t.Fatal("expected logical failure to pass through")
	}
	if out.Error != "2 required fields missing" {
		t.Errorf("unexpected error: %q", out.Error)
	}
}
