package unit

import (
	"errors"
	"testing"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(NewFieldValidateUnit())

	u, err := r.Get(UnitFieldValidate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Name() != UnitFieldValidate {
		t.Errorf("expected %q, got %q", UnitFieldValidate, u.Name())
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("no-such-unit")
	if !errors.Is(err, ErrUnitNotFound) {
		t.Fatalf("expected ErrUnitNotFound, got %v", err)
	}
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeUnit{name: "b-unit"})
	r.Register(&fakeUnit{name: "a-unit"})

	names := r.Names()
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %d", len(names))
	}
	if names[0] != "a-unit" || names[1] != "b-unit" {
		t.Errorf("expected sorted names, got %v", names)
	}
}

func TestFieldValidateUnit(t *testing.T) {
	u := NewFieldValidateUnit()

	input := map[string]any{
		"source_step":     "extract",
		"required_fields": []string{"invoice_no", "total"},
		InputKeyPreviousSteps: map[string]any{
			"extract": map[string]any{
				"fields": map[string]any{
					"invoice_no": "INV-1",
				},
			},
		},
	}

	if v := u.ValidateInput(input); !v.Valid {
		t.Fatalf("unexpected validation failure: %s", v.Error)
	}

	raw, err := u.ExecuteTask(t.Context(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := u.ProduceOutput(raw, input)
	if out.Success {
		t.Fatal("expected failure with missing field")
	}
	if len(out.Flags) != 1 {
		t.Fatalf("expected 1 flag, got %d", len(out.Flags))
	}
}

func TestFieldValidateUnitPure(t *testing.T) {
	// ValidateInput не мутирует input и детерминирована.
	u := NewFieldValidateUnit()
	input := map[string]any{"source_step": "extract"}

	first := u.ValidateInput(input)
	second := u.ValidateInput(input)
	if first != second {
		t.Errorf("expected identical results, got %v and %v", first, second)
	}
	if len(input) != 1 {
		t.Errorf("input mutated: %v", input)
	}
}
