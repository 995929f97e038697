package unit

import (
	"context"
	"fmt"

	"github.com/shaiso/Conveyor/internal/domain"
)

// UnitFieldValidate — имя unit'а проверки извлечённых полей.
const UnitFieldValidate = "field-validate"

// FieldValidateUnit проверяет, что предыдущий шаг извлёк все
// обязательные поля. Внешних зависимостей нет — чистая проверка
// результатов из previous_steps.
//
// Input:
//
//	{
//	    "source_step": "extract",                 // шаг с полями
//	    "required_fields": ["invoice_no", ...]    // обязательные поля
//	}
//
// Data: {"valid": bool, "missing": [...], "checked": N}
type FieldValidateUnit struct{}

// NewFieldValidateUnit создаёт FieldValidateUnit.
func NewFieldValidateUnit() *FieldValidateUnit {
	return &FieldValidateUnit{}
}

// Name возвращает имя unit'а.
func (u *FieldValidateUnit) Name() string {
	return UnitFieldValidate
}

// ValidateInput проверяет, что указан исходный шаг и список полей.
func (u *FieldValidateUnit) ValidateInput(input map[string]any) ValidationResult {
	if GetString(input, "source_step") == "" {
		return Invalid("source_step is required")
	}
	if len(GetStringSlice(input, "required_fields")) == 0 {
		return Invalid("required_fields is required")
	}
	return Valid()
}

// ExecuteTask сверяет извлечённые поля со списком обязательных.
func (u *FieldValidateUnit) ExecuteTask(ctx context.Context, input map[string]any) (map[string]any, error) {
	sourceStep := GetString(input, "source_step")
	required := GetStringSlice(input, "required_fields")

	prev := PreviousSteps(input)
	source := GetMap(prev, sourceStep)
	if source == nil {
		return nil, fmt.Errorf("no output from step %q", sourceStep)
	}
	fields := GetMap(source, "fields")

	var missing []string
	for _, name := range required {
		v, ok := fields[name]
		if !ok || v == nil || v == "" {
			missing = append(missing, name)
		}
	}

	return map[string]any{
		"valid":   len(missing) == 0,
		"missing": missing,
		"checked": len(required),
	}, nil
}

// ProduceOutput собирает TaskOutput с флагами по отсутствующим полям.
func (u *FieldValidateUnit) ProduceOutput(raw map[string]any, input map[string]any) *domain.TaskOutput {
	out := &domain.TaskOutput{
		Success: true,
		Data:    raw,
	}

	missing, _ := raw["missing"].([]string)
	for _, name := range missing {
		out.Flags = append(out.Flags, domain.Flag{
			Severity:        domain.SeverityError,
			Category:        "validation",
			Message:         fmt.Sprintf("required field %q is missing", name),
			SuggestedAction: "re-extract or fill manually",
		})
	}
	if len(missing) > 0 {
		out.Success = false
		out.Error = fmt.Sprintf("%d required fields missing", len(missing))
	}

	return out
}
