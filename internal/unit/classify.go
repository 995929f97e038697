package unit

import (
	"context"
	"fmt"

	"github.com/shaiso/Conveyor/internal/domain"
)

// UnitClassify — имя unit'а классификации документа.
const UnitClassify = "classify"

// ClassifyUnit определяет категорию документа через model inference.
//
// Input:
//
//	{
//	    "document_text": "...",
//	    "categories": ["invoice", "receipt", "contract"]
//	}
//
// Data: {"category": "...", "confidence": 0.93}
type ClassifyUnit struct {
	inference *InferenceClient
}

// NewClassifyUnit создаёт ClassifyUnit.
func NewClassifyUnit(inference *InferenceClient) *ClassifyUnit {
	return &ClassifyUnit{inference: inference}
}

// Name возвращает имя unit'а.
func (u *ClassifyUnit) Name() string {
	return UnitClassify
}

// ValidateInput проверяет текст и список категорий.
func (u *ClassifyUnit) ValidateInput(input map[string]any) ValidationResult {
	if GetString(input, "document_text") == "" {
		return Invalid("document_text is required")
	}
	if len(GetStringSlice(input, "categories")) == 0 {
		return Invalid("categories is required")
	}
	return Valid()
}

// ExecuteTask вызывает модель для классификации.
func (u *ClassifyUnit) ExecuteTask(ctx context.Context, input map[string]any) (map[string]any, error) {
	result, err := u.inference.Complete(ctx, "classify", map[string]any{
		"text":       GetString(input, "document_text"),
		"categories": GetStringSlice(input, "categories"),
	})
	if err != nil {
		return nil, fmt.Errorf("classify inference: %w", err)
	}

	return map[string]any{
		"category":   GetString(result.Data, "category"),
		"confidence": result.Confidence,
	}, nil
}

// ProduceOutput собирает TaskOutput; низкая уверенность — WARNING.
func (u *ClassifyUnit) ProduceOutput(raw map[string]any, input map[string]any) *domain.TaskOutput {
	confidence := GetFloat(raw, "confidence")
	out := &domain.TaskOutput{
		Success:         true,
		Data:            raw,
		ConfidenceScore: &confidence,
	}

	if GetString(raw, "category") == "" {
		out.Success = false
		out.Error = "model returned no category"
		return out
	}

	if confidence < 0.7 {
		out.Flags = append(out.Flags, domain.Flag{
			Severity:        domain.SeverityWarning,
			Category:        "classification",
			Message:         fmt.Sprintf("low classification confidence: %.2f", confidence),
			SuggestedAction: "confirm category manually",
		})
	}

	return out
}
