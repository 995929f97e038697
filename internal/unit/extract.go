package unit

import (
	"context"
	"fmt"

	"github.com/shaiso/Conveyor/internal/domain"
)

// UnitDocumentExtract — имя unit'а извлечения данных из документа.
const UnitDocumentExtract = "document-extract"

// DocumentExtractUnit извлекает структурированные поля из текста
// документа через model inference.
//
// Input:
//
//	{
//	    "document_text": "...",          // текст документа
//	    "document_ref": "s3://...",      // ссылка (для трассировки)
//	    "fields": ["invoice_no", ...]    // какие поля извлекать
//	}
//
// Data: {"fields": {...}, "document_ref": "..."}
type DocumentExtractUnit struct {
	inference *InferenceClient
}

// NewDocumentExtractUnit создаёт DocumentExtractUnit.
func NewDocumentExtractUnit(inference *InferenceClient) *DocumentExtractUnit {
	return &DocumentExtractUnit{inference: inference}
}

// Name возвращает имя unit'а.
func (u *DocumentExtractUnit) Name() string {
	return UnitDocumentExtract
}

// ValidateInput проверяет, что есть текст документа.
func (u *DocumentExtractUnit) ValidateInput(input map[string]any) ValidationResult {
	if GetString(input, "document_text") == "" {
		return Invalid("document_text is required")
	}
	return Valid()
}

// ExecuteTask вызывает модель для извлечения полей.
func (u *DocumentExtractUnit) ExecuteTask(ctx context.Context, input map[string]any) (map[string]any, error) {
	result, err := u.inference.Complete(ctx, "extract", map[string]any{
		"text":   GetString(input, "document_text"),
		"fields": GetStringSlice(input, "fields"),
	})
	if err != nil {
		return nil, fmt.Errorf("extract inference: %w", err)
	}

	return map[string]any{
		"fields":     result.Data,
		"confidence": result.Confidence,
	}, nil
}

// ProduceOutput собирает TaskOutput с confidence и ссылкой на документ.
func (u *DocumentExtractUnit) ProduceOutput(raw map[string]any, input map[string]any) *domain.TaskOutput {
	confidence := GetFloat(raw, "confidence")
	out := &domain.TaskOutput{
		Success: true,
		Data: map[string]any{
			"fields":       GetMap(raw, "fields"),
			"document_ref": GetString(input, "document_ref"),
		},
		ConfidenceScore: &confidence,
	}

	if confidence < 0.5 {
		out.Flags = append(out.Flags, domain.Flag{
			Severity:        domain.SeverityWarning,
			Category:        "extraction",
			Message:         fmt.Sprintf("low extraction confidence: %.2f", confidence),
			SuggestedAction: "review extracted fields manually",
		})
		out.NextSteps = append(out.NextSteps, "manual review recommended")
	}

	return out
}
