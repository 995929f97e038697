package unit

import (
	"context"
	"fmt"

	"github.com/shaiso/Conveyor/internal/domain"
)

// UnitSummarize — имя unit'а суммаризации.
const UnitSummarize = "summarize"

// SummarizeUnit строит краткое содержание документа через model inference.
//
// Input:
//
//	{
//	    "document_text": "...",
//	    "max_words": 150    // опционально
//	}
//
// Data: {"summary": "..."}
type SummarizeUnit struct {
	inference *InferenceClient
}

// NewSummarizeUnit создаёт SummarizeUnit.
func NewSummarizeUnit(inference *InferenceClient) *SummarizeUnit {
	return &SummarizeUnit{inference: inference}
}

// Name возвращает имя unit'а.
func (u *SummarizeUnit) Name() string {
	return UnitSummarize
}

// ValidateInput проверяет наличие текста.
func (u *SummarizeUnit) ValidateInput(input map[string]any) ValidationResult {
	if GetString(input, "document_text") == "" {
		return Invalid("document_text is required")
	}
	return Valid()
}

// ExecuteTask вызывает модель для суммаризации.
func (u *SummarizeUnit) ExecuteTask(ctx context.Context, input map[string]any) (map[string]any, error) {
	maxWords := GetInt(input, "max_words")
	if maxWords <= 0 {
		maxWords = 150
	}

	result, err := u.inference.Complete(ctx, "summarize", map[string]any{
		"text":      GetString(input, "document_text"),
		"max_words": maxWords,
	})
	if err != nil {
		return nil, fmt.Errorf("summarize inference: %w", err)
	}

	return map[string]any{
		"summary":    GetString(result.Data, "summary"),
		"confidence": result.Confidence,
	}, nil
}

// ProduceOutput собирает TaskOutput.
func (u *SummarizeUnit) ProduceOutput(raw map[string]any, input map[string]any) *domain.TaskOutput {
	if GetString(raw, "summary") == "" {
		return &domain.TaskOutput{
			Success: false,
			Error:   "model returned empty summary",
		}
	}

	confidence := GetFloat(raw, "confidence")
	return &domain.TaskOutput{
		Success:         true,
		Data:            map[string]any{"summary": GetString(raw, "summary")},
		ConfidenceScore: &confidence,
	}
}
