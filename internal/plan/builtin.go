package plan

import (
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/unit"
)

// Типы встроенных workflow.
const (
	WorkflowDocumentProcessing = "document-processing"
	WorkflowDocumentSummary    = "document-summary"
	WorkflowDocumentBilling    = "document-billing"
)

// RegisterBuiltin регистрирует встроенные планы обработки документов.
// Паникует при ошибке валидации: встроенный план обязан быть корректным.
func RegisterBuiltin(r *Registry) {
	r.MustRegister(documentProcessingPlan())
	r.MustRegister(documentSummaryPlan())
	r.MustRegister(documentBillingPlan())
}

// documentProcessingPlan — полный конвейер: извлечение полей,
// проверка, классификация, архив, уведомление.
func documentProcessingPlan() *domain.WorkflowPlan {
	return &domain.WorkflowPlan{
		WorkflowType: WorkflowDocumentProcessing,
		Description:  "Extract, validate, classify and archive a document",
		Steps: []domain.Step{
			{
				StepID:   "extract",
				UnitName: unit.UnitDocumentExtract,
				InputTemplate: map[string]any{
					"fields": []string{"invoice_no", "total", "issued_at"},
				},
				Retry:     domain.RetryPolicy{MaxRetries: 2, BackoffMs: 1000},
				TimeoutMs: 120_000,
			},
			{
				StepID:   "validate",
				UnitName: unit.UnitFieldValidate,
				InputTemplate: map[string]any{
					"source_step":     "extract",
					"required_fields": []string{"invoice_no", "total"},
				},
				Retry: domain.RetryPolicy{MaxRetries: 0, BackoffMs: 0},
			},
			{
				StepID:   "classify",
				UnitName: unit.UnitClassify,
				InputTemplate: map[string]any{
					"categories": []string{"invoice", "receipt", "contract", "other"},
				},
				Retry:     domain.RetryPolicy{MaxRetries: 2, BackoffMs: 1000},
				TimeoutMs: 60_000,
			},
			{
				StepID:    "archive",
				UnitName:  unit.UnitArchive,
				Retry:     domain.RetryPolicy{MaxRetries: 3, BackoffMs: 2000},
				TimeoutMs: 60_000,
			},
			{
				StepID:   "notify",
				UnitName: unit.UnitNotify,
				InputTemplate: map[string]any{
					"channel": "ops",
				},
				Retry:    domain.RetryPolicy{MaxRetries: 1, BackoffMs: 5000},
				Optional: true,
			},
		},
	}
}

// documentBillingPlan — платная обработка: списание оплаты перед
// извлечением полей; capture идемпотентен по job_id.
func documentBillingPlan() *domain.WorkflowPlan {
	return &domain.WorkflowPlan{
		WorkflowType: WorkflowDocumentBilling,
		Description:  "Capture payment, extract fields and archive a document",
		Steps: []domain.Step{
			{
				StepID:   "capture",
				UnitName: unit.UnitPaymentCapture,
				InputTemplate: map[string]any{
					"amount_cents": 500,
					"currency":     "USD",
				},
				Retry:     domain.RetryPolicy{MaxRetries: 3, BackoffMs: 2000},
				TimeoutMs: 30_000,
			},
			{
				StepID:   "extract",
				UnitName: unit.UnitDocumentExtract,
				InputTemplate: map[string]any{
					"fields": []string{"invoice_no", "total", "issued_at"},
				},
				Retry:     domain.RetryPolicy{MaxRetries: 2, BackoffMs: 1000},
				TimeoutMs: 120_000,
			},
			{
				StepID:    "archive",
				UnitName:  unit.UnitArchive,
				Retry:     domain.RetryPolicy{MaxRetries: 3, BackoffMs: 2000},
				TimeoutMs: 60_000,
			},
			{
				StepID:   "notify",
				UnitName: unit.UnitNotify,
				InputTemplate: map[string]any{
					"channel": "billing",
				},
				Retry:    domain.RetryPolicy{MaxRetries: 1, BackoffMs: 5000},
				Optional: true,
			},
		},
	}
}

// documentSummaryPlan — короткий конвейер: суммаризация и архив.
func documentSummaryPlan() *domain.WorkflowPlan {
	return &domain.WorkflowPlan{
		WorkflowType: WorkflowDocumentSummary,
		Description:  "Summarize a document and archive the result",
		Steps: []domain.Step{
			{
				StepID:   "summarize",
				UnitName: unit.UnitSummarize,
				InputTemplate: map[string]any{
					"max_words": 200,
				},
				Retry:     domain.RetryPolicy{MaxRetries: 2, BackoffMs: 1000},
				TimeoutMs: 120_000,
			},
			{
				StepID:    "archive",
				UnitName:  unit.UnitArchive,
				Retry:     domain.RetryPolicy{MaxRetries: 3, BackoffMs: 2000},
				TimeoutMs: 60_000,
			},
		},
	}
}
