package domain

import "time"

// WorkflowPlan — упорядоченный список шагов для одного типа workflow.
//
// Plan — это "программа" для оркестратора: какие task unit'ы запускать,
// в каком порядке и с какой политикой retry/timeout. После регистрации
// в реестре plan неизменяем.
type WorkflowPlan struct {
	// WorkflowType — уникальное имя типа workflow.
	WorkflowType string `json:"workflow_type"`

	// Description — описание назначения workflow.
	Description string `json:"description,omitempty"`

	// Steps — шаги в порядке выполнения. Выполняются строго
	// последовательно, параллелизма внутри одного job нет.
	Steps []Step `json:"steps"`
}

// Step — один шаг плана: ссылка на task unit плюс политика выполнения.
type Step struct {
	// StepID — уникальный идентификатор шага в рамках плана.
	StepID string `json:"step_id"`

	// UnitName — имя task unit'а из реестра.
	UnitName string `json:"unit_name"`

	// InputTemplate — статическая часть входных данных шага.
	// Сливается с {job_id, org_id, user_id, previous_steps}
	// при построении input.
	InputTemplate map[string]any `json:"input_template,omitempty"`

	// Retry — политика повторных попыток шага.
	Retry RetryPolicy `json:"retry"`

	// TimeoutMs — таймаут выполнения шага в миллисекундах.
	// 0 — без таймаута. Применяется оркестратором через context deadline
	// вокруг всего запуска unit'а (включая retry-паузы).
	TimeoutMs int `json:"timeout_ms,omitempty"`

	// Optional — если true, падение шага не останавливает workflow.
	Optional bool `json:"optional,omitempty"`
}

// Timeout возвращает таймаут шага как time.Duration.
func (s *Step) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// RetryPolicy — политика повторных попыток.
type RetryPolicy struct {
	// MaxRetries — количество повторов после первой попытки.
	// Всего попыток: MaxRetries+1. 0 — ровно одна попытка.
	MaxRetries int `json:"max_retries"`

	// BackoffMs — базовая задержка перед повтором в миллисекундах.
	// Задержка перед повтором k: BackoffMs * 2^(k-1).
	BackoffMs int `json:"backoff_ms"`
}

// Backoff возвращает базовую задержку как time.Duration.
func (p RetryPolicy) Backoff() time.Duration {
	return time.Duration(p.BackoffMs) * time.Millisecond
}
