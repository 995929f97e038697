package plan

import "errors"

// Ошибки реестра планов.
var (
	// ErrUnknownWorkflowType — план для workflow type не зарегистрирован.
	// Фатальная, неповторяемая ошибка: retry не поможет.
	ErrUnknownWorkflowType = errors.New("unknown workflow type")

	// ErrEmptySteps — план не содержит шагов.
	ErrEmptySteps = errors.New("workflow plan has no steps")

	// ErrEmptyWorkflowType — план без имени workflow type.
	ErrEmptyWorkflowType = errors.New("workflow plan has empty type")

	// ErrEmptyStepID — шаг без ID.
	ErrEmptyStepID = errors.New("step has empty ID")

	// ErrDuplicateStepID — несколько шагов с одинаковым ID.
	ErrDuplicateStepID = errors.New("duplicate step ID")

	// ErrDuplicatePlan — план для этого workflow type уже зарегистрирован.
	ErrDuplicatePlan = errors.New("workflow plan already registered")

	// ErrUnknownUnit — шаг ссылается на незарегистрированный unit.
	ErrUnknownUnit = errors.New("step references unknown task unit")

	// ErrNegativeRetries — отрицательный max_retries в retry policy.
	ErrNegativeRetries = errors.New("retry policy has negative max retries")
)

// ValidationError — ошибка валидации плана с контекстом.
type ValidationError struct {
	WorkflowType string // тип workflow, где произошла ошибка
	StepID       string // ID шага, вызвавшего ошибку
	Message      string // описание ошибки
	Err          error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.StepID != "" {
		return "plan " + e.WorkflowType + ", step " + e.StepID + ": " + e.Message
	}
	return "plan " + e.WorkflowType + ": " + e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// newValidationError создаёт ошибку валидации плана.
func newValidationError(workflowType, stepID, message string, err error) *ValidationError {
	return &ValidationError{
		WorkflowType: workflowType,
		StepID:       stepID,
		Message:      message,
		Err:          err,
	}
}
