package unit

import (
	"context"
	"errors"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Ошибки unit'ов.
var (
	// ErrUnitNotFound — unit не найден в реестре.
	ErrUnitNotFound = errors.New("task unit not found")

	// ErrInvalidInput — входные данные не прошли валидацию.
	ErrInvalidInput = errors.New("invalid task input")
)

// Ключи служебных полей во входе каждого unit'а.
// Заполняются построителем input'а в пакете plan.
const (
	InputKeyJobID         = "job_id"
	InputKeyOrgID         = "org_id"
	InputKeyUserID        = "user_id"
	InputKeyPreviousSteps = "previous_steps"
)

// ValidationResult — результат проверки входных данных.
type ValidationResult struct {
	// Valid — прошёл ли input проверку.
	Valid bool

	// Error — причина отказа при Valid == false.
	Error string
}

// Valid возвращает успешный ValidationResult.
func Valid() ValidationResult {
	return ValidationResult{Valid: true}
}

// Invalid возвращает ValidationResult с ошибкой.
func Invalid(reason string) ValidationResult {
	return ValidationResult{Valid: false, Error: reason}
}

// Unit — самодостаточная единица доменной логики с единым жизненным
// циклом validate → execute → produce-output.
//
// Контракт:
//   - ValidateInput чистая и идемпотентная: одинаковый input даёт
//     одинаковый результат и не меняет состояние.
//   - ExecuteTask может вернуть ошибку или запаниковать — Runner
//     превратит и то и другое в TaskOutput{Success: false}.
//   - ProduceOutput собирает TaskOutput из сырого результата.
//
// Unit'ы, мутирующие внешнее состояние, обязаны быть идемпотентными:
// при retry побочные эффекты неудачной попытки могут примениться повторно.
type Unit interface {
	// Name возвращает уникальное имя unit'а для реестра.
	Name() string

	// ValidateInput проверяет входные данные.
	ValidateInput(input map[string]any) ValidationResult

	// ExecuteTask выполняет доменную логику и возвращает сырой результат.
	ExecuteTask(ctx context.Context, input map[string]any) (map[string]any, error)

	// ProduceOutput собирает TaskOutput из сырого результата.
	ProduceOutput(raw map[string]any, input map[string]any) *domain.TaskOutput
}

// PreviousSteps извлекает результаты предыдущих шагов из input.
func PreviousSteps(input map[string]any) map[string]any {
	return GetMap(input, InputKeyPreviousSteps)
}
