package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrJobNotFound — job не найден в store.
	ErrJobNotFound = errors.New("job not found")

	// ErrStepFailed — шаг завершился с output.Success == false.
	// Используется внутри retry-адаптера: unit никогда не возвращает
	// ошибку сам, поэтому логический провал конвертируется в error.
	ErrStepFailed = errors.New("step failed")

	// ErrStepTimeout — шаг не уложился в timeout_ms плана.
	ErrStepTimeout = errors.New("step timed out")
)
