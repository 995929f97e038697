package plan

import (
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/unit"
)

// BuildInput строит входные данные шага: статический шаблон шага
// плюс служебные поля job'а и результаты уже выполненных шагов.
//
// Поздние шаги получают доступ к результатам ранних через
// previous_steps без прямой связи между unit'ами. Шаблон копируется,
// поэтому план остаётся неизменяемым.
func BuildInput(step *domain.Step, job *domain.Job, state *domain.WorkflowState) map[string]any {
	input := make(map[string]any, len(step.InputTemplate)+4)
	for k, v := range step.InputTemplate {
		input[k] = v
	}

	input[unit.InputKeyJobID] = job.ID.String()
	input[unit.InputKeyOrgID] = job.OrgID
	input[unit.InputKeyUserID] = job.UserID
	input[unit.InputKeyPreviousSteps] = previousSteps(state)

	// Payload job'а доступен шагам напрямую, если шаблон
	// не перекрывает ключ.
	for k, v := range job.Payload {
		if _, exists := input[k]; !exists {
			input[k] = v
		}
	}

	return input
}

// previousSteps собирает step_id → output.data по завершённым шагам.
func previousSteps(state *domain.WorkflowState) map[string]any {
	prev := make(map[string]any)
	if state == nil {
		return prev
	}
	for i := range state.StepResults {
		res := &state.StepResults[i]
		if res.Status == domain.StepStatusCompleted && res.Output != nil {
			prev[res.StepID] = res.Output.Data
		}
	}
	return prev
}
