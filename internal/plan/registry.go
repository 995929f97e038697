package plan

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/Conveyor/internal/domain"
)

// UnitChecker проверяет наличие task unit'а в реестре unit'ов.
// Реализуется unit.Registry.
type UnitChecker interface {
	Has(name string) bool
}

// Registry — реестр workflow планов по типу workflow.
//
// Планы регистрируются при старте процесса и после этого неизменяемы.
// Register валидирует план целиком, включая ссылки на task unit'ы:
// план с неизвестным unit'ом отклоняется при регистрации, а не
// посреди выполнения job'а.
type Registry struct {
	mu    sync.RWMutex
	units UnitChecker
	plans map[string]*domain.WorkflowPlan
}

// NewRegistry создаёт пустой реестр планов.
// units используется для проверки ссылок на task unit'ы при регистрации.
func NewRegistry(units UnitChecker) *Registry {
	return &Registry{
		units: units,
		plans: make(map[string]*domain.WorkflowPlan),
	}
}

// Register валидирует и регистрирует план.
//
// Проверяет:
// - Наличие workflow type и шагов
// - Уникальность ID шагов
// - Наличие каждого unit'а в реестре unit'ов
// - Неотрицательность max_retries
func (r *Registry) Register(p *domain.WorkflowPlan) error {
	if err := r.validate(p); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plans[p.WorkflowType]; exists {
		return newValidationError(p.WorkflowType, "",
			fmt.Sprintf("plan already registered: %s", p.WorkflowType), ErrDuplicatePlan)
	}
	r.plans[p.WorkflowType] = p
	return nil
}

// MustRegister регистрирует план и паникует при ошибке.
// Используется при старте процесса для встроенных планов.
func (r *Registry) MustRegister(p *domain.WorkflowPlan) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// Get возвращает план по типу workflow.
// Возвращает ErrUnknownWorkflowType, если план не зарегистрирован.
func (r *Registry) Get(workflowType string) (*domain.WorkflowPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.plans[workflowType]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkflowType, workflowType)
	}
	return p, nil
}

// Has проверяет, зарегистрирован ли план.
func (r *Registry) Has(workflowType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.plans[workflowType]
	return exists
}

// Types возвращает отсортированный список типов workflow.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.plans))
	for t := range r.plans {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// All возвращает все планы, отсортированные по типу workflow.
func (r *Registry) All() []*domain.WorkflowPlan {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plans := make([]*domain.WorkflowPlan, 0, len(r.plans))
	for _, p := range r.plans {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool {
		return plans[i].WorkflowType < plans[j].WorkflowType
	})
	return plans
}

// validate выполняет полную валидацию плана.
func (r *Registry) validate(p *domain.WorkflowPlan) error {
	if p == nil || p.WorkflowType == "" {
		return ErrEmptyWorkflowType
	}
	if len(p.Steps) == 0 {
		return newValidationError(p.WorkflowType, "", "plan has no steps", ErrEmptySteps)
	}

	stepIDs := make(map[string]bool, len(p.Steps))
	for i := range p.Steps {
		step := &p.Steps[i]

		if step.StepID == "" {
			return newValidationError(p.WorkflowType, "",
				fmt.Sprintf("step %d has empty ID", i), ErrEmptyStepID)
		}
		if stepIDs[step.StepID] {
			return newValidationError(p.WorkflowType, step.StepID,
				fmt.Sprintf("duplicate step ID: %s", step.StepID), ErrDuplicateStepID)
		}
		stepIDs[step.StepID] = true

		if step.UnitName == "" || !r.units.Has(step.UnitName) {
			return newValidationError(p.WorkflowType, step.StepID,
				fmt.Sprintf("unknown task unit: %q", step.UnitName), ErrUnknownUnit)
		}

		if step.Retry.MaxRetries < 0 {
			return newValidationError(p.WorkflowType, step.StepID,
				fmt.Sprintf("negative max_retries: %d", step.Retry.MaxRetries), ErrNegativeRetries)
		}
	}

	return nil
}
