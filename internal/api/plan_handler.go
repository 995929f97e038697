package api

import (
	"errors"
	"net/http"

	"github.com/shaiso/Conveyor/internal/plan"
)

// ListPlans возвращает все зарегистрированные планы workflow.
// GET /api/v1/plans
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans := h.plans.All()

	result := make([]PlanResponse, len(plans))
	for i, p := range plans {
		result[i] = PlanFromDomain(p)
	}

	List(w, result, len(result))
}

// GetPlan возвращает план по типу workflow.
// GET /api/v1/plans/{type}
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	workflowType := r.PathValue("type")

	p, err := h.plans.Get(workflowType)
	if err != nil {
		if errors.Is(err, plan.ErrUnknownWorkflowType) {
			NotFound(w, "unknown workflow type: "+workflowType)
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Success(w, PlanFromDomain(p))
}

// ListBreakers возвращает состояние всех circuit breaker'ов.
// GET /api/v1/breakers
func (h *Handler) ListBreakers(w http.ResponseWriter, r *http.Request) {
	snaps := h.breakers.Snapshots()
	List(w, snaps, len(snaps))
}
