package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Jobs
	mux.Handle("POST /api/v1/jobs", chain(http.HandlerFunc(h.CreateJob)))
	mux.Handle("GET /api/v1/jobs", chain(http.HandlerFunc(h.ListJobs)))
	mux.Handle("GET /api/v1/jobs/{id}", chain(http.HandlerFunc(h.GetJob)))
	mux.Handle("GET /api/v1/jobs/{id}/state", chain(http.HandlerFunc(h.GetJobState)))

	// Plans
	mux.Handle("GET /api/v1/plans", chain(http.HandlerFunc(h.ListPlans)))
	mux.Handle("GET /api/v1/plans/{type}", chain(http.HandlerFunc(h.GetPlan)))

	// Dead letters
	mux.Handle("GET /api/v1/deadletters", chain(http.HandlerFunc(h.ListDeadLetters)))
	mux.Handle("GET /api/v1/deadletters/{id}", chain(http.HandlerFunc(h.GetDeadLetter)))
	mux.Handle("POST /api/v1/deadletters/{id}/requeue", chain(http.HandlerFunc(h.RequeueDeadLetter)))

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("POST /api/v1/schedules", chain(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("GET /api/v1/schedules/{id}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("DELETE /api/v1/schedules/{id}", chain(http.HandlerFunc(h.DeleteSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}/enabled", chain(http.HandlerFunc(h.SetScheduleEnabled)))

	// Breakers
	mux.Handle("GET /api/v1/breakers", chain(http.HandlerFunc(h.ListBreakers)))
}
