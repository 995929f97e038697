package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/queue"
	"github.com/shaiso/Conveyor/internal/repo"
)

// CreateJob ставит новый job в очередь.
// POST /api/v1/jobs
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.WorkflowType == "" {
		BadRequest(w, "workflow_type is required")
		return
	}
	if !h.plans.Has(req.WorkflowType) {
		BadRequest(w, "unknown workflow type: "+req.WorkflowType)
		return
	}
	if req.Priority < 0 || req.Priority > 9 {
		BadRequest(w, "priority must be between 0 and 9")
		return
	}

	opts := queue.EnqueueOptions{
		Priority: req.Priority,
		Delay:    time.Duration(req.DelayMs) * time.Millisecond,
		OrgID:    req.OrgID,
		UserID:   req.UserID,
	}
	if req.ID != nil {
		opts.ID = *req.ID
	}

	jobID, err := h.queue.Enqueue(r.Context(), req.WorkflowType, req.Payload, opts)
	if err != nil {
		if errors.Is(err, queue.ErrEmptyWorkflowType) {
			BadRequest(w, err.Error())
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	job, err := h.jobRepo.GetByID(r.Context(), jobID)
	if HandleRepoError(w, h.logger, err, "job not found") {
		return
	}

	Created(w, JobFromDomain(*job))
}

// ListJobs возвращает список jobs с фильтрацией.
// GET /api/v1/jobs?workflow_type=...&status=...&limit=...&offset=...
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := repo.JobFilter{
		WorkflowType: r.URL.Query().Get("workflow_type"),
		Limit:        parseIntParam(r, "limit", 50),
		Offset:       parseIntParam(r, "offset", 0),
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.JobStatus(status)
		if !filter.Status.IsValid() {
			BadRequest(w, "invalid status: "+status)
			return
		}
	}

	jobs, err := h.jobRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]JobResponse, len(jobs))
	for i, job := range jobs {
		result[i] = JobFromDomain(job)
	}

	List(w, result, len(result))
}

// GetJob возвращает job по ID.
// GET /api/v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}

	job, err := h.jobRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "job not found") {
		return
	}

	Success(w, JobFromDomain(*job))
}

// GetJobState возвращает пошаговый прогресс job.
// GET /api/v1/jobs/{id}/state
func (h *Handler) GetJobState(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}

	state, err := h.stateRepo.GetByJobID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "workflow state not found") {
		return
	}

	Success(w, StateFromDomain(state))
}

// parseIntParam парсит числовой query параметр с дефолтным значением.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
