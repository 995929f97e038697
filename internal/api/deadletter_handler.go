package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/queue"
)

// ListDeadLetters возвращает список dead letters, свежие первыми.
// GET /api/v1/deadletters?limit=...&offset=...
func (h *Handler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 50)
	offset := parseIntParam(r, "offset", 0)

	letters, err := h.deadLetterRepo.List(r.Context(), limit, offset)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	total, err := h.deadLetterRepo.Count(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]DeadLetterResponse, len(letters))
	for i, dl := range letters {
		result[i] = DeadLetterFromDomain(dl)
	}

	List(w, result, total)
}

// GetDeadLetter возвращает dead letter по ID.
// GET /api/v1/deadletters/{id}
func (h *Handler) GetDeadLetter(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid dead letter id")
		return
	}

	dl, err := h.deadLetterRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "dead letter not found") {
		return
	}

	Success(w, DeadLetterFromDomain(*dl))
}

// RequeueDeadLetter вручную перезапускает dead letter как новый job.
// POST /api/v1/deadletters/{id}/requeue
func (h *Handler) RequeueDeadLetter(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid dead letter id")
		return
	}

	newJobID, err := h.queue.RequeueDeadLetter(r.Context(), id)
	if err != nil {
		if errors.Is(err, queue.ErrAlreadyRequeued) {
			Conflict(w, "dead letter already requeued")
			return
		}
		if HandleRepoError(w, h.logger, err, "dead letter not found") {
			return
		}
		return
	}

	Created(w, RequeueResponse{DeadLetterID: id, NewJobID: newJobID})
}
