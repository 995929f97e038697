package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Conveyor/internal/domain"
)

// StateRepo — репозиторий для workflow states.
//
// State хранится одной JSONB-строкой на job: оркестратор перезаписывает
// её целиком после каждого шага, читатели видят консистентный снапшот.
type StateRepo struct {
	pool *pgxpool.Pool
}

// NewStateRepo создаёт новый StateRepo.
func NewStateRepo(pool *pgxpool.Pool) *StateRepo {
	return &StateRepo{pool: pool}
}

// Save сохраняет state (insert или полная перезапись).
func (r *StateRepo) Save(ctx context.Context, state *domain.WorkflowState) error {
	resultsJSON, err := json.Marshal(state.StepResults)
	if err != nil {
		return fmt.Errorf("marshal step results: %w", err)
	}

	query := `
		INSERT INTO workflow_states (job_id, status, current_step_index, total_steps,
		                             step_results, started_at, completed_at, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (job_id) DO UPDATE
		SET status = EXCLUDED.status,
		    current_step_index = EXCLUDED.current_step_index,
		    step_results = EXCLUDED.step_results,
		    completed_at = EXCLUDED.completed_at,
		    error = EXCLUDED.error
	`
	_, err = r.pool.Exec(ctx, query,
		state.JobID,
		state.Status,
		state.CurrentStepIndex,
		state.TotalSteps,
		resultsJSON,
		state.StartedAt,
		state.CompletedAt,
		nullString(state.Error),
	)
	if err != nil {
		return fmt.Errorf("save workflow state: %w", err)
	}
	return nil
}

// GetByJobID возвращает state по ID job.
func (r *StateRepo) GetByJobID(ctx context.Context, jobID uuid.UUID) (*domain.WorkflowState, error) {
	query := `
		SELECT job_id, status, current_step_index, total_steps,
		       step_results, started_at, completed_at, error
		FROM workflow_states
		WHERE job_id = $1
	`

	var state domain.WorkflowState
	var resultsJSON []byte
	var stateError *string

	err := r.pool.QueryRow(ctx, query, jobID).Scan(
		&state.JobID,
		&state.Status,
		&state.CurrentStepIndex,
		&state.TotalSteps,
		&resultsJSON,
		&state.StartedAt,
		&state.CompletedAt,
		&stateError,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan workflow state: %w", err)
	}

	if resultsJSON != nil {
		if err := json.Unmarshal(resultsJSON, &state.StepResults); err != nil {
			return nil, fmt.Errorf("unmarshal step results: %w", err)
		}
	}
	if stateError != nil {
		state.Error = *stateError
	}

	return &state, nil
}

// DeleteByJobID удаляет state job'а (вместе с retention-очисткой jobs).
func (r *StateRepo) DeleteByJobID(ctx context.Context, jobID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM workflow_states WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("delete workflow state: %w", err)
	}
	return nil
}
