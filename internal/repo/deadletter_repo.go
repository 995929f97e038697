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

// DeadLetterRepo — репозиторий для dead letters.
type DeadLetterRepo struct {
	pool *pgxpool.Pool
}

// NewDeadLetterRepo создаёт новый DeadLetterRepo.
func NewDeadLetterRepo(pool *pgxpool.Pool) *DeadLetterRepo {
	return &DeadLetterRepo{pool: pool}
}

// Create сохраняет dead letter.
func (r *DeadLetterRepo) Create(ctx context.Context, dl *domain.DeadLetter) error {
	payloadJSON, err := json.Marshal(dl.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO dead_letters (id, job_id, workflow_type, payload, reason, attempts_made, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.pool.Exec(ctx, query,
		dl.ID,
		dl.JobID,
		dl.WorkflowType,
		payloadJSON,
		dl.Reason,
		dl.AttemptsMade,
		dl.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	return nil
}

// GetByID возвращает dead letter по ID.
func (r *DeadLetterRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeadLetter, error) {
	query := `
		SELECT id, job_id, workflow_type, payload, reason, attempts_made,
		       requeued_at, requeued_job_id, created_at
		FROM dead_letters
		WHERE id = $1
	`
	return scanDeadLetter(r.pool.QueryRow(ctx, query, id))
}

// List возвращает dead letters, свежие первыми.
func (r *DeadLetterRepo) List(ctx context.Context, limit, offset int) ([]domain.DeadLetter, error) {
	query := `
		SELECT id, job_id, workflow_type, payload, reason, attempts_made,
		       requeued_at, requeued_job_id, created_at
		FROM dead_letters
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var letters []domain.DeadLetter
	for rows.Next() {
		dl, err := scanDeadLetter(rows)
		if err != nil {
			return nil, err
		}
		letters = append(letters, *dl)
	}
	return letters, rows.Err()
}

// MarkRequeued записывает факт ручного requeue.
func (r *DeadLetterRepo) MarkRequeued(ctx context.Context, dl *domain.DeadLetter) error {
	query := `
		UPDATE dead_letters
		SET requeued_at = $2, requeued_job_id = $3
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, dl.ID, dl.RequeuedAt, dl.RequeuedJobID)
	if err != nil {
		return fmt.Errorf("mark dead letter requeued: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Count возвращает общее количество dead letters.
func (r *DeadLetterRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letters`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count dead letters: %w", err)
	}
	return count, nil
}

// scanDeadLetter сканирует одну строку в DeadLetter.
func scanDeadLetter(row pgx.Row) (*domain.DeadLetter, error) {
	var dl domain.DeadLetter
	var payloadJSON []byte

	err := row.Scan(
		&dl.ID,
		&dl.JobID,
		&dl.WorkflowType,
		&payloadJSON,
		&dl.Reason,
		&dl.AttemptsMade,
		&dl.RequeuedAt,
		&dl.RequeuedJobID,
		&dl.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan dead letter: %w", err)
	}

	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &dl.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}

	return &dl, nil
}
