package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Conveyor/internal/domain"
)

// JobRepo — репозиторий для работы с jobs.
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo создаёт новый JobRepo.
func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

// Create создаёт новый job.
// Возвращает ErrAlreadyExists при конфликте ID (идемпотентная постановка).
func (r *JobRepo) Create(ctx context.Context, job *domain.Job) error {
	payloadJSON, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO jobs (id, workflow_type, org_id, user_id, payload, status, progress, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.WorkflowType,
		nullString(job.OrgID),
		nullString(job.UserID),
		payloadJSON,
		job.Status,
		job.Progress,
		job.Priority,
		job.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: job %s", ErrAlreadyExists, job.ID)
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID возвращает job по ID.
func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		SELECT id, workflow_type, org_id, user_id, payload, status, progress,
		       output, error, priority, created_at, started_at, completed_at
		FROM jobs
		WHERE id = $1
	`
	return scanJob(r.pool.QueryRow(ctx, query, id))
}

// List возвращает список jobs с фильтрацией.
func (r *JobRepo) List(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query := `
		SELECT id, workflow_type, org_id, user_id, payload, status, progress,
		       output, error, priority, created_at, started_at, completed_at
		FROM jobs
		WHERE ($1::text IS NULL OR workflow_type = $1)
		  AND ($2::text IS NULL OR status = $2::job_status)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.WorkflowType),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// Update обновляет изменяемые поля job.
func (r *JobRepo) Update(ctx context.Context, job *domain.Job) error {
	outputJSON, err := json.Marshal(job.Output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	query := `
		UPDATE jobs
		SET status = $2, progress = $3, output = $4, error = $5,
		    started_at = $6, completed_at = $7
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		job.Progress,
		outputJSON,
		nullString(job.Error),
		job.StartedAt,
		job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPending возвращает jobs в статусе PENDING, старые первыми.
// Используется polling-фолбэком worker'а, когда брокер недоступен.
func (r *JobRepo) ListPending(ctx context.Context, limit int) ([]domain.Job, error) {
	query := `
		SELECT id, workflow_type, org_id, user_id, payload, status, progress,
		       output, error, priority, created_at, started_at, completed_at
		FROM jobs
		WHERE status = 'PENDING'
		ORDER BY priority DESC, created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// CountByStatus возвращает количество jobs в каждом статусе.
// Используется сэмплером глубины очереди.
func (r *JobRepo) CountByStatus(ctx context.Context) (map[domain.JobStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM jobs GROUP BY status`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.JobStatus]int)
	for rows.Next() {
		var status domain.JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// DeleteFinishedBefore удаляет завершённые jobs старше cutoff.
// Возвращает количество удалённых записей.
func (r *JobRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM jobs
		WHERE status IN ('COMPLETED', 'FAILED') AND completed_at < $1
	`
	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete finished jobs: %w", err)
	}
	return result.RowsAffected(), nil
}

// --- Helpers ---

// JobFilter — параметры фильтрации jobs.
type JobFilter struct {
	WorkflowType string
	Status       domain.JobStatus
	Limit        int
	Offset       int
}

// scanJob сканирует одну строку в Job.
func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var payloadJSON, outputJSON []byte
	var orgID, userID, jobError *string

	err := row.Scan(
		&job.ID,
		&job.WorkflowType,
		&orgID,
		&userID,
		&payloadJSON,
		&job.Status,
		&job.Progress,
		&outputJSON,
		&jobError,
		&job.Priority,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &job.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if outputJSON != nil {
		if err := json.Unmarshal(outputJSON, &job.Output); err != nil {
			return nil, fmt.Errorf("unmarshal output: %w", err)
		}
	}

	if orgID != nil {
		job.OrgID = *orgID
	}
	if userID != nil {
		job.UserID = *userID
	}
	if jobError != nil {
		job.Error = *jobError
	}

	return &job, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
