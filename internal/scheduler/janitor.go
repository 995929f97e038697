package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Default retention configuration.
const (
	defaultRetention     = 30 * 24 * time.Hour
	defaultPruneInterval = time.Hour
)

// JobPruner — удаление завершённых jobs. Реализуется repo.JobRepo.
// Связанные workflow states удаляются каскадом на уровне БД.
type JobPruner interface {
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Janitor периодически удаляет завершённые jobs старше retention.
type Janitor struct {
	jobs      JobPruner
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// NewJanitor создаёт Janitor. Нулевые retention и interval заменяются
// значениями по умолчанию (30 дней, раз в час).
func NewJanitor(jobs JobPruner, retention, interval time.Duration, logger *slog.Logger) *Janitor {
	if retention <= 0 {
		retention = defaultRetention
	}
	if interval <= 0 {
		interval = defaultPruneInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{jobs: jobs, retention: retention, interval: interval, logger: logger}
}

// Run чистит до отмены контекста.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.prune(ctx)
		}
	}
}

// prune выполняет один проход очистки.
func (j *Janitor) prune(ctx context.Context) {
	cutoff := time.Now().Add(-j.retention)

	deleted, err := j.jobs.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("failed to prune finished jobs", "error", err)
		return
	}
	if deleted > 0 {
		j.logger.Info("pruned finished jobs", "deleted", deleted, "cutoff", cutoff)
	}
}
