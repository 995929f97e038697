package queue

import (
	"context"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// defaultSampleInterval — период сэмплирования глубины очереди.
const defaultSampleInterval = 15 * time.Second

// DepthSampler периодически сэмплирует глубину очереди для метрик:
// waiting и active из store, delayed из брокера.
type DepthSampler struct {
	jobs     JobStore
	conn     *mq.Connection
	interval time.Duration
	logger   *slog.Logger
}

// NewDepthSampler создаёт DepthSampler. conn может быть nil —
// тогда delayed не сэмплируется.
func NewDepthSampler(jobs JobStore, conn *mq.Connection, interval time.Duration, logger *slog.Logger) *DepthSampler {
	if interval <= 0 {
		interval = defaultSampleInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DepthSampler{jobs: jobs, conn: conn, interval: interval, logger: logger}
}

// Run сэмплирует до отмены контекста.
func (s *DepthSampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sample(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample(ctx)
		}
	}
}

// sample снимает один срез глубины.
func (s *DepthSampler) sample(ctx context.Context) {
	counts, err := s.jobs.CountByStatus(ctx)
	if err != nil {
		s.logger.Warn("failed to sample queue depth", "error", err)
		return
	}

	telemetry.QueueDepth.WithLabelValues("waiting").Set(float64(counts[domain.JobStatusPending]))
	telemetry.QueueDepth.WithLabelValues("active").Set(float64(counts[domain.JobStatusRunning]))

	if delayed, ok := s.sampleDelayed(ctx); ok {
		telemetry.QueueDepth.WithLabelValues("delayed").Set(float64(delayed))
	}
}

// sampleDelayed читает количество сообщений в jobs.delayed у брокера.
func (s *DepthSampler) sampleDelayed(ctx context.Context) (int, bool) {
	if s.conn == nil {
		return 0, false
	}

	var count int
	err := s.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		q, err := ch.QueueDeclarePassive(
			string(mq.QueueJobsDelayed),
			true, false, false, false, nil,
		)
		if err != nil {
			return err
		}
		count = q.Messages
		return nil
	})
	if err != nil {
		s.logger.Debug("failed to inspect delayed queue", "error", err)
		return 0, false
	}
	return count, true
}
