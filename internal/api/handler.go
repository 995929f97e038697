package api

import (
	"log/slog"

	"github.com/shaiso/Conveyor/internal/breaker"
	"github.com/shaiso/Conveyor/internal/plan"
	"github.com/shaiso/Conveyor/internal/queue"
	"github.com/shaiso/Conveyor/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	jobRepo        *repo.JobRepo
	stateRepo      *repo.StateRepo
	deadLetterRepo *repo.DeadLetterRepo
	scheduleRepo   *repo.ScheduleRepo
	queue          *queue.Queue
	plans          *plan.Registry
	breakers       *breaker.Set
	logger         *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	JobRepo        *repo.JobRepo
	StateRepo      *repo.StateRepo
	DeadLetterRepo *repo.DeadLetterRepo
	ScheduleRepo   *repo.ScheduleRepo
	Queue          *queue.Queue
	Plans          *plan.Registry
	Breakers       *breaker.Set
	Logger         *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		jobRepo:        cfg.JobRepo,
		stateRepo:      cfg.StateRepo,
		deadLetterRepo: cfg.DeadLetterRepo,
		scheduleRepo:   cfg.ScheduleRepo,
		queue:          cfg.Queue,
		plans:          cfg.Plans,
		breakers:       cfg.Breakers,
		logger:         logger,
	}
}
