// Conveyor Worker — потребляющая сторона очереди.
//
// Worker:
//   - Получает jobs из RabbitMQ (плюс polling-фолбэк по БД)
//   - Выполняет workflow через оркестратор, шаг за шагом
//   - Повторяет проваленные доставки с экспоненциальной задержкой
//   - Эскалирует исчерпавшие попытки jobs в dead letter store
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Conveyor/internal/breaker"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/orchestrator"
	"github.com/shaiso/Conveyor/internal/plan"
	"github.com/shaiso/Conveyor/internal/queue"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/telemetry"
	"github.com/shaiso/Conveyor/internal/unit"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting conveyor-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	jobRepo := repo.NewJobRepo(pool)
	stateRepo := repo.NewStateRepo(pool)
	deadLetterRepo := repo.NewDeadLetterRepo(pool)

	// RabbitMQ
	var dispatcher queue.Dispatcher
	mqConn, err := mq.NewConnection(mq.URL(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		dispatcher = mq.NewPublisher(mqConn, logger)
	}

	// Breakers, клиенты внешних зависимостей и реестры
	breakers := breaker.DefaultSet(breaker.Config{Logger: logger})
	clients := unit.NewClients(unit.ClientsConfig{
		InferenceURL: os.Getenv("INFERENCE_URL"),
		StorageURL:   os.Getenv("STORAGE_URL"),
		PaymentsURL:  os.Getenv("PAYMENTS_URL"),
		NotifyURL:    os.Getenv("NOTIFY_URL"),
	}, breakers)
	units := unit.DefaultRegistry(clients)
	plans := plan.NewRegistry(units)
	plan.RegisterBuiltin(plans)

	// Оркестратор — исполнитель одного job
	orch := orchestrator.New(orchestrator.Config{
		Jobs:   jobRepo,
		States: stateRepo,
		Plans:  plans,
		Units:  units,
		Logger: logger,
	})

	// Worker — пул доставок поверх оркестратора
	worker := queue.NewWorker(queue.WorkerConfig{
		Jobs:        jobRepo,
		DeadLetters: deadLetterRepo,
		Executor:    orch,
		Dispatcher:  dispatcher,
		Conn:        mqConn,
		Concurrency: envInt("WORKER_CONCURRENCY", 0),
		MaxAttempts: envInt("QUEUE_MAX_ATTEMPTS", 0),
		BackoffBase: time.Duration(envInt("QUEUE_BACKOFF_MS", 0)) * time.Millisecond,
		Logger:      logger,
	})

	if err := worker.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// Метрика глубины очереди
	sampler := queue.NewDepthSampler(jobRepo, mqConn, 0, logger)
	go sampler.Run(ctx)

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("WORKER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	worker.Stop()
	logger.Info("conveyor-worker stopped")
}

// envInt читает числовую переменную окружения; 0 — не задана.
func envInt(name string, defaultVal int) int {
	v := os.Getenv(name)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
