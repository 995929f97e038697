// Conveyor API — HTTP-сервер для постановки jobs и наблюдения.
//
// API:
//   - Ставит jobs в durable очередь
//   - Отдаёт статус и пошаговый прогресс jobs
//   - Управляет dead letters и schedules
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Conveyor/internal/api"
	"github.com/shaiso/Conveyor/internal/breaker"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/plan"
	"github.com/shaiso/Conveyor/internal/queue"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/telemetry"
	"github.com/shaiso/Conveyor/internal/unit"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting conveyor-api")

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
	scheduleRepo := repo.NewScheduleRepo(pool)

	// RabbitMQ: недоступный брокер не мешает API — постановка jobs
	// обслуживается polling-фолбэком worker'а
	var dispatcher queue.Dispatcher
	mqConn, err := mq.NewConnection(mq.URL(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, enqueue relies on worker polling", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		dispatcher = mq.NewPublisher(mqConn, logger)
	}

	// Breakers и реестры нужны API для валидации workflow type
	// и отображения планов/состояния breaker'ов
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

	q := queue.New(queue.Config{
		Jobs:        jobRepo,
		DeadLetters: deadLetterRepo,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	handler := api.NewHandler(api.Config{
		JobRepo:        jobRepo,
		StateRepo:      stateRepo,
		DeadLetterRepo: deadLetterRepo,
		ScheduleRepo:   scheduleRepo,
		Queue:          q,
		Plans:          plans,
		Breakers:       breakers,
		Logger:         logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
