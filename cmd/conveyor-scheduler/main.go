// Conveyor Scheduler — периодическая постановка jobs по расписаниям
// и retention-очистка завершённых jobs.
//
// Несколько экземпляров могут работать одновременно: лидерство
// разыгрывается через pg advisory lock, тикает только лидер.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/queue"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/scheduler"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

const schedLockKey int64 = 727270

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting conveyor-scheduler")

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

	jobRepo := repo.NewJobRepo(pool)
	deadLetterRepo := repo.NewDeadLetterRepo(pool)
	scheduleRepo := repo.NewScheduleRepo(pool)

	// RabbitMQ (опционально): без брокера jobs подхватит polling worker'а
	var dispatcher queue.Dispatcher
	mqConn, err := mq.NewConnection(mq.URL(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, scheduled jobs rely on worker polling", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		dispatcher = mq.NewPublisher(mqConn, logger)
	}

	q := queue.New(queue.Config{
		Jobs:        jobRepo,
		DeadLetters: deadLetterRepo,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	sched := scheduler.New(scheduler.Config{
		Schedules: scheduleRepo,
		Enqueuer:  q,
		Logger:    logger,
	})

	// Retention-очистка работает на любом экземпляре: DELETE завершённых
	// jobs идемпотентен
	janitor := scheduler.NewJanitor(jobRepo, 0, 0, logger)
	go janitor.Run(ctx)

	// scheduler loop: тикает только лидер
	go func() {
		tk := time.NewTicker(1 * time.Second)
		defer tk.Stop()

		var hasLock bool
		defer func() {
			if hasLock {
				_, _ = pool.Exec(context.Background(), "select pg_advisory_unlock($1)", schedLockKey)
			}
		}()

		for {
			select {
			case <-tk.C:
				// пытаемся стать лидером (или подтвердить лидерство)
				if !hasLock {
					var ok bool
					if err := pool.QueryRow(ctx, "select pg_try_advisory_lock($1)", schedLockKey).Scan(&ok); err != nil {
						logger.Error("advisory lock error", "error", err)
						continue
					}
					hasLock = ok
				}

				if !hasLock {
					// не лидер — пропускаем тик
					continue
				}

				if err := sched.Tick(ctx); err != nil {
					logger.Error("scheduler tick failed", "error", err)
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8081"
	if v := os.Getenv("SCHED_PORT"); v != "" {
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
	logger.Info("conveyor-scheduler stopped")
}
