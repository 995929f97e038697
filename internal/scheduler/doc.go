// Package scheduler реализует периодическую постановку jobs по
// расписаниям и retention-очистку завершённых jobs.
//
// Scheduler на каждом тике находит schedules с истекшим next_due_at
// и ставит job в очередь. ID job'а детерминирован из schedule и
// времени срабатывания: повторный тик (или конкурирующий экземпляр
// планировщика) не создаст дубликат.
//
// Структура:
//   - scheduler.go — основная логика (Tick, processSchedule)
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//   - janitor.go   — удаление завершённых jobs старше retention
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Schedules: scheduleRepo,
//	    Enqueuer:  q,
//	    Logger:    logger,
//	})
//	go sched.Run(ctx, time.Second)
package scheduler
