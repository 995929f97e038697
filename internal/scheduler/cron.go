package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Стандартный 5-полевой формат: минута час день месяц день-недели.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// parsedCron кэширует разобранные выражения: планировщик пересчитывает
// next_due_at одних и тех же schedules каждый тик.
var parsedCron sync.Map // string -> cron.Schedule

func parseCron(expr string) (cron.Schedule, error) {
	if cached, ok := parsedCron.Load(expr); ok {
		return cached.(cron.Schedule), nil
	}

	parsed, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	parsedCron.Store(expr, parsed)
	return parsed, nil
}

// scheduleLocation возвращает timezone schedule; UTC при невалидной зоне.
func scheduleLocation(sched *domain.Schedule) *time.Location {
	loc, err := time.LoadLocation(sched.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CalculateNextDue вычисляет следующее время постановки job для schedule
// после момента from. Cron-выражения трактуются в timezone schedule,
// интервалы прибавляются к from как есть. Результат всегда в UTC —
// в этом виде next_due_at хранится и сравнивается в БД.
func CalculateNextDue(sched *domain.Schedule, from time.Time) (time.Time, error) {
	local := from.In(scheduleLocation(sched))

	switch {
	case sched.IsCron():
		parsed, err := parseCron(sched.CronExpr)
		if err != nil {
			return time.Time{}, err
		}
		return parsed.Next(local).UTC(), nil

	case sched.IsInterval():
		return local.Add(time.Duration(sched.IntervalSec) * time.Second).UTC(), nil

	default:
		return time.Time{}, fmt.Errorf("schedule has neither cron_expr nor interval_sec")
	}
}

// CalculateInitialNextDue вычисляет первое время постановки для только
// что созданного schedule.
func CalculateInitialNextDue(sched *domain.Schedule) (time.Time, error) {
	return CalculateNextDue(sched, time.Now())
}

// ValidateCronExpr проверяет cron-выражение без вычисления времени.
func ValidateCronExpr(cronExpr string) error {
	_, err := parseCron(cronExpr)
	return err
}
