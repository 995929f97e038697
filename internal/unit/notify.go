package unit

import (
	"context"
	"fmt"

	"github.com/shaiso/Conveyor/internal/domain"
)

// UnitNotify — имя unit'а уведомлений.
const UnitNotify = "notify"

// NotifyUnit отправляет уведомление о результатах workflow
// через notification service.
//
// Input:
//
//	{
//	    "channel": "ops",
//	    "subject": "Document processed"
//	}
//
// Data: {"channel": "...", "delivered": true}
type NotifyUnit struct {
	notifier *NotifyClient
}

// NewNotifyUnit создаёт NotifyUnit.
func NewNotifyUnit(notifier *NotifyClient) *NotifyUnit {
	return &NotifyUnit{notifier: notifier}
}

// Name возвращает имя unit'а.
func (u *NotifyUnit) Name() string {
	return UnitNotify
}

// ValidateInput проверяет канал доставки.
func (u *NotifyUnit) ValidateInput(input map[string]any) ValidationResult {
	if GetString(input, "channel") == "" {
		return Invalid("channel is required")
	}
	return Valid()
}

// ExecuteTask отправляет уведомление со сводкой по шагам.
func (u *NotifyUnit) ExecuteTask(ctx context.Context, input map[string]any) (map[string]any, error) {
	channel := GetString(input, "channel")
	subject := GetString(input, "subject")
	if subject == "" {
		subject = fmt.Sprintf("workflow %s finished", GetString(input, InputKeyJobID))
	}

	message := fmt.Sprintf("job %s: %d steps completed",
		GetString(input, InputKeyJobID),
		len(PreviousSteps(input)),
	)

	if err := u.notifier.Send(ctx, channel, subject, message); err != nil {
		return nil, fmt.Errorf("send notification: %w", err)
	}

	return map[string]any{
		"channel":   channel,
		"delivered": true,
	}, nil
}

// ProduceOutput собирает TaskOutput.
func (u *NotifyUnit) ProduceOutput(raw map[string]any, input map[string]any) *domain.TaskOutput {
	return &domain.TaskOutput{
		Success: true,
		Data:    raw,
	}
}
