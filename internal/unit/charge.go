package unit

import (
	"context"
	"fmt"

	"github.com/shaiso/Conveyor/internal/domain"
)

// UnitPaymentCapture — имя unit'а списания оплаты.
const UnitPaymentCapture = "payment-capture"

// PaymentCaptureUnit списывает оплату за обработку через payment
// processor.
//
// Ключ идемпотентности строится из job_id и step, поэтому retry шага
// не приводит к двойному списанию.
//
// Input:
//
//	{
//	    "amount_cents": 500,
//	    "currency": "USD"      // по умолчанию USD
//	}
//
// Data: {"charge_id": "...", "status": "...", "amount_cents": N}
type PaymentCaptureUnit struct {
	payments *PaymentsClient
}

// NewPaymentCaptureUnit создаёт PaymentCaptureUnit.
func NewPaymentCaptureUnit(payments *PaymentsClient) *PaymentCaptureUnit {
	return &PaymentCaptureUnit{payments: payments}
}

// Name возвращает имя unit'а.
func (u *PaymentCaptureUnit) Name() string {
	return UnitPaymentCapture
}

// ValidateInput проверяет сумму и job_id для ключа идемпотентности.
func (u *PaymentCaptureUnit) ValidateInput(input map[string]any) ValidationResult {
	if GetString(input, InputKeyJobID) == "" {
		return Invalid("job_id is required")
	}
	if GetInt(input, "amount_cents") <= 0 {
		return Invalid("amount_cents must be positive")
	}
	return Valid()
}

// ExecuteTask выполняет capture.
func (u *PaymentCaptureUnit) ExecuteTask(ctx context.Context, input map[string]any) (map[string]any, error) {
	amount := GetInt(input, "amount_cents")
	currency := GetString(input, "currency")
	if currency == "" {
		currency = "USD"
	}

	key := fmt.Sprintf("job:%s:capture", GetString(input, InputKeyJobID))

	charge, err := u.payments.Charge(ctx, key, currency, amount)
	if err != nil {
		return nil, fmt.Errorf("capture payment: %w", err)
	}
	if charge.Status != "captured" {
		return nil, fmt.Errorf("charge %s not captured: %s", charge.ChargeID, charge.Status)
	}

	return map[string]any{
		"charge_id":    charge.ChargeID,
		"status":       charge.Status,
		"amount_cents": amount,
	}, nil
}

// ProduceOutput собирает TaskOutput.
func (u *PaymentCaptureUnit) ProduceOutput(raw map[string]any, input map[string]any) *domain.TaskOutput {
	return &domain.TaskOutput{
		Success: true,
		Data:    raw,
	}
}
