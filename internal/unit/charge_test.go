package unit

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shaiso/Conveyor/internal/retry"
)

func paymentsServer(t *testing.T, handler http.HandlerFunc) *PaymentsClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &PaymentsClient{baseURL: srv.URL, client: srv.Client()}
}

func TestPaymentCaptureUnit(t *testing.T) {
	var gotKey string
	payments := paymentsServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		json.NewEncoder(w).Encode(ChargeResult{ChargeID: "ch-1", Status: "captured"})
	})

	u := NewPaymentCaptureUnit(payments)
	input := map[string]any{
		InputKeyJobID:  "7c1c8a1e-0000-0000-0000-000000000001",
		"amount_cents": 500,
	}

	if v := u.ValidateInput(input); !v.Valid {
		t.Fatalf("unexpected validation failure: %s", v.Error)
	}

	raw, err := u.ExecuteTask(t.Context(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if raw["charge_id"] != "ch-1" {
		t.Errorf("expected charge_id ch-1, got %v", raw["charge_id"])
	}
	if gotKey != "job:7c1c8a1e-0000-0000-0000-000000000001:capture" {
		t.Errorf("unexpected idempotency key %q", gotKey)
	}
}

func TestPaymentCaptureUnitRejectsInput(t *testing.T) {
	u := NewPaymentCaptureUnit(nil)

	if v := u.ValidateInput(map[string]any{"amount_cents": 500}); v.Valid {
		t.Error("expected rejection without job_id")
	}
	if v := u.ValidateInput(map[string]any{InputKeyJobID: "x"}); v.Valid {
		t.Error("expected rejection without positive amount")
	}
}

func TestPaymentCaptureUnitDeclined(t *testing.T) {
	payments := paymentsServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ChargeResult{ChargeID: "ch-2", Status: "declined"})
	})

	u := NewPaymentCaptureUnit(payments)
	_, err := u.ExecuteTask(t.Context(), map[string]any{
		InputKeyJobID:  "job-1",
		"amount_cents": 100,
	})
	if err == nil {
		t.Fatal("expected error for declined charge")
	}
}

func TestPaymentsClientRateLimited(t *testing.T) {
	payments := paymentsServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := payments.Charge(t.Context(), "key", "USD", 100)

	var rle *retry.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rle.RetryAfter != 3*time.Second {
		t.Errorf("expected retry-after 3s, got %s", rle.RetryAfter)
	}
}
