package unit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shaiso/Conveyor/internal/breaker"
	"github.com/shaiso/Conveyor/internal/retry"
)

// Значения по умолчанию для HTTP клиентов.
const (
	defaultClientTimeout = 60 * time.Second
	maxResponseBody      = 10 * 1024 * 1024 // 10 MB
)

// Clients — внешние зависимости, доступные unit'ам.
//
// Каждый клиент ходит в свою зависимость через собственный circuit
// breaker. Конструируется один раз при старте и внедряется в реестр.
type Clients struct {
	Inference *InferenceClient
	Storage   *StorageClient
	Payments  *PaymentsClient
	Notifier  *NotifyClient
}

// ClientsConfig — адреса внешних сервисов.
type ClientsConfig struct {
	// InferenceURL — базовый URL сервиса model inference.
	InferenceURL string

	// StorageURL — базовый URL object storage.
	StorageURL string

	// PaymentsURL — базовый URL payment processor.
	PaymentsURL string

	// NotifyURL — базовый URL notification service.
	NotifyURL string

	// HTTPClient — общий HTTP клиент (опционально).
	HTTPClient *http.Client
}

// NewClients создаёт клиентов с breaker'ами из набора.
func NewClients(cfg ClientsConfig, breakers *breaker.Set) *Clients {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultClientTimeout}
	}

	return &Clients{
		Inference: &InferenceClient{
			baseURL: cfg.InferenceURL,
			client:  httpClient,
			breaker: breakers.Get(breaker.DepModelInference),
		},
		Storage: &StorageClient{
			baseURL: cfg.StorageURL,
			client:  httpClient,
			breaker: breakers.Get(breaker.DepObjectStorage),
		},
		Payments: &PaymentsClient{
			baseURL: cfg.PaymentsURL,
			client:  httpClient,
			breaker: breakers.Get(breaker.DepPayments),
		},
		Notifier: &NotifyClient{
			baseURL: cfg.NotifyURL,
			client:  httpClient,
			breaker: breakers.Get(breaker.DepNotifications),
		},
	}
}

// --- Inference ---

// InferenceResult — ответ сервиса model inference.
type InferenceResult struct {
	// Data — результат задачи модели.
	Data map[string]any `json:"data"`

	// Confidence — уверенность модели (0–1).
	Confidence float64 `json:"confidence"`
}

// InferenceClient — клиент сервиса model inference.
//
// HTTP 429 транслируется в retry.RateLimitError с задержкой из
// заголовка Retry-After, чтобы retry executor подождал ровно столько,
// сколько попросил сервер.
type InferenceClient struct {
	baseURL string
	client  *http.Client
	breaker *breaker.Breaker
}

// Complete выполняет задачу модели (extract, classify, summarize, ...).
func (c *InferenceClient) Complete(ctx context.Context, task string, input map[string]any) (*InferenceResult, error) {
	reqBody, err := json.Marshal(map[string]any{
		"task":  task,
		"input": input,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal inference request: %w", err)
	}

	var result InferenceResult
	call := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/completions", bytes.NewReader(reqBody))
		if err != nil {
			return fmt.Errorf("build inference request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("inference request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return &retry.RateLimitError{
				RetryAfter: parseRetryAfter(resp),
				Err:        fmt.Errorf("inference rate limited"),
			}
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("inference returned %d", resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return fmt.Errorf("read inference response: %w", err)
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("unmarshal inference response: %w", err)
		}
		return nil
	}

	if err := c.execute(ctx, call); err != nil {
		return nil, err
	}
	return &result, nil
}

// execute прогоняет вызов через breaker, если он сконфигурирован.
func (c *InferenceClient) execute(ctx context.Context, call func(ctx context.Context) error) error {
	if c.breaker == nil {
		return call(ctx)
	}
	return c.breaker.Execute(ctx, call)
}

// parseRetryAfter читает Retry-After (секунды) из ответа.
func parseRetryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			return time.Duration(sec) * time.Second
		}
	}
	return 0
}

// --- Object storage ---

// StorageClient — клиент object storage.
type StorageClient struct {
	baseURL string
	client  *http.Client
	breaker *breaker.Breaker
}

// PutObject сохраняет объект и возвращает ссылку на него.
func (c *StorageClient) PutObject(ctx context.Context, key string, body map[string]any) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal object: %w", err)
	}

	ref := c.baseURL + "/objects/" + url.PathEscape(key)
	call := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, ref, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("build storage request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("storage request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("storage returned %d", resp.StatusCode)
		}
		return nil
	}

	if c.breaker != nil {
		err = c.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", err
	}
	return ref, nil
}

// --- Payments ---

// ChargeResult — ответ payment processor'а на capture.
type ChargeResult struct {
	// ChargeID — идентификатор списания у процессора.
	ChargeID string `json:"charge_id"`

	// Status — статус списания (captured, declined, ...).
	Status string `json:"status"`
}

// PaymentsClient — клиент payment processor'а.
//
// Как и inference, процессор троттлит: HTTP 429 транслируется в
// retry.RateLimitError с задержкой из Retry-After.
type PaymentsClient struct {
	baseURL string
	client  *http.Client
	breaker *breaker.Breaker
}

// Charge списывает amountCents в валюте currency.
//
// idempotencyKey дедуплицирует повторы на стороне процессора: retry
// той же попытки не приводит к двойному списанию.
func (c *PaymentsClient) Charge(ctx context.Context, idempotencyKey, currency string, amountCents int) (*ChargeResult, error) {
	reqBody, err := json.Marshal(map[string]any{
		"amount_cents": amountCents,
		"currency":     currency,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal charge request: %w", err)
	}

	var result ChargeResult
	call := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/charges", bytes.NewReader(reqBody))
		if err != nil {
			return fmt.Errorf("build charge request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", idempotencyKey)

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("charge request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return &retry.RateLimitError{
				RetryAfter: parseRetryAfter(resp),
				Err:        fmt.Errorf("payments rate limited"),
			}
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("payments returned %d", resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return fmt.Errorf("read charge response: %w", err)
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("unmarshal charge response: %w", err)
		}
		return nil
	}

	if c.breaker != nil {
		err = c.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// --- Notifications ---

// NotifyClient — клиент notification service.
type NotifyClient struct {
	baseURL string
	client  *http.Client
	breaker *breaker.Breaker
}

// Send отправляет уведомление в канал.
func (c *NotifyClient) Send(ctx context.Context, channel, subject, message string) error {
	body, err := json.Marshal(map[string]string{
		"channel": channel,
		"subject": subject,
		"message": message,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	call := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/notifications", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build notify request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("notify request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("notify returned %d", resp.StatusCode)
		}
		return nil
	}

	if c.breaker != nil {
		return c.breaker.Execute(ctx, call)
	}
	return call(ctx)
}
