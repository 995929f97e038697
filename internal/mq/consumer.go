package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// JobHandler обрабатывает одну доставку job из jobs.ready.
//
// attempt — номер доставки, начиная с 1. Ошибка означает
// инфраструктурный сбой обработки: сообщение вернётся в очередь
// немедленно; бюджет доставок ведёт сам обработчик через jobs.delayed.
type JobHandler func(ctx context.Context, jobID uuid.UUID, attempt int) error

// Consumer потребляет доставки jobs из jobs.ready.
//
// Сообщение подтверждается только после возврата обработчика:
// упавший процесс не теряет доставку, брокер отдаст её заново.
// Некорректные сообщения (не job.ready, битый payload) уходят в DLQ
// без повтора.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	handler  JobHandler
	prefetch int

	cancel context.CancelFunc
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	// Handler — обработчик доставок.
	Handler JobHandler

	// Prefetch ограничивает количество неподтверждённых доставок
	// на consumer'а; вместе с пулом worker'а даёт предел
	// одновременно выполняемых jobs.
	Prefetch int
}

// NewConsumer создаёт Consumer для jobs.ready.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Consumer{
		conn:     conn,
		logger:   logger,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start потребляет доставки до отмены контекста, переживая
// реконнекты брокера.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	for {
		deliveries, err := c.open()
		if err != nil {
			c.logger.Error("failed to open job consumer", "error", err)
			if err := c.awaitReconnect(ctx); err != nil {
				return err
			}
			continue
		}

		c.logger.Info("job consumer started", "queue", QueueJobsReady)

		if err := c.drain(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("job deliveries interrupted, waiting for broker", "error", err)
			if err := c.awaitReconnect(ctx); err != nil {
				return err
			}
		}
	}
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// open настраивает QoS и подписку на jobs.ready.
func (c *Consumer) open() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, fmt.Errorf("no channel available")
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		string(QueueJobsReady),
		"",    // consumer tag (auto-generated)
		false, // auto-ack: подтверждаем только после обработки
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", QueueJobsReady, err)
	}
	return deliveries, nil
}

// awaitReconnect ждёт восстановления соединения или отмены контекста.
func (c *Consumer) awaitReconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.conn.ReconnectNotify():
		c.logger.Info("broker reconnected, resuming job consumer")
		return nil
	}
}

// drain обрабатывает доставки из канала до его закрытия.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			c.handleDelivery(ctx, raw)
		}
	}
}

// handleDelivery разбирает одно сообщение jobs.ready и передаёт его
// обработчику.
func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	jobID, attempt, err := decodeJobReady(raw.Body)
	if err != nil {
		c.logger.Error("dropping malformed job delivery",
			"error", err,
			"body", string(raw.Body),
		)
		// Повтор не поможет — сразу в DLQ.
		raw.Nack(false, false)
		return
	}

	c.logger.Debug("job delivery received", "job_id", jobID, "attempt", attempt)

	if err := c.handler(ctx, jobID, attempt); err != nil {
		c.logger.Error("job delivery handler failed",
			"job_id", jobID,
			"attempt", attempt,
			"error", err,
		)
		raw.Nack(false, true)
		return
	}

	raw.Ack(false)
}

// decodeJobReady извлекает job ID и номер доставки из сообщения.
func decodeJobReady(body []byte) (uuid.UUID, int, error) {
	var msg struct {
		Type    MessageType     `json:"type"`
		Payload JobReadyPayload `json:"payload"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return uuid.Nil, 0, fmt.Errorf("unmarshal message: %w", err)
	}
	if msg.Type != MessageTypeJobReady {
		return uuid.Nil, 0, fmt.Errorf("unexpected message type %q", msg.Type)
	}
	if msg.Payload.JobID == uuid.Nil {
		return uuid.Nil, 0, fmt.Errorf("message without job id")
	}

	attempt := msg.Payload.Attempt
	if attempt < 1 {
		attempt = 1
	}
	return msg.Payload.JobID, attempt, nil
}
