package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeJobReady MessageType = "job.ready"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// JobReadyPayload — payload для сообщения о job, готовом к выполнению.
//
// Attempt — номер доставки, начиная с 1. Переносится из доставки в
// доставку, чтобы worker мог отличить первую попытку от повтора.
type JobReadyPayload struct {
	JobID   uuid.UUID `json:"job_id"`
	Attempt int       `json:"attempt"`
}

// PublishJobReady публикует job в очередь готовых с приоритетом.
// Потребитель: Worker.
func (p *Publisher) PublishJobReady(ctx context.Context, jobID uuid.UUID, priority int) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeJobReady,
		Payload:   JobReadyPayload{JobID: jobID, Attempt: 1},
		Timestamp: time.Now(),
	}

	return p.publish(ctx, ExchangeJobs, RoutingKeyReady, msg, publishOpts{
		priority: clampPriority(priority),
	})
}

// PublishJobDelayed публикует повторную доставку job с задержкой.
//
// Сообщение попадает в jobs.delayed с per-message TTL; по истечении
// брокер возвращает его в jobs.ready. delay — нижняя граница: брокер
// выпускает сообщения в порядке очереди, и сообщение с коротким TTL
// позади длинного дождётся его истечения (см. declareQueues).
func (p *Publisher) PublishJobDelayed(ctx context.Context, jobID uuid.UUID, attempt int, delay time.Duration) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeJobReady,
		Payload:   JobReadyPayload{JobID: jobID, Attempt: attempt},
		Timestamp: time.Now(),
	}

	return p.publish(ctx, ExchangeJobs, RoutingKeyDelayed, msg, publishOpts{
		expiration: strconv.FormatInt(delay.Milliseconds(), 10),
	})
}

// publishOpts — параметры доставки одного сообщения.
type publishOpts struct {
	priority   int
	expiration string
}

// publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message, opts publishOpts) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),
			string(routingKey),
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Priority:     uint8(opts.priority),
				Expiration:   opts.expiration,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// clampPriority ограничивает приоритет диапазоном очереди.
func clampPriority(priority int) int {
	if priority < 0 {
		return 0
	}
	if priority > MaxPriority {
		return MaxPriority
	}
	return priority
}
