package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeJobs Exchange = "conveyor.jobs"
	ExchangeDLQ  Exchange = "conveyor.dlq"
)

// Queues — имена очередей.
const (
	QueueJobsReady   Queue = "jobs.ready"
	QueueJobsDelayed Queue = "jobs.delayed"
	QueueDLQJobs     Queue = "dlq.jobs"
)

// Routing keys.
const (
	RoutingKeyReady   RoutingKey = "ready"
	RoutingKeyDelayed RoutingKey = "delayed"
	RoutingKeyDLQJobs RoutingKey = "jobs"
)

// MaxPriority — максимальный приоритет сообщения в jobs.ready.
const MaxPriority = 9

func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		if err := bindQueues(ch); err != nil {
			return err
		}
		return nil
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeJobs, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	// jobs.ready — приоритетная очередь; сообщение с исчерпанными
	// попытками уходит в conveyor.dlq
	readyArgs := amqp.Table{
		"x-max-priority":            int32(MaxPriority),
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQJobs),
	}

	// jobs.delayed — сообщения лежат здесь до истечения per-message TTL,
	// после чего брокер возвращает их в jobs.ready.
	//
	// RabbitMQ проверяет TTL только у головы очереди: короткая задержка
	// позади длинной ждёт, пока истечёт голова. Backoff redelivery растёт
	// монотонно с номером попытки, поэтому инверсии редки и задержка
	// может только удлиниться, не потеряться.
	delayedArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeJobs),
		"x-dead-letter-routing-key": string(RoutingKeyReady),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		{QueueJobsReady, readyArgs},
		{QueueJobsDelayed, delayedArgs},
		{QueueDLQJobs, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueJobsReady, RoutingKeyReady, ExchangeJobs},
		{QueueJobsDelayed, RoutingKeyDelayed, ExchangeJobs},
		{QueueDLQJobs, RoutingKeyDLQJobs, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Conveyor RabbitMQ Topology:

    conveyor.jobs (direct)
    ├── jobs.ready [routing: ready, max-priority: 9]
    │       Consumer: Worker
    │       DLQ: dlq.jobs
    └── jobs.delayed [routing: delayed]
            Per-message TTL, expires back to jobs.ready

    conveyor.dlq (direct)
    └── dlq.jobs [routing: jobs]
            Manual processing
  `
}
