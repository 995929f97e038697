// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений
//
// Типы сообщений:
//   - job.ready — job готов к выполнению
//
// Exchanges:
//   - conveyor.jobs — доставка jobs worker'ам
//   - conveyor.dlq  — терминальная очередь исчерпавших попытки
//
// Повторная доставка с задержкой реализована через jobs.delayed:
// сообщение публикуется туда с per-message TTL, по истечении TTL
// брокер возвращает его в jobs.ready через dead-letter routing.
package mq
