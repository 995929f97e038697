// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go            — Handler с DI (репозитории, queue, реестры, logger)
//   - routes.go             — регистрация маршрутов
//   - middleware.go         — middleware (logging, recovery)
//   - response.go           — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                — Data Transfer Objects (request/response)
//   - job_handler.go        — обработчики для /jobs
//   - plan_handler.go       — обработчики для /plans и /breakers
//   - deadletter_handler.go — обработчики для /deadletters
//   - schedule_handler.go   — обработчики для /schedules
//
// API предоставляет REST endpoints для постановки jobs, наблюдения за
// их прогрессом и ручного управления dead letters и schedules.
package api
