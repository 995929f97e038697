// Package cli реализует инструмент командной строки Conveyor.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Conveyor API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для постановки jobs, наблюдения за их прогрессом
// и ручного управления dead letters и schedules.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Conveyor API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	jobs, err := client.ListJobs(cli.ListJobsOpts{})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: conveyor job list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - job: list, submit, show, state
//   - plan: list, show
//   - deadletter: list, show, requeue
//   - schedule: list, create, show, delete, enable, disable
//
// Каждая группа создаётся через фабричную функцию (NewJobCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
