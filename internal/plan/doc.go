// Package plan содержит реестр workflow планов.
//
// Plan — упорядоченный список шагов для одного типа workflow. Реестр
// заполняется при старте процесса и валидирует планы целиком: план со
// ссылкой на незарегистрированный task unit отклоняется сразу, а не
// посреди выполнения job'а. Неизвестный workflow type — фатальная,
// неповторяемая ошибка.
//
// BuildInput строит вход шага: статический шаблон плюс служебные поля
// job'а и результаты уже завершённых шагов (previous_steps).
package plan
