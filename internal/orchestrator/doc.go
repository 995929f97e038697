// Package orchestrator выполняет workflow план одного job.
//
// Orchestrator — state machine job'а: PENDING → RUNNING → {COMPLETED,
// FAILED}. Шаги выполняются строго последовательно, каждый через
// retry-executor с политикой шага; прогресс персистится после каждого
// шага. Провал обязательного шага завершает workflow с FAILED, провал
// optional-шага логируется и не мешает следующим шагам.
//
// Ошибки инфраструктуры (store, план) пробрасываются наружу — их
// повторяет очередь доставкой job'а заново.
package orchestrator
