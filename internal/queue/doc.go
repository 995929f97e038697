// Package queue реализует durable очередь jobs с at-least-once
// доставкой.
//
// Queue — сторона постановки: job персистится в store и публикуется
// в брокер; при недоступном брокере постановка всё равно успешна,
// PENDING job подхватит polling-фолбэк.
//
// Worker — сторона потребления: пул из N обработчиков, каждая доставка
// выполняется через Orchestrator. Проваленная доставка повторяется
// до MaxAttempts с экспоненциальной задержкой через jobs.delayed;
// исчерпавший бюджет job эскалируется в dead letter store с исходным
// payload и счётчиком попыток. Dead letters перезапускаются только
// вручную через RequeueDeadLetter.
package queue
