// Package unit содержит task unit'ы — самодостаточные единицы доменной
// логики с единым жизненным циклом validate → execute → produce-output.
//
// Runner прогоняет unit через жизненный цикл и гарантирует изоляцию
// сбоев: любая ошибка или panic внутри unit'а превращается в
// TaskOutput{Success: false} и не выходит наружу.
//
// Registry хранит unit'ы по имени; DefaultRegistry собирает встроенный
// набор для обработки документов (extract, validate, classify,
// summarize, archive, notify).
package unit
