package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

// Output — форматирование вывода CLI.
//
// Данные (таблицы, JSON) уходят в stdout и пригодны для пайпов;
// служебные сообщения — в stderr, чтобы не мешать обработке вывода.
type Output struct {
	json bool
	data io.Writer
	msgs io.Writer
}

// NewOutput создаёт Output. В JSON-режиме Print печатает исходный
// объект вместо таблицы.
func NewOutput(jsonMode bool) *Output {
	return &Output{json: jsonMode, data: os.Stdout, msgs: os.Stderr}
}

// Print выводит табличные данные или, в JSON-режиме, объект v.
func (o *Output) Print(headers []string, rows [][]string, v any) {
	if o.json {
		o.JSON(v)
		return
	}
	if len(rows) == 0 {
		fmt.Fprintln(o.msgs, "no results")
		return
	}
	o.Table(headers, rows)
}

// Table печатает таблицу с разделителем после строки заголовков.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.data, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	sep := make([]string, len(headers))
	for i := range headers {
		sep[i] = strings.Repeat("-", len(headers[i]))
	}
	fmt.Fprintln(tw, strings.Join(sep, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
}

// JSON печатает v с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.data)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(o.msgs, "Error: encode output:", err)
	}
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.msgs, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.msgs, "Error: "+msg)
}

// --- Форматирование доменных значений ---

// Timestamp укорачивает RFC3339-время из API до читаемого локального
// вида. Пустое время отображается прочерком.
func Timestamp(ts string) string {
	if ts == "" {
		return "-"
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// Progress форматирует прогресс job.
func Progress(p int) string {
	return strconv.Itoa(p) + "%"
}

// ScheduleSpec описывает расписание одной строкой: cron-выражение
// либо интервал.
func ScheduleSpec(cronExpr string, intervalSec int) string {
	if cronExpr != "" {
		return cronExpr
	}
	return fmt.Sprintf("every %ds", intervalSec)
}
