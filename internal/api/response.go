package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/Conveyor/internal/repo"
)

// ErrorCode — машинно-читаемый код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInvalidState  ErrorCode = "INVALID_STATE"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// httpStatus — HTTP-статус для каждого кода ошибки.
var httpStatus = map[ErrorCode]int{
	ErrCodeBadRequest:    http.StatusBadRequest,
	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeConflict:      http.StatusConflict,
	ErrCodeInvalidState:  http.StatusUnprocessableEntity,
	ErrCodeInternalError: http.StatusInternalServerError,
}

// Конверт ответов API: {"data": ...} для успеха, {"data": ..., "total": N}
// для списков, {"error": {"code", "message"}} для ошибок.

// DataResponse — успешный ответ с одним объектом.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — успешный ответ со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total,omitempty"`
}

// ErrorResponse — ответ с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — код и описание ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// writeJSON сериализует v и пишет ответ со статусом status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":{"code":"INTERNAL_ERROR","message":"encode response"}}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// Success отвечает 200 с объектом.
func Success(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created отвечает 201 с созданным объектом.
func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, DataResponse{Data: data})
}

// List отвечает 200 со списком и общим количеством.
func List(w http.ResponseWriter, data any, total int) {
	writeJSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// NoContent отвечает 204 без тела.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error отвечает ошибкой; HTTP-статус выводится из кода.
func Error(w http.ResponseWriter, code ErrorCode, message string) {
	status, ok := httpStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// BadRequest отвечает 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, ErrCodeBadRequest, message)
}

// NotFound отвечает 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, ErrCodeNotFound, message)
}

// Conflict отвечает 409.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, ErrCodeConflict, message)
}

// InvalidState отвечает 422.
func InvalidState(w http.ResponseWriter, message string) {
	Error(w, ErrCodeInvalidState, message)
}

// InternalError логирует ошибку и отвечает 500 без деталей.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, ErrCodeInternalError, "internal server error")
}

// HandleRepoError транслирует ошибку репозитория в HTTP-ответ.
// Возвращает true, если ответ уже записан.
func HandleRepoError(w http.ResponseWriter, logger *slog.Logger, err error, notFoundMsg string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, repo.ErrNotFound):
		NotFound(w, notFoundMsg)
	case errors.Is(err, repo.ErrAlreadyExists):
		Conflict(w, err.Error())
	case errors.Is(err, repo.ErrInvalidState):
		InvalidState(w, err.Error())
	default:
		InternalError(w, logger, err)
	}
	return true
}
