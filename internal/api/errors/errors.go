// Пакет errors — конструкторы стандартных ошибок API каталога.
// Единый формат: {"error": {"code": "...", "message": "...", ...}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // конфликт имени со stdlib осознанный

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок API.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeConflict        = "BASELINE_CONFLICT"
	CodeInternalError   = "INTERNAL_ERROR"
)

// Detail — детали ошибки. Помимо кода и сообщения несёт поля,
// по которым клиент восстанавливает типизированную ошибку:
// kind/id для 404, operation/id для 403, baseline_id/latest_id для 409.
type Detail struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Kind       string `json:"kind,omitempty"`
	ID         string `json:"id,omitempty"`
	Operation  string `json:"operation,omitempty"`
	BaselineID string `json:"baseline_id,omitempty"`
	LatestID   string `json:"latest_id,omitempty"`
}

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error Detail `json:"error"`
}

// WriteError записывает ответ ошибки в стандартном формате.
func WriteError(w http.ResponseWriter, statusCode int, detail Detail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Error: detail})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, Detail{Code: CodeValidationError, Message: message})
}

// NotFound — 404 сущность не найдена.
func NotFound(w http.ResponseWriter, kind, id string) {
	WriteError(w, http.StatusNotFound, Detail{
		Code:    CodeNotFound,
		Message: kind + " не найден: " + id,
		Kind:    kind,
		ID:      id,
	})
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, Detail{Code: CodeUnauthorized, Message: message})
}

// Forbidden — 403 операция запрещена правилами доступа.
func Forbidden(w http.ResponseWriter, operation, id string) {
	WriteError(w, http.StatusForbidden, Detail{
		Code:      CodeForbidden,
		Message:   "операция " + operation + " запрещена",
		Operation: operation,
		ID:        id,
	})
}

// Conflict — 409 заявленная база уже не последняя версия линии.
func Conflict(w http.ResponseWriter, baselineID, latestID string) {
	WriteError(w, http.StatusConflict, Detail{
		Code:       CodeConflict,
		Message:    "база " + baselineID + " уже не последняя версия линии",
		BaselineID: baselineID,
		LatestID:   latestID,
	})
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, Detail{Code: CodeInternalError, Message: message})
}
