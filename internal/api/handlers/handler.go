// Пакет handlers — HTTP-обработчики API каталога.
// Обработчики тонкие: разбор запроса, вызов сервисного слоя,
// трансляция ошибок в единый JSON-формат.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/bigkaa/prodstore/internal/api/errors"
	"github.com/bigkaa/prodstore/internal/api/middleware"
	"github.com/bigkaa/prodstore/internal/repository"
	"github.com/bigkaa/prodstore/internal/service"
)

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError транслирует ошибку сервисного слоя в HTTP-ответ.
// kind — вид сущности для 404 (product, collection), id — её идентификатор.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error, kind, id string) {
	var (
		forbidden *service.ForbiddenError
		conflict  *repository.ConflictError
		invalid   *service.ValidationError
	)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		apierrors.NotFound(w, kind, id)
	case errors.As(err, &forbidden):
		apierrors.Forbidden(w, forbidden.Operation, forbidden.EntityID)
	case errors.As(err, &conflict):
		apierrors.Conflict(w, conflict.BaselineID, conflict.LatestID)
	case errors.As(err, &invalid):
		apierrors.ValidationError(w, invalid.Message)
	default:
		logger.Error("Необработанная ошибка запроса", slog.Any("error", err))
		apierrors.InternalError(w, "внутренняя ошибка сервера")
	}
}

// pathID извлекает и валидирует UUID-параметр {id} маршрута.
// Синтаксически некорректный идентификатор отвечает 404 сразу,
// не доводя до ошибки приведения типов в PostgreSQL.
func pathID(w http.ResponseWriter, r *http.Request, kind string) (string, bool) {
	id := chi.URLParam(r, "id")
	if uuid.Validate(id) != nil {
		apierrors.NotFound(w, kind, id)
		return "", false
	}
	return id, true
}

// principal извлекает вызывающего из контекста запроса.
// Отсутствие означает ошибку порядка middleware.
func principal(w http.ResponseWriter, r *http.Request) (service.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
	}
	return p, ok
}
