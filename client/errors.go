// Типизированные ошибки клиента синхронизации. Транспортные ошибки
// коллабораторов оборачиваются в эти виды на границе и никогда не
// просачиваются наружу как есть.
package client

import (
	"fmt"
	"sort"
	"strings"
)

// Violation — одно нарушение, обнаруженное предварительной проверкой.
type Violation struct {
	// Slug — слаг источника, к которому относится нарушение
	// (пусто для нарушений уровня продукта)
	Slug string `json:"slug,omitempty"`
	// Field — поле, к которому относится нарушение
	Field string `json:"field,omitempty"`
	// Message — описание нарушения
	Message string `json:"message"`
}

// String возвращает человекочитаемое представление нарушения.
func (v Violation) String() string {
	switch {
	case v.Slug != "" && v.Field != "":
		return fmt.Sprintf("источник %q, поле %q: %s", v.Slug, v.Field, v.Message)
	case v.Slug != "":
		return fmt.Sprintf("источник %q: %s", v.Slug, v.Message)
	case v.Field != "":
		return fmt.Sprintf("поле %q: %s", v.Field, v.Message)
	default:
		return v.Message
	}
}

// PreflightFailedError — предварительная проверка нашла нарушения.
// Несёт полный список, чтобы все нарушения можно было исправить
// за один проход.
type PreflightFailedError struct {
	Violations []Violation
}

// Error реализует интерфейс error.
func (e *PreflightFailedError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("предварительная проверка нашла нарушения (%d): %s",
		len(e.Violations), strings.Join(parts, "; "))
}

// ConflictError — линия версий ушла вперёд: заявленная база уже не
// последняя. Восстановление — получить новую последнюю версию,
// пересчитать дельту и повторить публикацию.
type ConflictError struct {
	// BaselineID — база, заявленная при публикации
	BaselineID string
	// LatestID — фактическая последняя версия линии
	LatestID string
}

// Error реализует интерфейс error.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("конфликт публикации: база %s уже не последняя версия линии (последняя: %s)",
		e.BaselineID, e.LatestID)
}

// NotFoundError — сущность не найдена.
type NotFoundError struct {
	// Kind — вид сущности (product, collection, source)
	Kind string
	// ID — идентификатор или слаг
	ID string
}

// Error реализует интерфейс error.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s не найден", e.Kind, e.ID)
}

// AuthorizationError — проверка групп отклонила операцию.
// Никогда не повторяется автоматически.
type AuthorizationError struct {
	// Operation — операция (read, write)
	Operation string
	// EntityID — сущность, к которой запрошен доступ
	EntityID string
}

// Error реализует интерфейс error.
func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("доступ %s к %s запрещён", e.Operation, e.EntityID)
}

// PartialRealizationError — реализация источников завершилась
// частично. Несёт успешно реализованные пути и ошибки по слагам;
// не фатальна для получения метаданных.
type PartialRealizationError struct {
	ProductID string
	// Realized — успешно реализованные источники: слаг -> путь
	Realized map[string]string
	// Failures — ошибки по слагам
	Failures map[string]error
}

// Error реализует интерфейс error.
func (e *PartialRealizationError) Error() string {
	slugs := make([]string, 0, len(e.Failures))
	for slug := range e.Failures {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	parts := make([]string, len(slugs))
	for i, slug := range slugs {
		parts[i] = fmt.Sprintf("%s: %v", slug, e.Failures[slug])
	}
	return fmt.Sprintf("продукт %s реализован частично (%d из %d источников не реализовано): %s",
		e.ProductID, len(e.Failures), len(e.Failures)+len(e.Realized), strings.Join(parts, "; "))
}
