// Пакет service — бизнес-логика сервера каталога: проверка прав
// доступа, публикация версий, коллекции, мониторинг зависимостей.
package service

import (
	"fmt"

	"github.com/bigkaa/prodstore/catalog"
)

// Principal — аутентифицированный вызывающий: идентификатор
// пользователя и его группы из JWT.
type Principal struct {
	// Name — идентификатор пользователя (preferred_username или sub)
	Name string
	// Groups — группы из claim токена
	Groups []string
}

// IsAdmin сообщает, состоит ли вызывающий в группе администраторов.
func (p Principal) IsAdmin() bool {
	for _, g := range p.Groups {
		if g == catalog.AdminGroup {
			return true
		}
	}
	return false
}

// ForbiddenError — операция запрещена правилами доступа сущности.
type ForbiddenError struct {
	// Operation — запрошенная операция (read, write, delete)
	Operation string
	// EntityID — идентификатор сущности
	EntityID string
}

// Error реализует интерфейс error.
func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("операция %s над %s запрещена", e.Operation, e.EntityID)
}

// ValidationError — запрос отклонён проверкой входных данных.
type ValidationError struct {
	// Message — причина отклонения
	Message string
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	return e.Message
}
