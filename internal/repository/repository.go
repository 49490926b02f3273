// Пакет repository — слой доступа к данным PostgreSQL.
// Все запросы — чистый SQL через pgx, без ORM. Таблица products
// хранит по строке на опубликованную версию; атомарность операции
// создания-и-привязки обеспечивается транзакцией с проверкой
// next_version IS NULL у базы.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
)

// ConflictError — заявленная база уже не последняя версия линии.
type ConflictError struct {
	// BaselineID — база, заявленная при публикации
	BaselineID string
	// LatestID — фактическая последняя версия линии
	LatestID string
}

// Error реализует интерфейс error.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("база %s уже не последняя версия линии (последняя: %s)", e.BaselineID, e.LatestID)
}

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
