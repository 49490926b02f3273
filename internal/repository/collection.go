package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/prodstore/catalog"
)

// collectionColumns — список столбцов таблицы collections.
const collectionColumns = `id::text, name, description,
	members::text[], parents::text[], children::text[],
	owner, readers, writers, created_at, updated_at`

// CollectionRepository — доступ к коллекциям продуктов.
type CollectionRepository interface {
	// GetByID возвращает коллекцию по UUID.
	GetByID(ctx context.Context, id string) (*catalog.Collection, error)
	// Create создаёт коллекцию.
	Create(ctx context.Context, c catalog.Collection) (*catalog.Collection, error)
	// Update сохраняет изменённую коллекцию.
	Update(ctx context.Context, c catalog.Collection) (*catalog.Collection, error)
	// Delete удаляет коллекцию.
	Delete(ctx context.Context, id string) error
}

// collectionRepo — реализация CollectionRepository через pgx.
type collectionRepo struct {
	db DBTX
}

// NewCollectionRepository создаёт репозиторий коллекций.
func NewCollectionRepository(db DBTX) CollectionRepository {
	return &collectionRepo{db: db}
}

// GetByID возвращает коллекцию по UUID или ErrNotFound.
func (r *collectionRepo) GetByID(ctx context.Context, id string) (*catalog.Collection, error) {
	query := `SELECT ` + collectionColumns + ` FROM collections WHERE id = $1`

	coll, err := scanCollection(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения коллекции %s: %w", id, err)
	}
	return coll, nil
}

// Create создаёт коллекцию и возвращает её полное состояние.
func (r *collectionRepo) Create(ctx context.Context, c catalog.Collection) (*catalog.Collection, error) {
	query := `
		INSERT INTO collections
			(name, description, members, parents, children, owner, readers, writers)
		VALUES ($1, $2, $3::uuid[], $4::uuid[], $5::uuid[], $6, $7, $8)
		RETURNING ` + collectionColumns

	created, err := scanCollection(r.db.QueryRow(ctx, query,
		c.Name, c.Description,
		orEmpty(c.Members), orEmpty(c.Parents), orEmpty(c.Children),
		c.Access.Owner, orEmpty(c.Access.Readers), orEmpty(c.Access.Writers)))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания коллекции %q: %w", c.Name, err)
	}
	return created, nil
}

// Update сохраняет изменённую коллекцию.
func (r *collectionRepo) Update(ctx context.Context, c catalog.Collection) (*catalog.Collection, error) {
	query := `
		UPDATE collections SET
			name = $2, description = $3,
			members = $4::uuid[], parents = $5::uuid[], children = $6::uuid[],
			readers = $7, writers = $8, updated_at = now()
		WHERE id = $1
		RETURNING ` + collectionColumns

	updated, err := scanCollection(r.db.QueryRow(ctx, query,
		c.ID, c.Name, c.Description,
		orEmpty(c.Members), orEmpty(c.Parents), orEmpty(c.Children),
		orEmpty(c.Access.Readers), orEmpty(c.Access.Writers)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка обновления коллекции %s: %w", c.ID, err)
	}
	return updated, nil
}

// Delete удаляет коллекцию. Отсутствие — ErrNotFound.
func (r *collectionRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM collections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления коллекции %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanCollection сканирует строку коллекции в модель каталога.
func scanCollection(row pgx.Row) (*catalog.Collection, error) {
	var c catalog.Collection
	err := row.Scan(
		&c.ID, &c.Name, &c.Description,
		&c.Members, &c.Parents, &c.Children,
		&c.Access.Owner, &c.Access.Readers, &c.Access.Writers,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// orEmpty заменяет nil на пустой срез для параметров-массивов.
func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
