package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/prodstore/catalog"
	"github.com/bigkaa/prodstore/catalog/meta"
	"github.com/bigkaa/prodstore/version"
)

// productColumns — список столбцов таблицы products для SELECT-запросов.
// UUID-столбцы приводятся к text для сканирования в строки.
const productColumns = `id::text, name, description, metadata, sources, version,
	owner, readers, writers,
	previous_version::text, next_version::text,
	parent_of::text[], child_of::text[],
	created_at, updated_at`

// ProductRepository — доступ к продуктам и их цепочкам версий.
type ProductRepository interface {
	// GetByID возвращает продукт по UUID.
	GetByID(ctx context.Context, id string) (*catalog.Product, error)
	// GetLatest возвращает последнюю версию линии, содержащей продукт.
	GetLatest(ctx context.Context, id string) (*catalog.Product, error)
	// ListVersions возвращает версии линии в порядке возрастания.
	ListVersions(ctx context.Context, id string) ([]catalog.Product, error)
	// SearchByName ищет продукты по подстроке имени (ILIKE).
	SearchByName(ctx context.Context, name string, limit int) ([]catalog.Product, error)
	// CreateAndLink создаёт продукт и атомарно привязывает его к базе.
	// Возвращает *ConflictError, если база уже не последняя версия.
	CreateAndLink(ctx context.Context, record catalog.Product, baselineID string, level version.Level) (*catalog.Product, error)
}

// productRepo — реализация ProductRepository через pgx.
type productRepo struct {
	pool *pgxpool.Pool
}

// NewProductRepository создаёт репозиторий продуктов.
func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &productRepo{pool: pool}
}

// GetByID возвращает продукт по UUID или ErrNotFound.
func (r *productRepo) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	return getProduct(ctx, r.pool, id)
}

func getProduct(ctx context.Context, db DBTX, id string) (*catalog.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения продукта %s: %w", id, err)
	}
	return product, nil
}

// GetLatest возвращает последнюю версию линии или ErrNotFound.
func (r *productRepo) GetLatest(ctx context.Context, id string) (*catalog.Product, error) {
	query := `
		WITH RECURSIVE chain AS (
			SELECT * FROM products WHERE id = $1
			UNION ALL
			SELECT p.* FROM products p JOIN chain c ON p.id = c.next_version
		)
		SELECT ` + productColumns + ` FROM chain WHERE next_version IS NULL`

	product, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска последней версии линии %s: %w", id, err)
	}
	return product, nil
}

// ListVersions возвращает все версии линии в порядке возрастания.
func (r *productRepo) ListVersions(ctx context.Context, id string) ([]catalog.Product, error) {
	// Сначала спускаемся к корню линии, затем идём вперёд по
	// next_version, нумеруя глубину
	query := `
		WITH RECURSIVE back AS (
			SELECT id, previous_version FROM products WHERE id = $1
			UNION ALL
			SELECT p.id, p.previous_version FROM products p JOIN back b ON p.id = b.previous_version
		), lineage AS (
			SELECT p.*, 0 AS depth FROM products p
			WHERE p.id = (SELECT id FROM back WHERE previous_version IS NULL)
			UNION ALL
			SELECT p.*, l.depth + 1 FROM products p JOIN lineage l ON p.previous_version = l.id
		)
		SELECT ` + productColumns + ` FROM lineage ORDER BY depth`

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения версий линии %s: %w", id, err)
	}
	defer rows.Close()

	var versions []catalog.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования версии линии %s: %w", id, err)
		}
		versions = append(versions, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения версий линии %s: %w", id, err)
	}
	if len(versions) == 0 {
		return nil, ErrNotFound
	}
	return versions, nil
}

// SearchByName ищет продукты по подстроке имени.
func (r *productRepo) SearchByName(ctx context.Context, name string, limit int) ([]catalog.Product, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + productColumns + ` FROM products
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY name, created_at
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, name, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска продуктов по имени %q: %w", name, err)
	}
	defer rows.Close()

	var found []catalog.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования результата поиска: %w", err)
		}
		found = append(found, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка поиска продуктов по имени %q: %w", name, err)
	}
	return found, nil
}

// CreateAndLink создаёт продукт и привязывает его к базе одной
// транзакцией. Защита от гонки двух публикаций с одной базой —
// условие next_version IS NULL в UPDATE: ноль затронутых строк
// означает, что линия уже ушла вперёд.
func (r *productRepo) CreateAndLink(ctx context.Context, record catalog.Product, baselineID string, level version.Level) (*catalog.Product, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if baselineID == "" {
		record.Version = version.Initial
		record.PreviousVersion = ""
	} else {
		baseline, err := getProduct(ctx, tx, baselineID)
		if err != nil {
			return nil, err
		}
		if !baseline.IsLatest() {
			return nil, r.conflict(ctx, baselineID)
		}
		record.Version, err = baseline.Version.Bump(level)
		if err != nil {
			return nil, err
		}
		record.PreviousVersion = baselineID
	}

	created, err := insertProduct(ctx, tx, record)
	if err != nil {
		return nil, err
	}

	if baselineID != "" {
		tag, err := tx.Exec(ctx,
			`UPDATE products SET next_version = $1, updated_at = now()
			 WHERE id = $2 AND next_version IS NULL`,
			created.ID, baselineID)
		if err != nil {
			return nil, fmt.Errorf("ошибка привязки версии к базе %s: %w", baselineID, err)
		}
		if tag.RowsAffected() == 0 {
			// Линия ушла вперёд между проверкой и привязкой
			return nil, r.conflict(ctx, baselineID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return created, nil
}

// conflict собирает ConflictError с фактической последней версией.
func (r *productRepo) conflict(ctx context.Context, baselineID string) error {
	latest, err := r.GetLatest(ctx, baselineID)
	if err != nil {
		return &ConflictError{BaselineID: baselineID}
	}
	return &ConflictError{BaselineID: baselineID, LatestID: latest.ID}
}

// insertProduct вставляет строку продукта и возвращает её полное
// состояние.
func insertProduct(ctx context.Context, db DBTX, record catalog.Product) (*catalog.Product, error) {
	metadataJSON, err := meta.Encode(record.Metadata)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации метаданных продукта %q: %w", record.Name, err)
	}
	sourcesJSON, err := json.Marshal(record.Sources)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации источников продукта %q: %w", record.Name, err)
	}

	query := `
		INSERT INTO products
			(name, description, metadata, sources, version,
			 owner, readers, writers, previous_version, parent_of, child_of)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, '')::uuid, $10::uuid[], $11::uuid[])
		RETURNING ` + productColumns

	readers := record.Access.Readers
	if readers == nil {
		readers = []string{}
	}
	writers := record.Access.Writers
	if writers == nil {
		writers = []string{}
	}
	parentOf := record.ParentOf
	if parentOf == nil {
		parentOf = []string{}
	}
	childOf := record.ChildOf
	if childOf == nil {
		childOf = []string{}
	}

	created, err := scanProduct(db.QueryRow(ctx, query,
		record.Name, record.Description, metadataJSON, sourcesJSON,
		record.Version.String(), record.Access.Owner, readers, writers,
		record.PreviousVersion, parentOf, childOf))
	if err != nil {
		return nil, fmt.Errorf("ошибка вставки продукта %q: %w", record.Name, err)
	}
	return created, nil
}

// scanProduct сканирует строку продукта в модель каталога.
func scanProduct(row pgx.Row) (*catalog.Product, error) {
	var (
		p            catalog.Product
		metadataJSON []byte
		sourcesJSON  []byte
		versionStr   string
		prev, next   *string
	)

	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &metadataJSON, &sourcesJSON, &versionStr,
		&p.Access.Owner, &p.Access.Readers, &p.Access.Writers,
		&prev, &next, &p.ParentOf, &p.ChildOf,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if p.Metadata, err = meta.Decode(metadataJSON); err != nil {
		return nil, fmt.Errorf("ошибка разбора метаданных продукта %s: %w", p.ID, err)
	}
	if err := json.Unmarshal(sourcesJSON, &p.Sources); err != nil {
		return nil, fmt.Errorf("ошибка разбора источников продукта %s: %w", p.ID, err)
	}
	if p.Version, err = version.Parse(versionStr); err != nil {
		return nil, fmt.Errorf("ошибка разбора версии продукта %s: %w", p.ID, err)
	}
	if prev != nil {
		p.PreviousVersion = *prev
	}
	if next != nil {
		p.NextVersion = *next
	}
	return &p, nil
}
