package repository

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/prodstore/catalog"
	"github.com/bigkaa/prodstore/catalog/meta"
	"github.com/bigkaa/prodstore/internal/database"
	"github.com/bigkaa/prodstore/version"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool; очистка через t.Cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("prodstore_test"),
		postgres.WithUsername("prodstore"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	connURL, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Не удалось получить строку подключения: %v", err)
	}

	// Применяем миграции (драйвер pgx5 требует свою схему URL)
	migrateURL := strings.Replace(connURL, "postgres://", "pgx5://", 1)
	if err := database.MigrateURL(migrateURL); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// testRecord возвращает запись продукта для вставки.
func testRecord(name string) catalog.Product {
	return catalog.Product{
		Name:        name,
		Description: "Карта пучка ACT",
		Metadata:    meta.Beam{Telescope: "ACT", Instrument: "actpol", Frequency: 150},
		Sources: map[string]catalog.Source{
			"data": {
				Slug:        "data",
				Name:        "beam.txt",
				Description: "профиль пучка",
				Size:        42,
				StorageKey:  "content/abc/beam.txt",
			},
		},
		Access: catalog.Access{
			Owner:   "alice",
			Readers: []string{"science"},
			Writers: []string{"maintainers"},
		},
	}
}

// --- Тесты ProductRepository ---

func TestProductLineage(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewProductRepository(pool)

	// Первая публикация: версия всегда 1.0.0
	first, err := repo.CreateAndLink(ctx, testRecord("act_beam"), "", version.LevelMinor)
	if err != nil {
		t.Fatalf("CreateAndLink() первая версия: %v", err)
	}
	if first.Version.String() != "1.0.0" {
		t.Errorf("Version = %s, хотели 1.0.0", first.Version)
	}
	if first.ID == "" {
		t.Error("ID не установлен после вставки")
	}
	if !first.IsLatest() {
		t.Error("Первая версия должна быть последней")
	}

	// GetByID
	got, err := repo.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Name != "act_beam" {
		t.Errorf("Name = %q, хотели %q", got.Name, "act_beam")
	}
	if got.Metadata.Kind() != "beam" {
		t.Errorf("Kind = %q, хотели %q", got.Metadata.Kind(), "beam")
	}
	if got.Access.Owner != "alice" {
		t.Errorf("Owner = %q, хотели %q", got.Access.Owner, "alice")
	}

	// Вторая версия: minor → 1.1.0, двусторонние ссылки
	rec2 := testRecord("act_beam")
	rec2.Description = "Карта пучка ACT, пересчитанная"
	second, err := repo.CreateAndLink(ctx, rec2, first.ID, version.LevelMinor)
	if err != nil {
		t.Fatalf("CreateAndLink() вторая версия: %v", err)
	}
	if second.Version.String() != "1.1.0" {
		t.Errorf("Version = %s, хотели 1.1.0", second.Version)
	}
	if second.PreviousVersion != first.ID {
		t.Errorf("PreviousVersion = %q, хотели %q", second.PreviousVersion, first.ID)
	}

	firstAfter, err := repo.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetByID() после привязки: %v", err)
	}
	if firstAfter.NextVersion != second.ID {
		t.Errorf("NextVersion = %q, хотели %q", firstAfter.NextVersion, second.ID)
	}

	// GetLatest с любого звена цепочки
	latest, err := repo.GetLatest(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetLatest() ошибка: %v", err)
	}
	if latest.ID != second.ID {
		t.Errorf("GetLatest = %s, хотели %s", latest.ID, second.ID)
	}

	// ListVersions: по возрастанию
	versions, err := repo.ListVersions(ctx, second.ID)
	if err != nil {
		t.Fatalf("ListVersions() ошибка: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("ListVersions вернул %d версий, хотели 2", len(versions))
	}
	if versions[0].ID != first.ID || versions[1].ID != second.ID {
		t.Errorf("Порядок версий: [%s %s], хотели [%s %s]",
			versions[0].ID, versions[1].ID, first.ID, second.ID)
	}

	// Конфликт: публикация с устаревшей базой
	_, err = repo.CreateAndLink(ctx, testRecord("act_beam"), first.ID, version.LevelPatch)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Ожидали ConflictError, получили: %v", err)
	}
	if conflict.BaselineID != first.ID {
		t.Errorf("BaselineID = %q, хотели %q", conflict.BaselineID, first.ID)
	}
	if conflict.LatestID != second.ID {
		t.Errorf("LatestID = %q, хотели %q", conflict.LatestID, second.ID)
	}

	// Конфликт не должен оставлять осиротевших строк
	after, err := repo.ListVersions(ctx, first.ID)
	if err != nil {
		t.Fatalf("ListVersions() после конфликта: %v", err)
	}
	if len(after) != 2 {
		t.Errorf("После конфликта в линии %d версий, хотели 2", len(after))
	}
}

func TestProductNotFound(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewProductRepository(pool)

	missing := "00000000-0000-0000-0000-000000000000"

	if _, err := repo.GetByID(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID: ожидали ErrNotFound, получили: %v", err)
	}
	if _, err := repo.GetLatest(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetLatest: ожидали ErrNotFound, получили: %v", err)
	}
	if _, err := repo.ListVersions(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("ListVersions: ожидали ErrNotFound, получили: %v", err)
	}
	if _, err := repo.CreateAndLink(ctx, testRecord("x"), missing, version.LevelPatch); !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateAndLink: ожидали ErrNotFound, получили: %v", err)
	}
}

func TestSearchByName(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewProductRepository(pool)

	names := []string{"act_beam_090", "act_beam_150", "planck_map"}
	for _, name := range names {
		if _, err := repo.CreateAndLink(ctx, testRecord(name), "", version.LevelMinor); err != nil {
			t.Fatalf("Создание %q: %v", name, err)
		}
	}

	found, err := repo.SearchByName(ctx, "beam", 10)
	if err != nil {
		t.Fatalf("SearchByName() ошибка: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("SearchByName вернул %d продуктов, хотели 2", len(found))
	}
	if found[0].Name != "act_beam_090" || found[1].Name != "act_beam_150" {
		t.Errorf("Порядок результатов: [%s %s]", found[0].Name, found[1].Name)
	}

	// Регистр не учитывается
	upper, err := repo.SearchByName(ctx, "BEAM", 10)
	if err != nil {
		t.Fatalf("SearchByName() ошибка: %v", err)
	}
	if len(upper) != 2 {
		t.Errorf("Поиск без учёта регистра вернул %d продуктов, хотели 2", len(upper))
	}
}

// --- Тесты CollectionRepository ---

func TestCollectionCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	products := NewProductRepository(pool)
	repo := NewCollectionRepository(pool)

	member, err := products.CreateAndLink(ctx, testRecord("act_beam"), "", version.LevelMinor)
	if err != nil {
		t.Fatalf("Создание продукта-члена: %v", err)
	}

	// Create
	created, err := repo.Create(ctx, catalog.Collection{
		Name:        "dr6",
		Description: "Релиз данных DR6",
		Members:     []string{member.ID},
		Access:      catalog.Access{Owner: "alice"},
	})
	if err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if created.ID == "" {
		t.Error("ID не установлен после Create")
	}
	if created.CreatedAt.IsZero() {
		t.Error("CreatedAt не установлен")
	}

	// GetByID
	got, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Name != "dr6" {
		t.Errorf("Name = %q, хотели %q", got.Name, "dr6")
	}
	if len(got.Members) != 1 || got.Members[0] != member.ID {
		t.Errorf("Members = %v, хотели [%s]", got.Members, member.ID)
	}

	// Update: состав и права
	got.Description = "Релиз данных DR6, финальный"
	got.Members = []string{}
	got.Access.Readers = []string{"science"}
	updated, err := repo.Update(ctx, *got)
	if err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}
	if updated.Description != "Релиз данных DR6, финальный" {
		t.Errorf("Description = %q после Update", updated.Description)
	}
	if len(updated.Members) != 0 {
		t.Errorf("Members = %v, хотели пустой список", updated.Members)
	}
	if len(updated.Access.Readers) != 1 || updated.Access.Readers[0] != "science" {
		t.Errorf("Readers = %v, хотели [science]", updated.Access.Readers)
	}

	// Delete
	if err := repo.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := repo.GetByID(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("После Delete ожидали ErrNotFound, получили: %v", err)
	}
	if err := repo.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Повторный Delete: ожидали ErrNotFound, получили: %v", err)
	}
}
