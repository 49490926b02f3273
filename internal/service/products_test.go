package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/bigkaa/prodstore/catalog"
	"github.com/bigkaa/prodstore/catalog/meta"
	"github.com/bigkaa/prodstore/internal/repository"
	"github.com/bigkaa/prodstore/version"
)

// fakeProductRepo — репозиторий продуктов в памяти для unit-тестов.
type fakeProductRepo struct {
	products map[string]*catalog.Product
	nextID   int
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[string]*catalog.Product)}
}

func (f *fakeProductRepo) GetByID(_ context.Context, id string) (*catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakeProductRepo) GetLatest(ctx context.Context, id string) (*catalog.Product, error) {
	p, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	for p.NextVersion != "" {
		p = f.products[p.NextVersion]
	}
	copied := *p
	return &copied, nil
}

func (f *fakeProductRepo) ListVersions(ctx context.Context, id string) ([]catalog.Product, error) {
	p, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	for p.PreviousVersion != "" {
		p = f.products[p.PreviousVersion]
	}
	var versions []catalog.Product
	for {
		versions = append(versions, *p)
		if p.NextVersion == "" {
			return versions, nil
		}
		p = f.products[p.NextVersion]
	}
}

func (f *fakeProductRepo) SearchByName(_ context.Context, name string, _ int) ([]catalog.Product, error) {
	var found []catalog.Product
	for _, p := range f.products {
		if p.Name == name {
			found = append(found, *p)
		}
	}
	return found, nil
}

func (f *fakeProductRepo) CreateAndLink(ctx context.Context, record catalog.Product, baselineID string, level version.Level) (*catalog.Product, error) {
	if baselineID == "" {
		record.Version = version.Initial
	} else {
		baseline, err := f.GetByID(ctx, baselineID)
		if err != nil {
			return nil, err
		}
		if !baseline.IsLatest() {
			latest, _ := f.GetLatest(ctx, baselineID)
			return nil, &repository.ConflictError{BaselineID: baselineID, LatestID: latest.ID}
		}
		record.Version, _ = baseline.Version.Bump(level)
		record.PreviousVersion = baselineID
	}

	f.nextID++
	record.ID = fmt.Sprintf("prod-%d", f.nextID)
	f.products[record.ID] = &record
	if baselineID != "" {
		f.products[baselineID].NextVersion = record.ID
	}
	created := record
	return &created, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serviceRecord(owner string) catalog.Product {
	return catalog.Product{
		Name:     "act_beam",
		Metadata: meta.Beam{Telescope: "ACT", Frequency: 150},
		Sources: map[string]catalog.Source{
			"data": {Slug: "data", Name: "beam.txt", Description: "профиль"},
		},
		Access: catalog.Access{
			Owner:   owner,
			Readers: []string{"science"},
			Writers: []string{"maintainers"},
		},
	}
}

func TestProductService_CreateAndRead(t *testing.T) {
	repo := newFakeProductRepo()
	svc := NewProductService(repo, testLogger())
	ctx := context.Background()
	alice := Principal{Name: "alice", Groups: []string{"science"}}

	created, err := svc.Create(ctx, alice, serviceRecord(""), "", version.LevelMinor)
	if err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if created.Access.Owner != "alice" {
		t.Errorf("Owner = %q, хотели alice (владелец по умолчанию)", created.Access.Owner)
	}
	if created.Version != version.Initial {
		t.Errorf("Version = %s, хотели 1.0.0", created.Version)
	}

	got, err := svc.Get(ctx, alice, created.ID)
	if err != nil {
		t.Fatalf("Get() ошибка: %v", err)
	}
	if got.Name != "act_beam" {
		t.Errorf("Name = %q", got.Name)
	}
}

func TestProductService_ForbiddenRead(t *testing.T) {
	repo := newFakeProductRepo()
	svc := NewProductService(repo, testLogger())
	ctx := context.Background()

	created, err := svc.Create(ctx, Principal{Name: "alice"}, serviceRecord("alice"), "", version.LevelMinor)
	if err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	// Посторонний без пересечения групп
	_, err = svc.Get(ctx, Principal{Name: "mallory", Groups: []string{"guests"}}, created.ID)
	var forbidden *ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("Ожидали ForbiddenError, получили: %v", err)
	}
	if forbidden.Operation != "read" || forbidden.EntityID != created.ID {
		t.Errorf("ForbiddenError = %+v", forbidden)
	}

	// Администратор читает несмотря на ограничения
	if _, err := svc.Get(ctx, Principal{Name: "root", Groups: []string{catalog.AdminGroup}}, created.ID); err != nil {
		t.Errorf("Администратору чтение должно быть разрешено: %v", err)
	}
}

func TestProductService_ForbiddenWrite(t *testing.T) {
	repo := newFakeProductRepo()
	svc := NewProductService(repo, testLogger())
	ctx := context.Background()

	created, err := svc.Create(ctx, Principal{Name: "alice"}, serviceRecord("alice"), "", version.LevelMinor)
	if err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	// Читатель не имеет права публиковать ревизию
	_, err = svc.Create(ctx, Principal{Name: "bob", Groups: []string{"science"}},
		serviceRecord("alice"), created.ID, version.LevelPatch)
	var forbidden *ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("Ожидали ForbiddenError, получили: %v", err)
	}

	// Член группы писателей публикует успешно
	next, err := svc.Create(ctx, Principal{Name: "carol", Groups: []string{"maintainers"}},
		serviceRecord("alice"), created.ID, version.LevelPatch)
	if err != nil {
		t.Fatalf("Create() писателем: %v", err)
	}
	if next.Version.String() != "1.0.1" {
		t.Errorf("Version = %s, хотели 1.0.1", next.Version)
	}
}

func TestProductService_ConflictPassthrough(t *testing.T) {
	repo := newFakeProductRepo()
	svc := NewProductService(repo, testLogger())
	ctx := context.Background()
	alice := Principal{Name: "alice"}

	first, err := svc.Create(ctx, alice, serviceRecord("alice"), "", version.LevelMinor)
	if err != nil {
		t.Fatalf("Create() первая версия: %v", err)
	}
	second, err := svc.Create(ctx, alice, serviceRecord("alice"), first.ID, version.LevelMinor)
	if err != nil {
		t.Fatalf("Create() вторая версия: %v", err)
	}

	_, err = svc.Create(ctx, alice, serviceRecord("alice"), first.ID, version.LevelPatch)
	var conflict *repository.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Ожидали ConflictError, получили: %v", err)
	}
	if conflict.LatestID != second.ID {
		t.Errorf("LatestID = %q, хотели %q", conflict.LatestID, second.ID)
	}
}

func TestProductService_SearchFiltersUnreadable(t *testing.T) {
	repo := newFakeProductRepo()
	svc := NewProductService(repo, testLogger())
	ctx := context.Background()

	open := serviceRecord("alice")
	open.Access.Readers = nil // чтение без ограничений
	if _, err := svc.Create(ctx, Principal{Name: "alice"}, open, "", version.LevelMinor); err != nil {
		t.Fatalf("Create() открытый: %v", err)
	}
	closed := serviceRecord("alice")
	closed.Access.Readers = []string{"secret"}
	if _, err := svc.Create(ctx, Principal{Name: "alice"}, closed, "", version.LevelMinor); err != nil {
		t.Fatalf("Create() закрытый: %v", err)
	}

	found, err := svc.Search(ctx, Principal{Name: "mallory"}, "act_beam", 10)
	if err != nil {
		t.Fatalf("Search() ошибка: %v", err)
	}
	if len(found) != 1 {
		t.Errorf("Search вернул %d продуктов, хотели 1 (закрытый отфильтрован)", len(found))
	}
}

func TestProductService_InvalidLevel(t *testing.T) {
	repo := newFakeProductRepo()
	svc := NewProductService(repo, testLogger())
	ctx := context.Background()
	alice := Principal{Name: "alice"}

	first, err := svc.Create(ctx, alice, serviceRecord("alice"), "", version.LevelMinor)
	if err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	_, err = svc.Create(ctx, alice, serviceRecord("alice"), first.ID, version.Level("huge"))
	var invalid *ValidationError
	if !errors.As(err, &invalid) {
		t.Errorf("Ожидали ValidationError, получили: %v", err)
	}
}
