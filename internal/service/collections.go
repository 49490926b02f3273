// Сервис коллекций: CRUD с проверкой прав доступа.
package service

import (
	"context"
	"log/slog"

	"github.com/bigkaa/prodstore/catalog"
	"github.com/bigkaa/prodstore/internal/repository"
)

// CollectionService — сервис коллекций продуктов.
type CollectionService struct {
	repo   repository.CollectionRepository
	logger *slog.Logger
}

// NewCollectionService создаёт сервис коллекций.
func NewCollectionService(repo repository.CollectionRepository, logger *slog.Logger) *CollectionService {
	return &CollectionService{
		repo:   repo,
		logger: logger.With(slog.String("component", "collection_service")),
	}
}

// Get возвращает коллекцию с проверкой права чтения.
func (s *CollectionService) Get(ctx context.Context, caller Principal, id string) (*catalog.Collection, error) {
	coll, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !coll.Access.CanRead(caller.Name, caller.Groups) {
		return nil, &ForbiddenError{Operation: "read", EntityID: id}
	}
	return coll, nil
}

// Create создаёт коллекцию. Владельцем становится вызывающий,
// если владелец не задан явно.
func (s *CollectionService) Create(ctx context.Context, caller Principal, coll catalog.Collection) (*catalog.Collection, error) {
	if coll.Name == "" {
		return nil, &ValidationError{Message: "имя коллекции не задано"}
	}
	if coll.Access.Owner == "" {
		coll.Access.Owner = caller.Name
	}

	created, err := s.repo.Create(ctx, coll)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Коллекция создана",
		slog.String("id", created.ID),
		slog.String("name", created.Name),
		slog.String("owner", created.Access.Owner),
	)
	return created, nil
}

// Update сохраняет изменённую коллекцию с проверкой права записи
// по текущему состоянию. Смена владельца не допускается.
func (s *CollectionService) Update(ctx context.Context, caller Principal, coll catalog.Collection) (*catalog.Collection, error) {
	current, err := s.repo.GetByID(ctx, coll.ID)
	if err != nil {
		return nil, err
	}
	if !current.Access.CanWrite(caller.Name, caller.Groups) {
		return nil, &ForbiddenError{Operation: "write", EntityID: coll.ID}
	}
	if coll.Name == "" {
		return nil, &ValidationError{Message: "имя коллекции не задано"}
	}
	coll.Access.Owner = current.Access.Owner

	return s.repo.Update(ctx, coll)
}

// Delete удаляет коллекцию. Разрешено владельцу и администратору.
func (s *CollectionService) Delete(ctx context.Context, caller Principal, id string) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Access.Owner != caller.Name && !caller.IsAdmin() {
		return &ForbiddenError{Operation: "delete", EntityID: id}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Коллекция удалена", slog.String("id", id))
	return nil
}
