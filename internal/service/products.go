// Сервис продуктов: чтение, поиск, публикация версий.
// Координирует репозиторий, правила доступа и Prometheus-метрики.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/prodstore/catalog"
	"github.com/bigkaa/prodstore/internal/repository"
	"github.com/bigkaa/prodstore/version"
)

// Prometheus-метрики продуктов.
var (
	productsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prodstore_products_created_total",
		Help: "Общее количество опубликованных версий продуктов.",
	})
	productConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prodstore_product_conflicts_total",
		Help: "Количество публикаций, отклонённых из-за устаревшей базы.",
	})
	productSearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "prodstore_product_search_duration_seconds",
		Help:    "Длительность поисковых запросов по имени.",
		Buckets: prometheus.DefBuckets,
	})
)

// ProductService — сервис продуктов каталога.
type ProductService struct {
	repo   repository.ProductRepository
	logger *slog.Logger
}

// NewProductService создаёт сервис продуктов.
func NewProductService(repo repository.ProductRepository, logger *slog.Logger) *ProductService {
	return &ProductService{
		repo:   repo,
		logger: logger.With(slog.String("component", "product_service")),
	}
}

// Get возвращает продукт по идентификатору с проверкой права чтения.
func (s *ProductService) Get(ctx context.Context, caller Principal, id string) (*catalog.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.Access.CanRead(caller.Name, caller.Groups) {
		return nil, &ForbiddenError{Operation: "read", EntityID: id}
	}
	return product, nil
}

// GetLatest возвращает последнюю версию линии, содержащей продукт.
func (s *ProductService) GetLatest(ctx context.Context, caller Principal, id string) (*catalog.Product, error) {
	latest, err := s.repo.GetLatest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !latest.Access.CanRead(caller.Name, caller.Groups) {
		return nil, &ForbiddenError{Operation: "read", EntityID: id}
	}
	return latest, nil
}

// ListVersions возвращает все версии линии в порядке возрастания.
// Право чтения проверяется по последней версии линии.
func (s *ProductService) ListVersions(ctx context.Context, caller Principal, id string) ([]catalog.Product, error) {
	versions, err := s.repo.ListVersions(ctx, id)
	if err != nil {
		return nil, err
	}
	latest := versions[len(versions)-1]
	if !latest.Access.CanRead(caller.Name, caller.Groups) {
		return nil, &ForbiddenError{Operation: "read", EntityID: id}
	}
	return versions, nil
}

// Search ищет продукты по подстроке имени. Недоступные вызывающему
// продукты отфильтровываются, а не вызывают ошибку.
func (s *ProductService) Search(ctx context.Context, caller Principal, name string, limit int) ([]catalog.Product, error) {
	start := time.Now()

	found, err := s.repo.SearchByName(ctx, name, limit)
	if err != nil {
		return nil, fmt.Errorf("поиск продуктов: %w", err)
	}

	readable := make([]catalog.Product, 0, len(found))
	for _, p := range found {
		if p.Access.CanRead(caller.Name, caller.Groups) {
			readable = append(readable, p)
		}
	}

	productSearchDuration.Observe(time.Since(start).Seconds())
	s.logger.Debug("Поиск выполнен",
		slog.String("name", name),
		slog.Int("found", len(found)),
		slog.Int("readable", len(readable)),
	)
	return readable, nil
}

// Create публикует версию продукта. Для baselineID == "" создаётся
// новая линия с версией 1.0.0; иначе проверяется право записи на базу
// и версия вычисляется повышением уровня level. Конфликт устаревшей
// базы возвращается как *repository.ConflictError.
func (s *ProductService) Create(ctx context.Context, caller Principal, record catalog.Product, baselineID string, level version.Level) (*catalog.Product, error) {
	if record.Access.Owner == "" {
		record.Access.Owner = caller.Name
	}
	if err := record.Validate(); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	if baselineID != "" {
		if _, err := version.ParseLevel(string(level)); err != nil {
			return nil, &ValidationError{Message: err.Error()}
		}
		baseline, err := s.repo.GetByID(ctx, baselineID)
		if err != nil {
			return nil, err
		}
		if !baseline.Access.CanWrite(caller.Name, caller.Groups) {
			return nil, &ForbiddenError{Operation: "write", EntityID: baselineID}
		}
	}

	created, err := s.repo.CreateAndLink(ctx, record, baselineID, level)
	if err != nil {
		var conflict *repository.ConflictError
		if errors.As(err, &conflict) {
			productConflictsTotal.Inc()
			s.logger.Info("Публикация отклонена: база устарела",
				slog.String("baseline_id", conflict.BaselineID),
				slog.String("latest_id", conflict.LatestID),
			)
		}
		return nil, err
	}

	productsCreatedTotal.Inc()
	s.logger.Info("Версия продукта опубликована",
		slog.String("id", created.ID),
		slog.String("name", created.Name),
		slog.String("version", created.Version.String()),
		slog.String("owner", created.Access.Owner),
	)
	return created, nil
}
