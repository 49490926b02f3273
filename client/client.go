// Пакет client — клиент синхронизации каталога продуктов.
//
// Клиент связывает службу метаданных, объектное хранилище и локальный
// кэш в операции pull, preflight и push. Служба метаданных и объектное
// хранилище — внешние коллабораторы за интерфейсами; их транспортные
// ошибки оборачиваются в типизированные ошибки пакета.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bigkaa/prodstore/cache"
	"github.com/bigkaa/prodstore/catalog"
	"github.com/bigkaa/prodstore/version"
)

// MetadataStore — служба метаданных каталога.
type MetadataStore interface {
	// GetProduct возвращает продукт по идентификатору.
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
	// GetLatest возвращает последнюю версию линии, содержащей продукт.
	GetLatest(ctx context.Context, id string) (*catalog.Product, error)
	// ListVersions возвращает версии линии в порядке возрастания.
	ListVersions(ctx context.Context, id string) ([]catalog.Product, error)
	// SearchProducts ищет продукты по подстроке имени.
	SearchProducts(ctx context.Context, name string) ([]catalog.Product, error)
	// CreateProduct создаёт новый продукт и, для ревизии, атомарно
	// привязывает его к базе. Если база уже не последняя версия
	// линии, возвращает *ConflictError.
	CreateProduct(ctx context.Context, record catalog.Product, baselineID string, level version.Level) (*catalog.Product, error)
	// CallerGroups возвращает группы вызывающего принципала.
	CallerGroups(ctx context.Context) ([]string, error)

	// GetCollection возвращает коллекцию по идентификатору.
	GetCollection(ctx context.Context, id string) (*catalog.Collection, error)
	// CreateCollection создаёт коллекцию.
	CreateCollection(ctx context.Context, c catalog.Collection) (*catalog.Collection, error)
	// UpdateCollection сохраняет изменённую коллекцию.
	UpdateCollection(ctx context.Context, c catalog.Collection) (*catalog.Collection, error)
	// DeleteCollection удаляет коллекцию.
	DeleteCollection(ctx context.Context, id string) error
}

// ObjectStore — объектное хранилище содержимого источников.
type ObjectStore interface {
	// Get открывает содержимое источника на чтение.
	Get(ctx context.Context, src catalog.Source) (io.ReadCloser, error)
	// Put загружает содержимое под ключом, сохраняя его дайджест
	// для последующей дедупликации.
	Put(ctx context.Context, key string, digest string, size int64, body io.Reader) error
	// Exists сообщает, хранится ли под ключом объект с данным
	// дайджестом (адресация по содержимому для дедупликации).
	Exists(ctx context.Context, digest string, key string) (bool, error)
}

// Config — конфигурация клиента.
type Config struct {
	// Principal — идентификатор вызывающего
	Principal string
	// Groups — группы вызывающего; пустой список означает
	// «запросить у службы метаданных при первом обращении»
	Groups []string
}

// Client — клиент синхронизации.
type Client struct {
	cfg     Config
	store   MetadataStore
	objects ObjectStore
	cache   *cache.Manager
	logger  *slog.Logger

	groupsMu sync.Mutex
	groups   []string
}

// New создаёт клиент синхронизации.
func New(cfg Config, store MetadataStore, objects ObjectStore, cacheManager *cache.Manager, logger *slog.Logger) (*Client, error) {
	if store == nil {
		return nil, fmt.Errorf("клиент требует службу метаданных")
	}
	if objects == nil {
		return nil, fmt.Errorf("клиент требует объектное хранилище")
	}
	if cacheManager == nil {
		return nil, fmt.Errorf("клиент требует менеджер кэша")
	}
	return &Client{
		cfg:     cfg,
		store:   store,
		objects: objects,
		cache:   cacheManager,
		logger:  logger.With(slog.String("component", "client")),
		groups:  cfg.Groups,
	}, nil
}

// callerGroups возвращает группы вызывающего, при необходимости
// запрашивая их у службы метаданных один раз. Операции клиента
// допускают одновременные вызовы, поэтому ленивое заполнение
// сериализуется мьютексом.
func (c *Client) callerGroups(ctx context.Context) ([]string, error) {
	c.groupsMu.Lock()
	defer c.groupsMu.Unlock()
	if c.groups != nil {
		return c.groups, nil
	}
	groups, err := c.store.CallerGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения групп вызывающего: %w", err)
	}
	if groups == nil {
		groups = []string{}
	}
	c.groups = groups
	return groups, nil
}

// Pull получает текущую запись продукта и, при realizeSources,
// реализует все его источники в локальном кэше. Ошибки отдельных
// источников не прерывают операцию: возвращается
// *PartialRealizationError с картой ошибок по слагам и уже
// реализованными путями.
func (c *Client) Pull(ctx context.Context, productID string, realizeSources bool) (*catalog.Product, map[string]string, error) {
	product, err := c.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, nil, err
	}

	groups, err := c.callerGroups(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !product.Access.CanRead(c.cfg.Principal, groups) {
		return nil, nil, &AuthorizationError{Operation: "read", EntityID: productID}
	}

	if !realizeSources {
		return product, nil, nil
	}

	realized := make(map[string]string, len(product.Sources))
	failures := make(map[string]error)
	for slug, src := range product.Sources {
		path, err := c.cache.Realize(ctx, product.ID, src, c.objects.Get)
		if err != nil {
			failures[slug] = err
			continue
		}
		realized[slug] = path
	}

	if len(failures) > 0 {
		return product, realized, &PartialRealizationError{
			ProductID: product.ID,
			Realized:  realized,
			Failures:  failures,
		}
	}
	return product, realized, nil
}

// Realize реализует один источник продукта в локальном кэше
// и возвращает путь к проверенному файлу.
func (c *Client) Realize(ctx context.Context, productID, slug string) (string, error) {
	product, _, err := c.Pull(ctx, productID, false)
	if err != nil {
		return "", err
	}
	src, ok := product.Source(slug)
	if !ok {
		return "", &NotFoundError{Kind: "источник", ID: productID + "/" + slug}
	}
	return c.cache.Realize(ctx, product.ID, src, c.objects.Get)
}

// Evict удаляет записи источника из локального кэша.
// Возвращает освобождённые байты.
func (c *Client) Evict(productID, slug string) (int64, error) {
	return c.cache.Evict(productID, slug)
}

// ClearCache полностью очищает локальный кэш.
// Возвращает освобождённые байты.
func (c *Client) ClearCache() (int64, error) {
	return c.cache.Clear()
}

// ListVersions возвращает версии линии продукта в порядке возрастания.
func (c *Client) ListVersions(ctx context.Context, productID string) ([]catalog.Product, error) {
	groups, err := c.callerGroups(ctx)
	if err != nil {
		return nil, err
	}
	versions, err := c.store.ListVersions(ctx, productID)
	if err != nil {
		return nil, err
	}
	if len(versions) > 0 && !versions[len(versions)-1].Access.CanRead(c.cfg.Principal, groups) {
		return nil, &AuthorizationError{Operation: "read", EntityID: productID}
	}
	return versions, nil
}

// SearchProducts ищет продукты по подстроке имени, отфильтровывая
// недоступные вызывающему.
func (c *Client) SearchProducts(ctx context.Context, name string) ([]catalog.Product, error) {
	groups, err := c.callerGroups(ctx)
	if err != nil {
		return nil, err
	}
	found, err := c.store.SearchProducts(ctx, name)
	if err != nil {
		return nil, err
	}
	readable := found[:0]
	for _, p := range found {
		if p.Access.CanRead(c.cfg.Principal, groups) {
			readable = append(readable, p)
		}
	}
	return readable, nil
}
