// Пакет apiclient — HTTP-клиент службы метаданных каталога.
// Реализует client.MetadataStore поверх REST API сервера prodstore.
// Поддерживает TLS с кастомным CA и кэширование записей продуктов
// в памяти с истечением по времени.
package apiclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/bigkaa/prodstore/catalog"
	"github.com/bigkaa/prodstore/client"
	"github.com/bigkaa/prodstore/version"
)

// Config — конфигурация клиента API.
type Config struct {
	// BaseURL — базовый URL сервера (например, https://prodstore:8080)
	BaseURL string
	// Token — bearer-токен авторизации
	Token string
	// CACertPath — путь к CA-сертификату (пусто — стандартный пул)
	CACertPath string
	// Timeout — таймаут HTTP-запросов
	Timeout time.Duration
	// CacheSize — ёмкость кэша записей продуктов
	CacheSize int
	// CacheTTL — срок жизни записи в кэше
	CacheTTL time.Duration
}

// Client — HTTP-клиент службы метаданных.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger

	// records — кэш неизменяемых записей продуктов; записи
	// инвалидируются при публикации новой версии линии
	records *expirable.LRU[string, *catalog.Product]
}

// Интерфейс службы метаданных реализован полностью
var _ client.MetadataStore = (*Client)(nil)

// New создаёт клиент API.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("не задан базовый URL службы метаданных")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = 1024
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
	}
	if cfg.CACertPath != "" {
		tlsConfig, err := buildTLSConfig(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата: %w", err)
		}
		transport.TLSClientConfig = tlsConfig
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		logger:  logger.With(slog.String("component", "apiclient")),
		records: expirable.NewLRU[string, *catalog.Product](cfg.CacheSize, nil, cfg.CacheTTL),
	}, nil
}

// GetProduct возвращает продукт по идентификатору.
// Запись берётся из кэша, если она там есть и не устарела.
func (c *Client) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	if cached, ok := c.records.Get(id); ok {
		return cached, nil
	}

	var product catalog.Product
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/products/"+url.PathEscape(id), nil, &product); err != nil {
		return nil, err
	}

	// Кэшируются только вытесненные записи: их состояние неизменно.
	// Последняя версия линии может измениться при следующей публикации.
	if !product.IsLatest() {
		c.records.Add(id, &product)
	}
	return &product, nil
}

// GetLatest возвращает последнюю версию линии, содержащей продукт.
func (c *Client) GetLatest(ctx context.Context, id string) (*catalog.Product, error) {
	var product catalog.Product
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/products/"+url.PathEscape(id)+"/latest", nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// ListVersions возвращает версии линии в порядке возрастания.
func (c *Client) ListVersions(ctx context.Context, id string) ([]catalog.Product, error) {
	var versions []catalog.Product
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/products/"+url.PathEscape(id)+"/versions", nil, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// SearchProducts ищет продукты по подстроке имени.
func (c *Client) SearchProducts(ctx context.Context, name string) ([]catalog.Product, error) {
	var found []catalog.Product
	path := "/api/v1/products?name=" + url.QueryEscape(name)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &found); err != nil {
		return nil, err
	}
	return found, nil
}

// createProductRequest — тело запроса публикации.
type createProductRequest struct {
	Record     catalog.Product `json:"record"`
	BaselineID string          `json:"baseline_id,omitempty"`
	Level      version.Level   `json:"level,omitempty"`
}

// CreateProduct создаёт продукт и атомарно привязывает его к базе.
func (c *Client) CreateProduct(ctx context.Context, record catalog.Product, baselineID string, level version.Level) (*catalog.Product, error) {
	req := createProductRequest{Record: record, BaselineID: baselineID, Level: level}

	var created catalog.Product
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/products", req, &created); err != nil {
		return nil, err
	}

	// База вытеснена: её кэшированная запись устарела
	if baselineID != "" {
		c.records.Remove(baselineID)
	}
	return &created, nil
}

// CallerGroups возвращает группы вызывающего принципала.
func (c *Client) CallerGroups(ctx context.Context) ([]string, error) {
	var out struct {
		Groups []string `json:"groups"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/users/me/groups", nil, &out); err != nil {
		return nil, err
	}
	return out.Groups, nil
}

// GetCollection возвращает коллекцию по идентификатору.
func (c *Client) GetCollection(ctx context.Context, id string) (*catalog.Collection, error) {
	var coll catalog.Collection
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/collections/"+url.PathEscape(id), nil, &coll); err != nil {
		return nil, err
	}
	return &coll, nil
}

// CreateCollection создаёт коллекцию.
func (c *Client) CreateCollection(ctx context.Context, coll catalog.Collection) (*catalog.Collection, error) {
	var created catalog.Collection
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/collections", coll, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateCollection сохраняет изменённую коллекцию.
func (c *Client) UpdateCollection(ctx context.Context, coll catalog.Collection) (*catalog.Collection, error) {
	var updated catalog.Collection
	if err := c.doJSON(ctx, http.MethodPut, "/api/v1/collections/"+url.PathEscape(coll.ID), coll, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteCollection удаляет коллекцию.
func (c *Client) DeleteCollection(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/v1/collections/"+url.PathEscape(id), nil, nil)
}

// doJSON выполняет запрос с JSON-телом и разбирает JSON-ответ.
// Ошибки API транслируются в типизированные ошибки пакета client.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("ошибка сериализации запроса %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка запроса %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ошибка разбора ответа %s %s: %w", method, path, err)
	}
	return nil
}

// apiErrorBody — единый формат тела ошибки API.
type apiErrorBody struct {
	Error struct {
		Code       string `json:"code"`
		Message    string `json:"message"`
		Kind       string `json:"kind,omitempty"`
		ID         string `json:"id,omitempty"`
		Operation  string `json:"operation,omitempty"`
		BaselineID string `json:"baseline_id,omitempty"`
		LatestID   string `json:"latest_id,omitempty"`
	} `json:"error"`
}

// decodeAPIError транслирует ответ с ошибкой в типизированную ошибку.
// Транспортные детали наружу не просачиваются.
func decodeAPIError(resp *http.Response) error {
	var body apiErrorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	_ = json.Unmarshal(data, &body)

	switch resp.StatusCode {
	case http.StatusNotFound:
		kind := body.Error.Kind
		if kind == "" {
			kind = "сущность"
		}
		return &client.NotFoundError{Kind: kind, ID: body.Error.ID}
	case http.StatusConflict:
		return &client.ConflictError{
			BaselineID: body.Error.BaselineID,
			LatestID:   body.Error.LatestID,
		}
	case http.StatusForbidden, http.StatusUnauthorized:
		op := body.Error.Operation
		if op == "" {
			op = "access"
		}
		return &client.AuthorizationError{
			Operation: op,
			EntityID:  body.Error.ID,
		}
	default:
		if body.Error.Message != "" {
			return fmt.Errorf("служба метаданных вернула ошибку %d: %s", resp.StatusCode, body.Error.Message)
		}
		return fmt.Errorf("служба метаданных вернула статус %d", resp.StatusCode)
	}
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA-сертификатом.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &tls.Config{RootCAs: caCertPool}, nil
}
