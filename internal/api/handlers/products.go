// products.go — обработчики продуктов каталога.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bigkaa/prodstore/catalog"
	apierrors "github.com/bigkaa/prodstore/internal/api/errors"
	"github.com/bigkaa/prodstore/internal/service"
	"github.com/bigkaa/prodstore/version"
)

// ProductHandler — обработчики HTTP-запросов к продуктам.
type ProductHandler struct {
	products *service.ProductService
	logger   *slog.Logger
}

// NewProductHandler создаёт обработчик продуктов.
func NewProductHandler(products *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		products: products,
		logger:   logger.With(slog.String("component", "product_handler")),
	}
}

// Get — GET /api/v1/products/{id}.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "product")
	if !ok {
		return
	}

	product, err := h.products.Get(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "product", id)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// GetLatest — GET /api/v1/products/{id}/latest.
func (h *ProductHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "product")
	if !ok {
		return
	}

	latest, err := h.products.GetLatest(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "product", id)
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

// ListVersions — GET /api/v1/products/{id}/versions.
func (h *ProductHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "product")
	if !ok {
		return
	}

	versions, err := h.products.ListVersions(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "product", id)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

// Search — GET /api/v1/products?name=&limit=.
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}

	name := r.URL.Query().Get("name")
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			apierrors.ValidationError(w, "параметр limit должен быть положительным числом")
			return
		}
		if parsed > 1000 {
			parsed = 1000
		}
		limit = parsed
	}

	found, err := h.products.Search(r.Context(), caller, name, limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "product", "")
		return
	}
	if found == nil {
		found = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, found)
}

// createProductRequest — тело запроса публикации версии продукта.
type createProductRequest struct {
	// Record — публикуемое состояние продукта
	Record catalog.Product `json:"record"`
	// BaselineID — база ревизии; пусто для новой линии
	BaselineID string `json:"baseline_id,omitempty"`
	// Level — уровень повышения версии
	Level version.Level `json:"level,omitempty"`
}

// Create — POST /api/v1/products.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}

	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса: "+err.Error())
		return
	}

	created, err := h.products.Create(r.Context(), caller, req.Record, req.BaselineID, req.Level)
	if err != nil {
		writeServiceError(w, h.logger, err, "product", req.BaselineID)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}
