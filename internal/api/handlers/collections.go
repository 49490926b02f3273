// collections.go — обработчики коллекций продуктов.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bigkaa/prodstore/catalog"
	apierrors "github.com/bigkaa/prodstore/internal/api/errors"
	"github.com/bigkaa/prodstore/internal/service"
)

// CollectionHandler — обработчики HTTP-запросов к коллекциям.
type CollectionHandler struct {
	collections *service.CollectionService
	logger      *slog.Logger
}

// NewCollectionHandler создаёт обработчик коллекций.
func NewCollectionHandler(collections *service.CollectionService, logger *slog.Logger) *CollectionHandler {
	return &CollectionHandler{
		collections: collections,
		logger:      logger.With(slog.String("component", "collection_handler")),
	}
}

// Get — GET /api/v1/collections/{id}.
func (h *CollectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "collection")
	if !ok {
		return
	}

	coll, err := h.collections.Get(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "collection", id)
		return
	}
	writeJSON(w, http.StatusOK, coll)
}

// Create — POST /api/v1/collections.
func (h *CollectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}

	var coll catalog.Collection
	if err := json.NewDecoder(r.Body).Decode(&coll); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса: "+err.Error())
		return
	}

	created, err := h.collections.Create(r.Context(), caller, coll)
	if err != nil {
		writeServiceError(w, h.logger, err, "collection", "")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Update — PUT /api/v1/collections/{id}.
func (h *CollectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "collection")
	if !ok {
		return
	}

	var coll catalog.Collection
	if err := json.NewDecoder(r.Body).Decode(&coll); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса: "+err.Error())
		return
	}
	coll.ID = id

	updated, err := h.collections.Update(r.Context(), caller, coll)
	if err != nil {
		writeServiceError(w, h.logger, err, "collection", id)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete — DELETE /api/v1/collections/{id}.
func (h *CollectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "collection")
	if !ok {
		return
	}

	if err := h.collections.Delete(r.Context(), caller, id); err != nil {
		writeServiceError(w, h.logger, err, "collection", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
