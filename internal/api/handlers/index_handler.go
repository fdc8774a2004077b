package handlers

import (
	"context"
	"net/http"

	"github.com/bitumen-hub/catalog-assistant/internal/api/response"
	"github.com/bitumen-hub/catalog-assistant/internal/models"
	"github.com/bitumen-hub/catalog-assistant/internal/service"
)

// IndexStatter reports vector index statistics.
type IndexStatter interface {
	Stats(ctx context.Context) (service.IndexStats, error)
}

// ReindexEnqueuer schedules reindex jobs.
type ReindexEnqueuer interface {
	EnqueueReindex(ctx context.Context, productID int64) error
	EnqueueRebuild(ctx context.Context) (int, error)
}

// IndexHandler exposes index statistics, manual reindexing and catalog event intake.
type IndexHandler struct {
	index     IndexStatter
	sync      ReindexEnqueuer
	publisher service.MessagePublisher
}

// NewIndexHandler creates a new index handler.
func NewIndexHandler(index IndexStatter, sync ReindexEnqueuer, publisher service.MessagePublisher) *IndexHandler {
	return &IndexHandler{index: index, sync: sync, publisher: publisher}
}

// Stats handles GET /v1/index/stats.
func (h *IndexHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.index.Stats(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "index stats")

		return
	}

	response.RespondJSON(w, http.StatusOK, stats)
}

// ReindexProduct handles POST /v1/index/products/{id}.
func (h *IndexHandler) ReindexProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		response.RespondBadRequest(w, "Invalid product ID")

		return
	}

	if err := h.sync.EnqueueReindex(r.Context(), id); err != nil {
		respondServiceError(w, r, err, "enqueue reindex")

		return
	}

	response.RespondJSON(w, http.StatusAccepted, map[string]any{"product_id": id, "enqueued": 1})
}

// Rebuild handles POST /v1/index/rebuild.
func (h *IndexHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	n, err := h.sync.EnqueueRebuild(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "enqueue rebuild")

		return
	}

	response.RespondJSON(w, http.StatusAccepted, map[string]any{"enqueued": n})
}

// CatalogEvent handles POST /v1/catalog/events for catalogs that cannot use database notifications.
// The event is queued and the response does not wait for indexing.
func (h *IndexHandler) CatalogEvent(w http.ResponseWriter, r *http.Request) {
	var event models.CatalogEvent
	if !decodeAndValidate(w, r, &event) {
		return
	}

	h.publisher.PublishEvent(r.Context(), event)

	w.WriteHeader(http.StatusAccepted)
}
