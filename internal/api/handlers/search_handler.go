package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bitumen-hub/catalog-assistant/internal/api/response"
	"github.com/bitumen-hub/catalog-assistant/internal/models"
)

// HybridSearcher runs lexical then semantic product search.
type HybridSearcher interface {
	Search(ctx context.Context, query string) (models.HybridResult, error)
}

// SearchLedger records inbound queries and the result lists shown for them.
type SearchLedger interface {
	LogQuery(
		ctx context.Context, userID int64, username *string, text string, queryType models.QueryType,
	) (*models.UserQuery, error)
	LogResponse(ctx context.Context, resp *models.BotResponse) error
}

// SearchHandler handles product search requests.
type SearchHandler struct {
	search HybridSearcher
	ledger SearchLedger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(search HybridSearcher, ledger SearchLedger) *SearchHandler {
	return &SearchHandler{search: search, ledger: ledger}
}

// SearchRequest is the body for POST /v1/search.
type SearchRequest struct {
	UserID   int64   `json:"user_id"            validate:"required,gt=0"`
	Username *string `json:"username,omitempty" validate:"omitempty,max=255,no_null_bytes"`
	Query    string  `json:"query"              validate:"required,max=500,no_null_bytes"`

	// MessageID is the transport message that will show the results, for feedback lookup.
	MessageID *string `json:"message_id,omitempty" validate:"omitempty,max=255,no_null_bytes"`
}

// SearchResponse is the hybrid result plus the ledger ids of the query and of the logged result list.
type SearchResponse struct {
	models.HybridResult

	QueryID    *uuid.UUID `json:"query_id,omitempty"`
	ResponseID *uuid.UUID `json:"response_id,omitempty"`
}

// Search handles POST /v1/search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	start := time.Now()
	out := SearchResponse{}

	// A ledger outage must not block search.
	if q, err := h.ledger.LogQuery(r.Context(), req.UserID, req.Username, req.Query, models.QueryTypeSearch); err == nil {
		out.QueryID = &q.ID
	} else {
		slog.WarnContext(r.Context(), "search: query not logged", "error", err)
	}

	res, err := h.search.Search(r.Context(), req.Query)
	if err != nil {
		respondServiceError(w, r, err, "search")

		return
	}

	out.HybridResult = res

	if out.QueryID != nil {
		resp := &models.BotResponse{
			QueryID:       *out.QueryID,
			ResponseText:  resultListText(res.Products),
			ResponseType:  models.ResponseTypeSearchResults,
			ExecutionTime: time.Since(start).Seconds(),
			SourcesCount:  len(res.Products),
			MessageID:     req.MessageID,
		}

		if err := h.ledger.LogResponse(r.Context(), resp); err == nil {
			out.ResponseID = &resp.ID
		} else {
			slog.WarnContext(r.Context(), "search: response not logged", "error", err)
		}
	}

	response.RespondJSON(w, http.StatusOK, out)
}

// resultListText is the ledger text of a result list: one product name per line.
func resultListText(hits []models.ProductHit) string {
	names := make([]string, len(hits))
	for i, hit := range hits {
		names[i] = hit.Name
	}

	return strings.Join(names, "\n")
}
