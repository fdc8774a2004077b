package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bitumen-hub/catalog-assistant/internal/api/response"
	"github.com/bitumen-hub/catalog-assistant/internal/api/validation"
	"github.com/bitumen-hub/catalog-assistant/internal/models"
)

// FeedbackLedger is the ledger surface the feedback endpoints need.
type FeedbackLedger interface {
	AttachMessageID(ctx context.Context, responseID uuid.UUID, messageID string) error
	AddFeedback(
		ctx context.Context, responseID uuid.UUID, userID int64, kind models.FeedbackType, comment *string,
	) (*models.UserFeedback, error)
	AddFeedbackByMessageID(
		ctx context.Context, messageID string, userID int64, kind models.FeedbackType, comment *string,
	) (*models.UserFeedback, error)
	Stats(ctx context.Context, since time.Time) (*models.FeedbackStats, error)
	RecentDislikes(ctx context.Context, limit int) ([]models.DislikedResponse, error)
}

// FeedbackHandler handles like/dislike submission and review endpoints.
type FeedbackHandler struct {
	ledger FeedbackLedger
}

// NewFeedbackHandler creates a new feedback handler.
func NewFeedbackHandler(ledger FeedbackLedger) *FeedbackHandler {
	return &FeedbackHandler{ledger: ledger}
}

// AttachMessageRequest is the body for PATCH /v1/responses/{id}/message.
type AttachMessageRequest struct {
	MessageID string `json:"message_id" validate:"required,max=255,no_null_bytes"`
}

// FeedbackRequest is the body for POST /v1/feedback. Exactly one of response_id and
// message_id identifies the answer.
type FeedbackRequest struct {
	ResponseID   *uuid.UUID `json:"response_id,omitempty" validate:"required_without=MessageID"`
	MessageID    *string    `json:"message_id,omitempty"  validate:"required_without=ResponseID"`
	UserID       int64      `json:"user_id"               validate:"required,gt=0"`
	FeedbackType string     `json:"feedback_type"         validate:"required,feedback_type"`
	Comment      *string    `json:"comment,omitempty"     validate:"omitempty,max=2000,no_null_bytes"`
}

// StatsQuery holds query parameters for GET /v1/feedback/stats.
type StatsQuery struct {
	Since *time.Time `form:"since"`
}

// DislikesQuery holds query parameters for GET /v1/feedback/dislikes.
type DislikesQuery struct {
	Limit int `form:"limit" validate:"omitempty,gte=1,lte=100"`
}

// AttachMessage handles PATCH /v1/responses/{id}/message.
func (h *FeedbackHandler) AttachMessage(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		response.RespondBadRequest(w, "Invalid response ID")

		return
	}

	var req AttachMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.ledger.AttachMessageID(r.Context(), id, req.MessageID); err != nil {
		respondServiceError(w, r, err, "attach message id")

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Submit handles POST /v1/feedback. Resubmitting replaces the user's earlier feedback.
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if req.ResponseID != nil && req.MessageID != nil {
		response.RespondBadRequest(w, "Provide either response_id or message_id, not both")

		return
	}

	kind := models.FeedbackType(req.FeedbackType)

	var (
		fb  *models.UserFeedback
		err error
	)

	if req.ResponseID != nil {
		fb, err = h.ledger.AddFeedback(r.Context(), *req.ResponseID, req.UserID, kind, req.Comment)
	} else {
		fb, err = h.ledger.AddFeedbackByMessageID(r.Context(), *req.MessageID, req.UserID, kind, req.Comment)
	}

	if err != nil {
		respondServiceError(w, r, err, "add feedback")

		return
	}

	response.RespondJSON(w, http.StatusOK, fb)
}

// Stats handles GET /v1/feedback/stats.
func (h *FeedbackHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var q StatsQuery
	if err := validation.ValidateAndDecodeQueryParams(r, &q); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	var since time.Time
	if q.Since != nil {
		since = *q.Since
	}

	stats, err := h.ledger.Stats(r.Context(), since)
	if err != nil {
		respondServiceError(w, r, err, "feedback stats")

		return
	}

	response.RespondJSON(w, http.StatusOK, stats)
}

// Dislikes handles GET /v1/feedback/dislikes.
func (h *FeedbackHandler) Dislikes(w http.ResponseWriter, r *http.Request) {
	var q DislikesQuery
	if err := validation.ValidateAndDecodeQueryParams(r, &q); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	items, err := h.ledger.RecentDislikes(r.Context(), q.Limit)
	if err != nil {
		respondServiceError(w, r, err, "recent dislikes")

		return
	}

	if items == nil {
		items = []models.DislikedResponse{}
	}

	response.RespondJSON(w, http.StatusOK, map[string]any{"data": items})
}
