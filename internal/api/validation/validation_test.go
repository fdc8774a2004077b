package validation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitumen-hub/catalog-assistant/internal/api/response"
)

type feedbackBody struct {
	UserID  int64   `json:"user_id"           validate:"required,gt=0"`
	Kind    string  `json:"feedback_type"     validate:"required,feedback_type"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=10,no_null_bytes"`
}

type statsQuery struct {
	Since *time.Time `form:"since"`
	Limit int        `form:"limit" validate:"omitempty,gte=1,lte=100"`
}

func strPtr(s string) *string { return &s }

func TestValidateStruct(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, ValidateStruct(feedbackBody{UserID: 1, Kind: "like"}))
	})

	t.Run("reports json field names", func(t *testing.T) {
		err := ValidateStruct(feedbackBody{Kind: "meh"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "user_id is required")
		assert.Contains(t, err.Error(), "feedback_type must be one of: like, dislike")
	})

	t.Run("null bytes", func(t *testing.T) {
		err := ValidateStruct(feedbackBody{UserID: 1, Kind: "dislike", Comment: strPtr("a\x00b")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "comment must not contain NULL bytes")
	})

	t.Run("nil pointer passes", func(t *testing.T) {
		require.NoError(t, ValidateStruct(feedbackBody{UserID: 1, Kind: "dislike"}))
	})
}

func TestRespondValidationError(t *testing.T) {
	err := ValidateStruct(feedbackBody{UserID: 1, Kind: "like", Comment: strPtr("far too long comment")})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	RespondValidationError(rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var problem response.ProblemDetails
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "comment", problem.Errors[0].Location)
	assert.Equal(t, "comment must be at most 10", problem.Errors[0].Message)
}

func TestValidateAndDecodeQueryParams(t *testing.T) {
	t.Run("decodes time and int", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?since=2026-01-02T03:04:05Z&limit=5", nil)

		var q statsQuery
		require.NoError(t, ValidateAndDecodeQueryParams(req, &q))
		require.NotNil(t, q.Since)
		assert.Equal(t, 2026, q.Since.Year())
		assert.Equal(t, 5, q.Limit)
	})

	t.Run("empty query", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		var q statsQuery
		require.NoError(t, ValidateAndDecodeQueryParams(req, &q))
		assert.Nil(t, q.Since)
		assert.Zero(t, q.Limit)
	})

	t.Run("bad date", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?since=yesterday", nil)

		var q statsQuery
		require.Error(t, ValidateAndDecodeQueryParams(req, &q))
	})

	t.Run("limit out of range", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)

		var q statsQuery
		err := ValidateAndDecodeQueryParams(req, &q)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "limit must be less than or equal to 100")
	})
}
