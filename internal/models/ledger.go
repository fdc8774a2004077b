package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bitumen-hub/catalog-assistant/internal/huberrors"
)

// QueryType classifies an inbound user query.
type QueryType string

// Query types.
const (
	QueryTypeSearch      QueryType = "search"
	QueryTypeAIQuestion  QueryType = "ai_question"
	QueryTypeProductView QueryType = "product_view"
)

// ResponseType classifies a recorded bot response.
type ResponseType string

// Response types.
const (
	ResponseTypeAIGenerated   ResponseType = "ai_generated"
	ResponseTypeSearchResults ResponseType = "search_results"
	ResponseTypeProductInfo   ResponseType = "product_info"
	ResponseTypeError         ResponseType = "error"
)

// FeedbackType is a like or a dislike.
type FeedbackType string

// Feedback types.
const (
	FeedbackLike    FeedbackType = "like"
	FeedbackDislike FeedbackType = "dislike"
)

// ParseFeedbackType validates a feedback kind string.
func ParseFeedbackType(s string) (FeedbackType, error) {
	switch FeedbackType(s) {
	case FeedbackLike, FeedbackDislike:
		return FeedbackType(s), nil
	default:
		return "", huberrors.NewValidationError("feedback_type", "feedback_type must be one of: like, dislike")
	}
}

// UserQuery is created once per inbound question.
type UserQuery struct {
	ID        uuid.UUID `json:"id"`
	UserID    int64     `json:"user_id"`
	Username  *string   `json:"username,omitempty"`
	QueryText string    `json:"query_text"`
	QueryType QueryType `json:"query_type"`
	CreatedAt time.Time `json:"created_at"`
}

// BotResponse is one recorded answer. MessageID is the transport message that carries it
// and is the key feedback correlates on.
type BotResponse struct {
	ID            uuid.UUID    `json:"id"`
	QueryID       uuid.UUID    `json:"query_id"`
	ResponseText  string       `json:"response_text"`
	ResponseType  ResponseType `json:"response_type"`
	ExecutionTime float64      `json:"execution_time"`
	SourcesCount  int          `json:"sources_count"`
	MessageID     *string      `json:"message_id,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// UserFeedback is at most one row per (response, user); resubmission updates it in place.
type UserFeedback struct {
	ID           uuid.UUID    `json:"id"`
	ResponseID   uuid.UUID    `json:"response_id"`
	UserID       int64        `json:"user_id"`
	FeedbackType FeedbackType `json:"feedback_type"`
	Comment      *string      `json:"comment,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// FeedbackStats aggregates ledger rows for quality review.
type FeedbackStats struct {
	Since             time.Time              `json:"since"`
	TotalQueries      int64                  `json:"total_queries"`
	Likes             int64                  `json:"likes"`
	Dislikes          int64                  `json:"dislikes"`
	SatisfactionRate  float64                `json:"satisfaction_rate"`
	ResponsesByType   map[ResponseType]int64 `json:"responses_by_type"`
	AvgExecutionTimeS float64                `json:"avg_execution_time_s"`
}

// DislikedResponse pairs a disliked answer with its question for review.
type DislikedResponse struct {
	ResponseID   uuid.UUID `json:"response_id"`
	QueryText    string    `json:"query_text"`
	ResponseText string    `json:"response_text"`
	Comment      *string   `json:"comment,omitempty"`
	UserID       int64     `json:"user_id"`
	UpdatedAt    time.Time `json:"updated_at"`
}
