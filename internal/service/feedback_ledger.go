package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bitumen-hub/catalog-assistant/internal/huberrors"
	"github.com/bitumen-hub/catalog-assistant/internal/models"
	"github.com/bitumen-hub/catalog-assistant/internal/observability"
)

const (
	defaultStatsWindow    = 30 * 24 * time.Hour
	defaultDislikesLimit  = 20
	maxDislikesLimit      = 100
	maxFeedbackCommentLen = 2000
)

// LedgerRepository is the persistence the feedback ledger needs.
type LedgerRepository interface {
	CreateQuery(ctx context.Context, q *models.UserQuery) error
	CreateResponse(ctx context.Context, resp *models.BotResponse) error
	SetMessageID(ctx context.Context, responseID uuid.UUID, messageID string) error
	FindResponseIDByMessageID(ctx context.Context, messageID string) (uuid.UUID, error)
	UpsertFeedback(
		ctx context.Context, responseID uuid.UUID, userID int64, kind models.FeedbackType, comment *string,
	) (*models.UserFeedback, error)
	Stats(ctx context.Context, since time.Time) (*models.FeedbackStats, error)
	RecentDislikes(ctx context.Context, limit int) ([]models.DislikedResponse, error)
}

// FeedbackLedger records queries, responses, and user feedback.
type FeedbackLedger struct {
	repo    LedgerRepository
	metrics observability.RAGMetrics
	logger  *slog.Logger
}

// NewFeedbackLedger creates a FeedbackLedger. metrics may be nil when metrics are disabled.
func NewFeedbackLedger(repo LedgerRepository, metrics observability.RAGMetrics, logger *slog.Logger) *FeedbackLedger {
	if logger == nil {
		logger = slog.Default()
	}

	return &FeedbackLedger{repo: repo, metrics: metrics, logger: logger}
}

// LogQuery records one inbound user query.
func (l *FeedbackLedger) LogQuery(
	ctx context.Context, userID int64, username *string, text string, queryType models.QueryType,
) (*models.UserQuery, error) {
	q := &models.UserQuery{UserID: userID, Username: username, QueryText: text, QueryType: queryType}

	if err := l.repo.CreateQuery(ctx, q); err != nil {
		l.failed(ctx, "log_query", err)

		return nil, fmt.Errorf("log query: %w", err)
	}

	return q, nil
}

// LogResponse records one answer to a logged query.
func (l *FeedbackLedger) LogResponse(ctx context.Context, resp *models.BotResponse) error {
	if err := l.repo.CreateResponse(ctx, resp); err != nil {
		l.failed(ctx, "log_response", err)

		return fmt.Errorf("log response: %w", err)
	}

	return nil
}

// AttachMessageID links a recorded response to the transport message that displays it.
func (l *FeedbackLedger) AttachMessageID(ctx context.Context, responseID uuid.UUID, messageID string) error {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return huberrors.NewValidationError("message_id", "message_id is required")
	}

	if err := l.repo.SetMessageID(ctx, responseID, messageID); err != nil {
		return fmt.Errorf("attach message id: %w", err)
	}

	return nil
}

// AddFeedback stores or replaces the user's like/dislike for a response.
func (l *FeedbackLedger) AddFeedback(
	ctx context.Context, responseID uuid.UUID, userID int64, kind models.FeedbackType, comment *string,
) (*models.UserFeedback, error) {
	if _, err := models.ParseFeedbackType(string(kind)); err != nil {
		return nil, err
	}

	if comment != nil {
		trimmed := strings.TrimSpace(*comment)
		if len([]rune(trimmed)) > maxFeedbackCommentLen {
			return nil, huberrors.NewValidationError("comment", "comment is too long")
		}

		if trimmed == "" {
			comment = nil
		} else {
			comment = &trimmed
		}
	}

	fb, err := l.repo.UpsertFeedback(ctx, responseID, userID, kind, comment)
	if err != nil {
		l.failed(ctx, "feedback", err)

		return nil, fmt.Errorf("add feedback: %w", err)
	}

	l.logger.InfoContext(ctx, "feedback recorded",
		"response_id", responseID,
		"user_id", userID,
		"feedback_type", string(kind),
	)

	return fb, nil
}

// AddFeedbackByMessageID resolves the response carried by a transport message and records feedback on it.
func (l *FeedbackLedger) AddFeedbackByMessageID(
	ctx context.Context, messageID string, userID int64, kind models.FeedbackType, comment *string,
) (*models.UserFeedback, error) {
	responseID, err := l.repo.FindResponseIDByMessageID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("resolve message: %w", err)
	}

	return l.AddFeedback(ctx, responseID, userID, kind, comment)
}

// Stats aggregates the ledger since the given time. A zero since means the last 30 days.
func (l *FeedbackLedger) Stats(ctx context.Context, since time.Time) (*models.FeedbackStats, error) {
	if since.IsZero() {
		since = time.Now().Add(-defaultStatsWindow)
	}

	stats, err := l.repo.Stats(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("feedback stats: %w", err)
	}

	return stats, nil
}

// RecentDislikes returns the newest disliked answers. limit is clamped to [1, 100]; 0 means 20.
func (l *FeedbackLedger) RecentDislikes(ctx context.Context, limit int) ([]models.DislikedResponse, error) {
	switch {
	case limit <= 0:
		limit = defaultDislikesLimit
	case limit > maxDislikesLimit:
		limit = maxDislikesLimit
	}

	items, err := l.repo.RecentDislikes(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent dislikes: %w", err)
	}

	return items, nil
}

// failed records a ledger write error. Missing parents are caller errors and are not counted.
func (l *FeedbackLedger) failed(ctx context.Context, op string, err error) {
	if errors.Is(err, huberrors.ErrNotFound) {
		return
	}

	if l.metrics != nil {
		l.metrics.RecordLedgerError(ctx, op)
	}

	l.logger.ErrorContext(ctx, "ledger write failed", "operation", op, "error", err)
}
