package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bitumen-hub/catalog-assistant/internal/huberrors"
	"github.com/bitumen-hub/catalog-assistant/internal/models"
)

// LedgerRepository persists queries, responses, and feedback. Rows are never deleted here.
type LedgerRepository struct {
	db *pgxpool.Pool
}

// NewLedgerRepository creates a new ledger repository.
func NewLedgerRepository(db *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// CreateQuery inserts q, assigning ID when zero and setting CreatedAt from the database.
func (r *LedgerRepository) CreateQuery(ctx context.Context, q *models.UserQuery) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.Must(uuid.NewV7())
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO user_queries (id, user_id, username, query_text, query_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		q.ID, q.UserID, q.Username, q.QueryText, string(q.QueryType),
	).Scan(&q.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user query: %w", err)
	}

	return nil
}

// CreateResponse inserts resp, assigning ID when zero. The owning query must exist.
func (r *LedgerRepository) CreateResponse(ctx context.Context, resp *models.BotResponse) error {
	if resp.ID == uuid.Nil {
		resp.ID = uuid.Must(uuid.NewV7())
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO bot_responses (id, query_id, response_text, response_type, execution_time, sources_count, message_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		resp.ID, resp.QueryID, resp.ResponseText, string(resp.ResponseType),
		resp.ExecutionTime, resp.SourcesCount, resp.MessageID,
	).Scan(&resp.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return huberrors.NewNotFoundError("query", "user query not found")
		}

		return fmt.Errorf("failed to create bot response: %w", err)
	}

	return nil
}

// SetMessageID records the transport message that carries a response.
func (r *LedgerRepository) SetMessageID(ctx context.Context, responseID uuid.UUID, messageID string) error {
	tag, err := r.db.Exec(ctx, `UPDATE bot_responses SET message_id = $2 WHERE id = $1`, responseID, messageID)
	if err != nil {
		return fmt.Errorf("failed to set message id: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return huberrors.NewNotFoundError("response", "bot response not found")
	}

	return nil
}

// FindResponseIDByMessageID returns the most recent response carried by messageID.
func (r *LedgerRepository) FindResponseIDByMessageID(ctx context.Context, messageID string) (uuid.UUID, error) {
	var id uuid.UUID

	err := r.db.QueryRow(ctx, `
		SELECT id FROM bot_responses
		WHERE message_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, messageID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, huberrors.NewNotFoundError("response", "no response for message")
		}

		return uuid.Nil, fmt.Errorf("failed to find response by message id: %w", err)
	}

	return id, nil
}

// UpsertFeedback stores one feedback row per (response, user). A repeat submission updates
// kind, comment, and updated_at in place.
func (r *LedgerRepository) UpsertFeedback(
	ctx context.Context, responseID uuid.UUID, userID int64, kind models.FeedbackType, comment *string,
) (*models.UserFeedback, error) {
	fb := models.UserFeedback{ResponseID: responseID, UserID: userID, FeedbackType: kind, Comment: comment}

	err := r.db.QueryRow(ctx, `
		INSERT INTO user_feedback (id, response_id, user_id, feedback_type, comment)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (response_id, user_id) DO UPDATE
		SET feedback_type = EXCLUDED.feedback_type, comment = EXCLUDED.comment, updated_at = now()
		RETURNING id, created_at, updated_at`,
		uuid.Must(uuid.NewV7()), responseID, userID, string(kind), comment,
	).Scan(&fb.ID, &fb.CreatedAt, &fb.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, huberrors.NewNotFoundError("response", "bot response not found")
		}

		return nil, fmt.Errorf("failed to upsert feedback: %w", err)
	}

	return &fb, nil
}

// Stats aggregates ledger rows created at or after since.
func (r *LedgerRepository) Stats(ctx context.Context, since time.Time) (*models.FeedbackStats, error) {
	stats := &models.FeedbackStats{Since: since, ResponsesByType: map[models.ResponseType]int64{}}

	err := r.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM user_queries WHERE created_at >= $1),
			(SELECT COUNT(*) FROM user_feedback WHERE updated_at >= $1 AND feedback_type = 'like'),
			(SELECT COUNT(*) FROM user_feedback WHERE updated_at >= $1 AND feedback_type = 'dislike'),
			(SELECT COALESCE(AVG(execution_time), 0) FROM bot_responses WHERE created_at >= $1)`,
		since,
	).Scan(&stats.TotalQueries, &stats.Likes, &stats.Dislikes, &stats.AvgExecutionTimeS)
	if err != nil {
		return nil, fmt.Errorf("failed to compute feedback stats: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT response_type, COUNT(*)
		FROM bot_responses
		WHERE created_at >= $1
		GROUP BY response_type`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count responses by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind  string
			count int64
		)

		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan response count: %w", err)
		}

		stats.ResponsesByType[models.ResponseType(kind)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating response counts: %w", err)
	}

	stats.SatisfactionRate = satisfactionRate(stats.Likes, stats.Dislikes)

	return stats, nil
}

// RecentDislikes returns the latest disliked responses with their questions, newest first.
func (r *LedgerRepository) RecentDislikes(ctx context.Context, limit int) ([]models.DislikedResponse, error) {
	rows, err := r.db.Query(ctx, `
		SELECT b.id, q.query_text, b.response_text, f.comment, f.user_id, f.updated_at
		FROM user_feedback f
		JOIN bot_responses b ON b.id = f.response_id
		JOIN user_queries q ON q.id = b.query_id
		WHERE f.feedback_type = 'dislike'
		ORDER BY f.updated_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dislikes: %w", err)
	}
	defer rows.Close()

	var out []models.DislikedResponse

	for rows.Next() {
		var d models.DislikedResponse
		if err := rows.Scan(&d.ResponseID, &d.QueryText, &d.ResponseText, &d.Comment, &d.UserID, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dislike: %w", err)
		}

		out = append(out, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dislikes: %w", err)
	}

	return out, nil
}

// satisfactionRate is likes over rated responses, 0 when nothing was rated.
func satisfactionRate(likes, dislikes int64) float64 {
	total := likes + dislikes
	if total == 0 {
		return 0
	}

	return float64(likes) / float64(total)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
