package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitumen-hub/catalog-assistant/internal/huberrors"
	"github.com/bitumen-hub/catalog-assistant/internal/models"
	"github.com/bitumen-hub/catalog-assistant/internal/querynorm"
	"github.com/bitumen-hub/catalog-assistant/internal/testutil/pgtest"
)

func TestLedgerRepository_Integration(t *testing.T) {
	pool, _ := pgtest.NewPool(t)
	repo := NewLedgerRepository(pool)
	ctx := context.Background()

	q := &models.UserQuery{UserID: 7, QueryText: "чем покрыть крышу?", QueryType: models.QueryTypeAIQuestion}
	require.NoError(t, repo.CreateQuery(ctx, q))
	require.NotEqual(t, uuid.Nil, q.ID)

	resp := &models.BotResponse{
		QueryID:       q.ID,
		ResponseText:  "Подойдёт мастика Т-65.",
		ResponseType:  models.ResponseTypeAIGenerated,
		ExecutionTime: 1.5,
		SourcesCount:  2,
	}
	require.NoError(t, repo.CreateResponse(ctx, resp))
	require.NoError(t, repo.SetMessageID(ctx, resp.ID, "chat-1:42"))

	t.Run("feedback resubmission updates in place", func(t *testing.T) {
		_, err := repo.UpsertFeedback(ctx, resp.ID, 7, models.FeedbackDislike, nil)
		require.NoError(t, err)

		_, err = repo.UpsertFeedback(ctx, resp.ID, 7, models.FeedbackDislike, nil)
		require.NoError(t, err)

		comment := "x"
		fb, err := repo.UpsertFeedback(ctx, resp.ID, 7, models.FeedbackLike, &comment)
		require.NoError(t, err)
		assert.Equal(t, models.FeedbackLike, fb.FeedbackType)

		var (
			count int
			kind  string
			saved *string
		)

		require.NoError(t, pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM user_feedback WHERE response_id = $1 AND user_id = $2`, resp.ID, int64(7),
		).Scan(&count))
		assert.Equal(t, 1, count)

		require.NoError(t, pool.QueryRow(ctx,
			`SELECT feedback_type, comment FROM user_feedback WHERE response_id = $1 AND user_id = $2`, resp.ID, int64(7),
		).Scan(&kind, &saved))
		assert.Equal(t, "like", kind)
		require.NotNil(t, saved)
		assert.Equal(t, "x", *saved)
	})

	t.Run("message id lookup", func(t *testing.T) {
		id, err := repo.FindResponseIDByMessageID(ctx, "chat-1:42")
		require.NoError(t, err)
		assert.Equal(t, resp.ID, id)

		_, err = repo.FindResponseIDByMessageID(ctx, "missing")
		require.ErrorIs(t, err, huberrors.ErrNotFound)
	})

	t.Run("feedback for unknown response", func(t *testing.T) {
		_, err := repo.UpsertFeedback(ctx, uuid.New(), 7, models.FeedbackLike, nil)
		require.ErrorIs(t, err, huberrors.ErrNotFound)
	})

	t.Run("stats and dislikes", func(t *testing.T) {
		_, err := repo.UpsertFeedback(ctx, resp.ID, 8, models.FeedbackDislike, nil)
		require.NoError(t, err)

		stats, err := repo.Stats(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.TotalQueries)
		assert.Equal(t, int64(1), stats.Likes)
		assert.Equal(t, int64(1), stats.Dislikes)
		assert.InDelta(t, 0.5, stats.SatisfactionRate, 1e-9)
		assert.Equal(t, int64(1), stats.ResponsesByType[models.ResponseTypeAIGenerated])

		dislikes, err := repo.RecentDislikes(ctx, 10)
		require.NoError(t, err)
		require.Len(t, dislikes, 1)
		assert.Equal(t, resp.ID, dislikes[0].ResponseID)
		assert.Equal(t, "чем покрыть крышу?", dislikes[0].QueryText)
		assert.Equal(t, int64(8), dislikes[0].UserID)
	})
}

func TestProductsRepository_Integration(t *testing.T) {
	pool, _ := pgtest.NewPool(t)
	repo := NewProductsRepository(pool)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `
		INSERT INTO categories (id, name) VALUES (1, 'Мастики');
		INSERT INTO products (id, name, category_id, description, is_deleted) VALUES
			(1, 'Мастика битумная Т-65', 1, 'Для кровли', FALSE),
			(2, 'Мастика гидроизоляционная', 1, '', FALSE),
			(3, 'Мастика старая Т-65', 1, '', TRUE),
			(4, 'Праймер 100%', NULL, '', FALSE),
			(5, 'Мастика Ёлочка', 1, '', FALSE),
			(6, 'Bitumen Crème', NULL, '', FALSE);
		INSERT INTO product_files (product_id, file_path, original_name) VALUES (1, '/files/t65.txt', 't65.txt');
	`)
	require.NoError(t, err)

	t.Run("and semantics over active products", func(t *testing.T) {
		got, err := repo.FindByNameTerms(ctx, []string{"мастика", "т-65"}, 20)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(1), got[0].ID)
		assert.Equal(t, "Мастики", got[0].CategoryName)
	})

	t.Run("id order and limit", func(t *testing.T) {
		got, err := repo.FindByNameTerms(ctx, []string{"мастика"}, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(1), got[0].ID)
	})

	t.Run("literal percent", func(t *testing.T) {
		got, err := repo.FindByNameTerms(ctx, []string{"100%"}, 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(4), got[0].ID)
	})

	t.Run("names are folded like queries", func(t *testing.T) {
		for id, name := range map[int64]string{5: "Мастика Ёлочка", 6: "Bitumen Crème"} {
			got, err := repo.FindByNameTerms(ctx, strings.Fields(querynorm.Basic(name)), 20)
			require.NoError(t, err)
			require.Len(t, got, 1, name)
			assert.Equal(t, id, got[0].ID)
			assert.Equal(t, name, got[0].Name)
		}
	})

	t.Run("get with files", func(t *testing.T) {
		p, err := repo.GetByID(ctx, 1)
		require.NoError(t, err)
		require.Len(t, p.Files, 1)
		assert.Equal(t, "/files/t65.txt", p.Files[0].FilePath)

		_, err = repo.GetByID(ctx, 999)
		require.ErrorIs(t, err, huberrors.ErrNotFound)
	})

	t.Run("active ids", func(t *testing.T) {
		ids, err := repo.ListActiveIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 4, 5, 6}, ids)
	})
}
