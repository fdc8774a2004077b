package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitumen-hub/catalog-assistant/internal/models"
)

const testDims = 4

func record(id string, productID int64, filePath string, vec ...float32) models.ChunkRecord {
	return models.ChunkRecord{
		ID:       id,
		Vector:   vec,
		Document: "doc " + id,
		Metadata: models.ChunkMetadata{ProductID: productID, ProductName: "p", FilePath: filePath},
	}
}

// runStoreContract exercises behaviour every Store implementation must share.
// newStore must return an uninitialized store with testDims dimensions and an empty partition.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()

	ctx := context.Background()

	t.Run("operations before Init fail", func(t *testing.T) {
		s := newStore(t)

		require.ErrorIs(t, s.Upsert(ctx, []models.ChunkRecord{record("a", 1, "", 1, 0, 0, 0)}), ErrNotInitialized)

		_, err := s.Query(ctx, []float32{1, 0, 0, 0}, 1)
		require.ErrorIs(t, err, ErrNotInitialized)
		require.ErrorIs(t, s.Delete(ctx, []string{"a"}), ErrNotInitialized)
		require.ErrorIs(t, s.DeleteWhere(ctx, Where{ProductID: 1}), ErrNotInitialized)

		_, err = s.Get(ctx, Where{})
		require.ErrorIs(t, err, ErrNotInitialized)

		_, err = s.Count(ctx)
		require.ErrorIs(t, err, ErrNotInitialized)
	})

	t.Run("round trip returns the same id", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Init(ctx))

		v := []float32{0.12, -0.5, 0.33, 0.9}
		require.NoError(t, s.Upsert(ctx, []models.ChunkRecord{
			record("product_42_0", 42, "", v...),
			record("product_7_0", 7, "", -0.9, 0.1, 0.2, -0.3),
		}))

		got, err := s.Query(ctx, v, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "product_42_0", got[0].ID)
		assert.GreaterOrEqual(t, got[0].Similarity(), 0.999)
		assert.Equal(t, int64(42), got[0].Metadata.ProductID)
		assert.Equal(t, "doc product_42_0", got[0].Document)
	})

	t.Run("query orders by ascending distance", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Init(ctx))
		require.NoError(t, s.Upsert(ctx, []models.ChunkRecord{
			record("far", 1, "", 0, 0, 0, 1),
			record("near", 1, "", 1, 0.1, 0, 0),
			record("mid", 1, "", 1, 1, 0, 0),
		}))

		got, err := s.Query(ctx, []float32{1, 0, 0, 0}, 10)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"near", "mid", "far"}, []string{got[0].ID, got[1].ID, got[2].ID})
		assert.LessOrEqual(t, got[0].Distance, got[1].Distance)
		assert.LessOrEqual(t, got[1].Distance, got[2].Distance)
	})

	t.Run("upsert overwrites by id", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Init(ctx))
		require.NoError(t, s.Upsert(ctx, []models.ChunkRecord{record("a", 1, "", 1, 0, 0, 0)}))

		updated := record("a", 2, "", 0, 1, 0, 0)
		updated.Document = "new text"
		require.NoError(t, s.Upsert(ctx, []models.ChunkRecord{updated}))

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		res, err := s.Get(ctx, Where{ProductID: 2})
		require.NoError(t, err)
		require.Equal(t, 1, res.Len())
		assert.Equal(t, "new text", res.Documents[0])
	})

	t.Run("delete where product removes all and only its chunks", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Init(ctx))
		require.NoError(t, s.Upsert(ctx, []models.ChunkRecord{
			record("product_1_0", 1, "", 1, 0, 0, 0),
			record("product_1_1", 1, "", 0, 1, 0, 0),
			record("product_1_file_aaaa_0", 1, "/f/a.txt", 0, 0, 1, 0),
			record("product_2_0", 2, "", 0, 0, 0, 1),
		}))

		require.NoError(t, s.DeleteWhere(ctx, Where{ProductID: 1}))

		gone, err := s.Get(ctx, Where{ProductID: 1})
		require.NoError(t, err)
		assert.Zero(t, gone.Len())

		kept, err := s.Get(ctx, Where{ProductID: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"product_2_0"}, kept.IDs)
	})

	t.Run("delete where file path", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Init(ctx))
		require.NoError(t, s.Upsert(ctx, []models.ChunkRecord{
			record("product_1_0", 1, "", 1, 0, 0, 0),
			record("product_1_file_aaaa_0", 1, "/f/a.txt", 0, 0, 1, 0),
			record("product_1_file_bbbb_0", 1, "/f/b.txt", 0, 1, 1, 0),
		}))

		require.NoError(t, s.DeleteWhere(ctx, Where{FilePath: "/f/a.txt"}))

		res, err := s.Get(ctx, Where{ProductID: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"product_1_0", "product_1_file_bbbb_0"}, res.IDs)
	})

	t.Run("delete where rejects empty filter", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Init(ctx))
		require.ErrorIs(t, s.DeleteWhere(ctx, Where{}), ErrEmptyFilter)
	})

	t.Run("delete by id", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Init(ctx))
		require.NoError(t, s.Upsert(ctx, []models.ChunkRecord{
			record("a", 1, "", 1, 0, 0, 0),
			record("b", 1, "", 0, 1, 0, 0),
		}))

		require.NoError(t, s.Delete(ctx, []string{"a", "missing"}))

		res, err := s.Get(ctx, Where{})
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, res.IDs)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Init(ctx))
		require.ErrorIs(t, s.Upsert(ctx, []models.ChunkRecord{record("a", 1, "", 1, 0)}), ErrDimensionMismatch)
	})

	t.Run("empty partition query", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Init(ctx))

		got, err := s.Query(ctx, []float32{1, 0, 0, 0}, 5)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
