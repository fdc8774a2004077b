package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitumen-hub/catalog-assistant/internal/chunker"
	"github.com/bitumen-hub/catalog-assistant/internal/models"
	"github.com/bitumen-hub/catalog-assistant/internal/vectorstore"
	"github.com/bitumen-hub/catalog-assistant/pkg/embeddings"
)

const testDims = 64

type indexerFixture struct {
	store    *vectorstore.MemoryStore
	products *mockProductReader
	indexer  *ProductIndexer
}

func newIndexerFixture(t *testing.T, embedder EmbeddingClient, files map[string]string) *indexerFixture {
	t.Helper()

	store := vectorstore.NewMemoryStore(testDims)
	require.NoError(t, store.Init(context.Background()))

	if embedder == nil {
		embedder = embeddings.NewHashingClient(testDims)
	}

	products := &mockProductReader{products: map[int64]*models.Product{}}

	indexer := NewProductIndexer(ProductIndexerParams{
		Products: products,
		Store:    store,
		Embedder: embedder,
		Chunker:  chunker.New(chunker.WithChunkSize(5), chunker.WithOverlap(1)),
		ReadFile: func(path string) (string, error) {
			text, ok := files[path]
			if !ok {
				return "", os.ErrNotExist
			}

			return text, nil
		},
	})

	return &indexerFixture{store: store, products: products, indexer: indexer}
}

func (f *indexerFixture) chunkIDs(t *testing.T, where vectorstore.Where) []string {
	t.Helper()

	res, err := f.store.Get(context.Background(), where)
	require.NoError(t, err)

	return res.IDs
}

func TestProductIndexer_IndexProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("indexes description chunks with metadata", func(t *testing.T) {
		f := newIndexerFixture(t, nil, nil)
		f.products.products[42] = &models.Product{
			ID:           42,
			Name:         "Bitumen Mastic T-65",
			CategoryName: "Мастики",
			Description:  "Холодная битумная мастика для гидроизоляции кровли",
		}

		res, err := f.indexer.IndexProduct(ctx, 42)
		require.NoError(t, err)
		assert.Positive(t, res.Chunks)
		assert.Zero(t, res.Skipped)

		got, err := f.store.Get(ctx, vectorstore.Where{ProductID: 42})
		require.NoError(t, err)
		require.Equal(t, res.Chunks, got.Len())
		assert.Equal(t, "product_42_0", got.IDs[0])
		assert.Equal(t, "Bitumen Mastic T-65", got.Metadatas[0].ProductName)
		assert.Equal(t, int64(42), got.Metadatas[0].ProductID)
		assert.Contains(t, got.Documents[0], "Bitumen")
	})

	t.Run("reindex leaves no stale chunks", func(t *testing.T) {
		f := newIndexerFixture(t, nil, nil)
		f.products.products[42] = &models.Product{
			ID:          42,
			Name:        "Bitumen Mastic T-65",
			Description: "один два три четыре пять шесть семь восемь девять",
		}

		res, err := f.indexer.IndexProduct(ctx, 42)
		require.NoError(t, err)
		require.Equal(t, 3, res.Chunks)

		f.products.products[42].Description = "короче"

		res, err = f.indexer.IndexProduct(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Chunks)
		assert.Equal(t, []string{"product_42_0"}, f.chunkIDs(t, vectorstore.Where{ProductID: 42}))
	})

	t.Run("soft-deleted product is removed", func(t *testing.T) {
		f := newIndexerFixture(t, nil, nil)
		f.products.products[42] = &models.Product{ID: 42, Name: "Bitumen Mastic T-65"}

		_, err := f.indexer.IndexProduct(ctx, 42)
		require.NoError(t, err)
		require.NotEmpty(t, f.chunkIDs(t, vectorstore.Where{ProductID: 42}))

		f.products.products[42].IsDeleted = true

		res, err := f.indexer.IndexProduct(ctx, 42)
		require.NoError(t, err)
		assert.True(t, res.Removed)
		assert.Empty(t, f.chunkIDs(t, vectorstore.Where{ProductID: 42}))
	})

	t.Run("missing product is removed", func(t *testing.T) {
		f := newIndexerFixture(t, nil, nil)
		require.NoError(t, f.store.Upsert(ctx, []models.ChunkRecord{{
			ID:       "product_9_0",
			Vector:   unitVector(testDims),
			Document: "old",
			Metadata: models.ChunkMetadata{ProductID: 9},
		}}))

		res, err := f.indexer.IndexProduct(ctx, 9)
		require.NoError(t, err)
		assert.True(t, res.Removed)
		assert.Empty(t, f.chunkIDs(t, vectorstore.Where{ProductID: 9}))
	})

	t.Run("other products are untouched", func(t *testing.T) {
		f := newIndexerFixture(t, nil, nil)
		f.products.products[1] = &models.Product{ID: 1, Name: "Праймер битумный"}
		f.products.products[2] = &models.Product{ID: 2, Name: "Мастика МБК-Г"}

		_, err := f.indexer.IndexProduct(ctx, 1)
		require.NoError(t, err)
		_, err = f.indexer.IndexProduct(ctx, 2)
		require.NoError(t, err)

		f.products.products[1].IsDeleted = true
		_, err = f.indexer.IndexProduct(ctx, 1)
		require.NoError(t, err)

		assert.NotEmpty(t, f.chunkIDs(t, vectorstore.Where{ProductID: 2}))
	})
}

func TestProductIndexer_SkipsFailedChunks(t *testing.T) {
	ctx := context.Background()
	hashing := embeddings.NewHashingClient(testDims)

	failing := &mockEmbeddingClient{createFunc: func(ctx context.Context, input string) ([]float32, error) {
		if strings.Contains(input, "СБОЙ") {
			return nil, errors.New("provider error")
		}

		return hashing.CreateEmbedding(ctx, input)
	}}

	t.Run("one failing chunk is skipped", func(t *testing.T) {
		f := newIndexerFixture(t, failing, nil)
		// Windows: [0,5) [4,9) [8,12); only the last contains the marker.
		f.products.products[42] = &models.Product{
			ID:          42,
			Name:        "Bitumen Mastic T-65",
			Description: "a b c d e f g h СБОЙ",
		}

		res, err := f.indexer.IndexProduct(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Chunks)
		assert.Equal(t, 1, res.Skipped)
		assert.Len(t, f.chunkIDs(t, vectorstore.Where{ProductID: 42}), 2)
	})

	t.Run("nothing embedded is an error", func(t *testing.T) {
		f := newIndexerFixture(t, failing, nil)
		f.products.products[42] = &models.Product{ID: 42, Name: "СБОЙ"}

		_, err := f.indexer.IndexProduct(ctx, 42)
		require.ErrorIs(t, err, ErrNothingEmbedded)
	})

	t.Run("cancelled context stops indexing", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		f := newIndexerFixture(t, &mockEmbeddingClient{createFunc: func(ctx context.Context, _ string) ([]float32, error) {
			return nil, ctx.Err()
		}}, nil)
		f.products.products[42] = &models.Product{ID: 42, Name: "Bitumen Mastic T-65"}

		_, err := f.indexer.IndexProduct(cancelled, 42)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestProductIndexer_Files(t *testing.T) {
	ctx := context.Background()
	files := map[string]string{
		"/blob/passport.txt": "Паспорт качества мастики Т-65 температура применения от минус 20",
	}

	f := newIndexerFixture(t, nil, files)
	f.products.products[42] = &models.Product{
		ID:   42,
		Name: "Bitumen Mastic T-65",
		Files: []models.ProductFile{
			{ID: 1, ProductID: 42, FilePath: "/blob/passport.txt"},
			{ID: 2, ProductID: 42, FilePath: "/blob/missing.txt"},
		},
	}

	res, err := f.indexer.IndexProduct(ctx, 42)
	require.NoError(t, err)
	assert.Greater(t, res.Chunks, 1)

	fileIDs := f.chunkIDs(t, vectorstore.Where{FilePath: "/blob/passport.txt"})
	require.NotEmpty(t, fileIDs)

	for _, id := range fileIDs {
		assert.True(t, strings.HasPrefix(id, "product_42_file_"), id)
	}

	stats, err := f.indexer.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Products)
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, res.Chunks, stats.Chunks)

	_, err = f.indexer.RemoveFile(ctx, 42, "/blob/passport.txt")
	require.NoError(t, err)

	assert.Empty(t, f.chunkIDs(t, vectorstore.Where{FilePath: "/blob/passport.txt"}))
	assert.Equal(t, []string{"product_42_0"}, f.chunkIDs(t, vectorstore.Where{ProductID: 42}))
}

func TestProductIndexer_StatsCache(t *testing.T) {
	ctx := context.Background()

	store := vectorstore.NewMemoryStore(testDims)
	require.NoError(t, store.Init(ctx))

	products := &mockProductReader{products: map[int64]*models.Product{
		1: {ID: 1, Name: "Мастика Т-65"},
		2: {ID: 2, Name: "Праймер битумный"},
	}}

	indexer := NewProductIndexer(ProductIndexerParams{
		Products: products,
		Store:    store,
		Embedder: embeddings.NewHashingClient(testDims),
		StatsTTL: time.Hour,
	})

	_, err := indexer.IndexProduct(ctx, 1)
	require.NoError(t, err)

	stats, err := indexer.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Products)

	// Writes that bypass the indexer are not seen until the entry is invalidated.
	require.NoError(t, store.DeleteWhere(ctx, vectorstore.Where{ProductID: 1}))

	stats, err = indexer.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Products)

	_, err = indexer.IndexProduct(ctx, 2)
	require.NoError(t, err)

	stats, err = indexer.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Products)
	assert.Equal(t, 1, stats.Chunks)
}

func TestProductIndexer_StoreNotInitialized(t *testing.T) {
	indexer := NewProductIndexer(ProductIndexerParams{
		Products: &mockProductReader{products: map[int64]*models.Product{1: {ID: 1, Name: "Мастика"}}},
		Store:    vectorstore.NewMemoryStore(testDims),
		Embedder: embeddings.NewHashingClient(testDims),
	})

	_, err := indexer.IndexProduct(context.Background(), 1)
	require.ErrorIs(t, err, vectorstore.ErrNotInitialized)
}

func TestProductText(t *testing.T) {
	p := &models.Product{Name: " Мастика ", CategoryName: "Мастики", Description: "Описание"}
	assert.Equal(t, "Мастика\nКатегория: Мастики\nОписание", productText(p))
	assert.Equal(t, "Мастика", productText(&models.Product{Name: "Мастика"}))
}

func unitVector(dims int) []float32 {
	v := make([]float32, dims)
	v[0] = 1

	return v
}
