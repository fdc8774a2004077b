package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitumen-hub/catalog-assistant/internal/datatypes"
	"github.com/bitumen-hub/catalog-assistant/internal/huberrors"
	"github.com/bitumen-hub/catalog-assistant/internal/models"
	"github.com/bitumen-hub/catalog-assistant/internal/service"
	"github.com/bitumen-hub/catalog-assistant/internal/vectorstore"
	"github.com/bitumen-hub/catalog-assistant/pkg/embeddings"
)

const testDims = 256

type mockIndexer struct {
	indexFunc  func(ctx context.Context, id int64) (service.IndexResult, error)
	removeFunc func(ctx context.Context, id int64) (service.IndexResult, error)
	fileCalls  []string
}

func (m *mockIndexer) IndexProduct(ctx context.Context, id int64) (service.IndexResult, error) {
	if m.indexFunc != nil {
		return m.indexFunc(ctx, id)
	}

	return service.IndexResult{ProductID: id, Chunks: 1}, nil
}

func (m *mockIndexer) RemoveProduct(ctx context.Context, id int64) (service.IndexResult, error) {
	if m.removeFunc != nil {
		return m.removeFunc(ctx, id)
	}

	return service.IndexResult{ProductID: id, Removed: true}, nil
}

func (m *mockIndexer) RemoveFile(_ context.Context, id int64, filePath string) (service.IndexResult, error) {
	m.fileCalls = append(m.fileCalls, filePath)

	return service.IndexResult{ProductID: id, Removed: true}, nil
}

type fakeSyncMetrics struct {
	mu           sync.Mutex
	outcomes     []string
	workerErrors []string
}

func (f *fakeSyncMetrics) RecordJobsEnqueued(context.Context, int64) {}
func (f *fakeSyncMetrics) RecordProviderError(context.Context, string) {}
func (f *fakeSyncMetrics) RecordChunksIndexed(context.Context, int64) {}
func (f *fakeSyncMetrics) RecordChunkSkipped(context.Context, string) {}

func (f *fakeSyncMetrics) RecordReindexDuration(context.Context, time.Duration, string) {}

func (f *fakeSyncMetrics) RecordReindexOutcome(_ context.Context, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.outcomes = append(f.outcomes, status)
}

func (f *fakeSyncMetrics) RecordWorkerError(_ context.Context, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.workerErrors = append(f.workerErrors, reason)
}

func job(args service.ProductReindexArgs) *river.Job[service.ProductReindexArgs] {
	return &river.Job[service.ProductReindexArgs]{JobRow: &rivertype.JobRow{ID: 1, Attempt: 1, MaxAttempts: 1}, Args: args}
}

func TestProductReindexWorker_Work(t *testing.T) {
	ctx := context.Background()

	t.Run("index records outcome", func(t *testing.T) {
		metrics := &fakeSyncMetrics{}
		w := NewProductReindexWorker(&mockIndexer{}, metrics)

		require.NoError(t, w.Work(ctx, job(service.ProductReindexArgs{ProductID: 1, Action: service.ReindexActionIndex})))
		assert.Equal(t, []string{"indexed"}, metrics.outcomes)
	})

	t.Run("remove records outcome", func(t *testing.T) {
		metrics := &fakeSyncMetrics{}
		w := NewProductReindexWorker(&mockIndexer{}, metrics)

		require.NoError(t, w.Work(ctx, job(service.ProductReindexArgs{ProductID: 1, Action: service.ReindexActionRemove})))
		assert.Equal(t, []string{"removed"}, metrics.outcomes)
	})

	t.Run("remove file passes path", func(t *testing.T) {
		indexer := &mockIndexer{}
		w := NewProductReindexWorker(indexer, nil)

		require.NoError(t, w.Work(ctx, job(service.ProductReindexArgs{
			ProductID: 1, Action: service.ReindexActionRemoveFile, FilePath: "/blob/a.txt",
		})))
		assert.Equal(t, []string{"/blob/a.txt"}, indexer.fileCalls)
	})

	t.Run("failure completes without retry", func(t *testing.T) {
		metrics := &fakeSyncMetrics{}
		indexer := &mockIndexer{indexFunc: func(context.Context, int64) (service.IndexResult, error) {
			return service.IndexResult{}, errors.New("embedder down")
		}}
		w := NewProductReindexWorker(indexer, metrics)

		require.NoError(t, w.Work(ctx, job(service.ProductReindexArgs{ProductID: 1, Action: service.ReindexActionIndex})))
		assert.Equal(t, []string{"index_failed"}, metrics.workerErrors)
		assert.Equal(t, []string{"failed_final"}, metrics.outcomes)
	})

	t.Run("unknown action is skipped", func(t *testing.T) {
		metrics := &fakeSyncMetrics{}
		w := NewProductReindexWorker(&mockIndexer{}, metrics)

		require.NoError(t, w.Work(ctx, job(service.ProductReindexArgs{ProductID: 1, Action: "explode"})))
		assert.Equal(t, []string{"skipped"}, metrics.outcomes)
	})

	t.Run("timeout", func(t *testing.T) {
		w := NewProductReindexWorker(&mockIndexer{}, nil)
		assert.Equal(t, productReindexTimeout, w.Timeout(nil))
	})
}

type catalogFake struct {
	mu       sync.Mutex
	products map[int64]models.Product
}

func (c *catalogFake) GetByID(_ context.Context, id int64) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[id]
	if !ok {
		return nil, huberrors.NewNotFoundError("product", "product not found")
	}

	return &p, nil
}

func (c *catalogFake) ListActiveIDs(context.Context) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []int64

	for id, p := range c.products {
		if !p.IsDeleted {
			ids = append(ids, id)
		}
	}

	return ids, nil
}

func (c *catalogFake) put(p models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.products[p.ID] = p
}

// syncInserter runs the worker inline instead of queueing, so tests observe the index right after publishing.
type syncInserter struct {
	worker *ProductReindexWorker
	opts   []*river.InsertOpts
}

func (s *syncInserter) Insert(
	ctx context.Context, args river.JobArgs, opts *river.InsertOpts,
) (*rivertype.JobInsertResult, error) {
	s.opts = append(s.opts, opts)

	reindexArgs, ok := args.(service.ProductReindexArgs)
	if !ok {
		return nil, errors.New("unexpected job args")
	}

	if err := s.worker.Work(ctx, job(reindexArgs)); err != nil {
		return nil, err
	}

	return &rivertype.JobInsertResult{Job: &rivertype.JobRow{ID: int64(len(s.opts))}}, nil
}

func TestCatalogSync_CreateThenSoftDelete(t *testing.T) {
	ctx := context.Background()

	store := vectorstore.NewMemoryStore(testDims)
	require.NoError(t, store.Init(ctx))

	embedder := embeddings.NewHashingClient(testDims)
	catalog := &catalogFake{products: map[int64]models.Product{}}

	indexer := service.NewProductIndexer(service.ProductIndexerParams{
		Products: catalog,
		Store:    store,
		Embedder: embedder,
	})
	inserter := &syncInserter{worker: NewProductReindexWorker(indexer, nil)}
	provider := service.NewCatalogSyncProvider(inserter, catalog, service.EmbeddingsQueueName, nil)
	semantic := service.NewSemanticSearch(service.SemanticSearchParams{Embedder: embedder, Store: store})

	publish := func(ce models.CatalogEvent) {
		provider.PublishEvent(ctx, service.Event{ID: uuid.Must(uuid.NewV7()), Catalog: ce})
	}

	catalog.put(models.Product{ID: 42, Name: "Bitumen Mastic T-65", Description: "Битумная мастика для кровли"})
	publish(models.CatalogEvent{Event: datatypes.ProductCreated, ProductID: 42, Name: "Bitumen Mastic T-65"})

	chunks, err := store.Get(ctx, vectorstore.Where{ProductID: 42})
	require.NoError(t, err)
	require.Positive(t, chunks.Len())

	hits, err := semantic.SearchProducts(ctx, "Bitumen Mastic T-65", 3, 0.3)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, int64(42), hits[0].ProductID)

	p, _ := catalog.GetByID(ctx, 42)
	p.IsDeleted = true
	catalog.put(*p)
	publish(models.CatalogEvent{Event: datatypes.ProductUpdated, ProductID: 42, IsDeleted: true})

	chunks, err = store.Get(ctx, vectorstore.Where{ProductID: 42})
	require.NoError(t, err)
	assert.Zero(t, chunks.Len())

	hits, err = semantic.SearchProducts(ctx, "Bitumen Mastic T-65", 3, 0.3)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.Len(t, inserter.opts, 2)

	for _, o := range inserter.opts {
		assert.Equal(t, 1, o.MaxAttempts)
		assert.Equal(t, service.EmbeddingsQueueName, o.Queue)
	}
}

func TestCatalogSync_Rebuild(t *testing.T) {
	ctx := context.Background()

	store := vectorstore.NewMemoryStore(testDims)
	require.NoError(t, store.Init(ctx))

	catalog := &catalogFake{products: map[int64]models.Product{
		1: {ID: 1, Name: "Праймер битумный"},
		2: {ID: 2, Name: "Мастика МБК-Г-65"},
		3: {ID: 3, Name: "Снятая с продажи лента", IsDeleted: true},
	}}

	indexer := service.NewProductIndexer(service.ProductIndexerParams{
		Products: catalog,
		Store:    store,
		Embedder: embeddings.NewHashingClient(testDims),
	})
	provider := service.NewCatalogSyncProvider(
		&syncInserter{worker: NewProductReindexWorker(indexer, nil)}, catalog, service.EmbeddingsQueueName, nil,
	)

	n, err := provider.EnqueueRebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stats, err := indexer.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Products)
}
