package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bitumen-hub/catalog-assistant/internal/models"
	"github.com/bitumen-hub/catalog-assistant/internal/observability"
	"github.com/bitumen-hub/catalog-assistant/internal/vectorstore"
	"github.com/bitumen-hub/catalog-assistant/pkg/cache"
)

const (
	queryEmbeddingCacheName = "query_embedding"
	// chunksPerProduct widens the chunk query so products with many chunks do not crowd out others.
	chunksPerProduct = 5
)

// SemanticSearch embeds a query and ranks chunks by cosine similarity.
type SemanticSearch struct {
	embedder     EmbeddingClient
	store        vectorstore.Store
	queryCache   *cache.LoaderCache[string, []float32]
	cacheMetrics observability.CacheMetrics
	logger       *slog.Logger
}

// SemanticSearchParams configures SemanticSearch. QueryCache and CacheMetrics may be nil (no caching).
type SemanticSearchParams struct {
	Embedder     EmbeddingClient
	Store        vectorstore.Store
	QueryCache   *cache.LoaderCache[string, []float32]
	CacheMetrics observability.CacheMetrics
	Logger       *slog.Logger
}

// NewSemanticSearch creates a SemanticSearch.
func NewSemanticSearch(p SemanticSearchParams) *SemanticSearch {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SemanticSearch{
		embedder:     p.Embedder,
		store:        p.Store,
		queryCache:   p.QueryCache,
		cacheMetrics: p.CacheMetrics,
		logger:       logger,
	}
}

// SearchChunks returns up to topK chunks with similarity >= threshold, best first.
// An empty query returns nil without touching the embedder or the store.
func (s *SemanticSearch) SearchChunks(
	ctx context.Context, query string, topK int, threshold float64,
) ([]models.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" || topK <= 0 {
		return nil, nil
	}

	embedding, err := s.queryEmbedding(ctx, query)
	if err != nil {
		s.logger.ErrorContext(ctx, "semantic search: create embedding failed", "error", err, "top_k", topK)

		return nil, err
	}

	neighbors, err := s.store.Query(ctx, embedding, topK)
	if err != nil {
		s.logger.ErrorContext(ctx, "semantic search: query failed", "error", err, "top_k", topK)

		return nil, fmt.Errorf("query vector store: %w", err)
	}

	hits := make([]models.SearchHit, 0, len(neighbors))

	for _, n := range neighbors {
		score := n.Similarity()
		if score < threshold {
			continue
		}

		hits = append(hits, models.SearchHit{
			ChunkID:     n.ID,
			ProductID:   n.Metadata.ProductID,
			ProductName: n.Metadata.ProductName,
			FilePath:    n.Metadata.FilePath,
			Text:        n.Document,
			Score:       score,
		})
	}

	return hits, nil
}

// SearchProducts returns up to limit products whose best chunk scores >= threshold,
// ordered by that best score.
func (s *SemanticSearch) SearchProducts(
	ctx context.Context, query string, limit int, threshold float64,
) ([]models.ProductHit, error) {
	if limit <= 0 {
		return nil, nil
	}

	chunks, err := s.SearchChunks(ctx, query, limit*chunksPerProduct, threshold)
	if err != nil {
		return nil, err
	}

	return bestPerProduct(chunks, limit), nil
}

// bestPerProduct keeps the first (highest scoring) chunk of each product. chunks must be
// sorted by descending score.
func bestPerProduct(chunks []models.SearchHit, limit int) []models.ProductHit {
	seen := make(map[int64]struct{}, len(chunks))
	hits := make([]models.ProductHit, 0, limit)

	for _, c := range chunks {
		if _, ok := seen[c.ProductID]; ok {
			continue
		}

		seen[c.ProductID] = struct{}{}
		score := c.Score
		hits = append(hits, models.ProductHit{
			ProductID: c.ProductID,
			Name:      c.ProductName,
			Score:     &score,
			Source:    models.StageSemantic,
		})

		if len(hits) == limit {
			break
		}
	}

	return hits
}

func (s *SemanticSearch) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	if s.queryCache == nil {
		vec, err := s.embedder.CreateEmbedding(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("create embedding: %w", err)
		}

		return vec, nil
	}

	vec, hit, err := s.queryCache.GetWithStats(ctx, query, s.embedder.CreateEmbedding)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	if s.cacheMetrics != nil {
		if hit {
			s.cacheMetrics.RecordHit(ctx, queryEmbeddingCacheName)
		} else {
			s.cacheMetrics.RecordMiss(ctx, queryEmbeddingCacheName)
		}
	}

	return vec, nil
}
