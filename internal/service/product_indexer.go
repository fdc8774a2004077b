package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/bitumen-hub/catalog-assistant/internal/chunker"
	"github.com/bitumen-hub/catalog-assistant/internal/huberrors"
	"github.com/bitumen-hub/catalog-assistant/internal/models"
	"github.com/bitumen-hub/catalog-assistant/internal/observability"
	"github.com/bitumen-hub/catalog-assistant/internal/vectorstore"
)

const (
	// metadataDescriptionRunes bounds the product description copied into chunk metadata.
	metadataDescriptionRunes = 300

	statsCacheKey = "partition"
)

// ErrNothingEmbedded is returned when a product had text but no chunk could be embedded.
var ErrNothingEmbedded = errors.New("no chunk could be embedded")

// productReader loads one product with its files.
type productReader interface {
	GetByID(ctx context.Context, id int64) (*models.Product, error)
}

// fileTextExtractor returns the plain text of a product document at a local path.
type fileTextExtractor func(path string) (string, error)

// ProductIndexer builds and replaces a product's chunks in the vector store.
type ProductIndexer struct {
	products productReader
	store    vectorstore.Store
	embedder EmbeddingClient
	chunker  *chunker.Chunker
	limiter  *rate.Limiter
	readFile fileTextExtractor
	stats    *expirable.LRU[string, IndexStats]
	metrics  observability.SyncMetrics
	logger   *slog.Logger
}

// ProductIndexerParams configures ProductIndexer. Limiter, Metrics and Logger may be nil.
// ReadFile defaults to ExtractFileText. StatsTTL > 0 caches Stats until the TTL expires or
// the index changes.
type ProductIndexerParams struct {
	Products productReader
	Store    vectorstore.Store
	Embedder EmbeddingClient
	Chunker  *chunker.Chunker
	Limiter  *rate.Limiter
	ReadFile func(path string) (string, error)
	StatsTTL time.Duration
	Metrics  observability.SyncMetrics
	Logger   *slog.Logger
}

// NewProductIndexer creates a ProductIndexer.
func NewProductIndexer(p ProductIndexerParams) *ProductIndexer {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := p.Chunker
	if ch == nil {
		ch = chunker.New()
	}

	readFile := fileTextExtractor(p.ReadFile)
	if readFile == nil {
		readFile = ExtractFileText
	}

	indexer := &ProductIndexer{
		products: p.Products,
		store:    p.Store,
		embedder: p.Embedder,
		chunker:  ch,
		limiter:  p.Limiter,
		readFile: readFile,
		metrics:  p.Metrics,
		logger:   logger,
	}

	if p.StatsTTL > 0 {
		indexer.stats = expirable.NewLRU[string, IndexStats](1, nil, p.StatsTTL)
	}

	return indexer
}

// IndexResult reports what one reindex did.
type IndexResult struct {
	ProductID int64 `json:"product_id"`
	Chunks    int   `json:"chunks"`
	Skipped   int   `json:"skipped"`
	Removed   bool  `json:"removed"`
}

// IndexStats summarizes the vector partition.
type IndexStats struct {
	Chunks   int `json:"chunks"`
	Products int `json:"products"`
	Files    int `json:"files"`
}

// IndexProduct replaces the product's chunks with freshly embedded ones. A product that is
// missing or soft-deleted has its chunks removed instead.
//
// Embeddings are computed before the old chunks are deleted so the window in which the
// product has no chunks is only the delete-then-upsert pair. Concurrent searches in that
// window may miss the product.
func (s *ProductIndexer) IndexProduct(ctx context.Context, productID int64) (IndexResult, error) {
	result := IndexResult{ProductID: productID}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, huberrors.ErrNotFound) {
			s.logger.Info("index: product not found, removing chunks", "product_id", productID)

			return s.RemoveProduct(ctx, productID)
		}

		return result, fmt.Errorf("get product: %w", err)
	}

	if product.IsDeleted {
		return s.RemoveProduct(ctx, productID)
	}

	records, total, err := s.buildRecords(ctx, product)
	if err != nil {
		return result, err
	}

	result.Skipped = total - len(records)

	defer s.invalidateStats()

	if err := s.store.DeleteWhere(ctx, vectorstore.Where{ProductID: productID}); err != nil {
		return result, fmt.Errorf("delete old chunks: %w", err)
	}

	if len(records) > 0 {
		if err := s.store.Upsert(ctx, records); err != nil {
			return result, fmt.Errorf("upsert chunks: %w", err)
		}
	}

	result.Chunks = len(records)

	if s.metrics != nil && result.Chunks > 0 {
		s.metrics.RecordChunksIndexed(ctx, int64(result.Chunks))
	}

	s.logger.Info("index: product indexed",
		"product_id", productID,
		"chunks", result.Chunks,
		"skipped", result.Skipped,
	)

	if total > 0 && len(records) == 0 {
		return result, ErrNothingEmbedded
	}

	return result, nil
}

// RemoveProduct drops every chunk of the product.
func (s *ProductIndexer) RemoveProduct(ctx context.Context, productID int64) (IndexResult, error) {
	defer s.invalidateStats()

	if err := s.store.DeleteWhere(ctx, vectorstore.Where{ProductID: productID}); err != nil {
		return IndexResult{ProductID: productID}, fmt.Errorf("delete product chunks: %w", err)
	}

	s.logger.Info("index: product chunks removed", "product_id", productID)

	return IndexResult{ProductID: productID, Removed: true}, nil
}

// RemoveFile drops the chunks built from one product document.
func (s *ProductIndexer) RemoveFile(ctx context.Context, productID int64, filePath string) (IndexResult, error) {
	defer s.invalidateStats()

	where := vectorstore.Where{ProductID: productID, FilePath: filePath}
	if err := s.store.DeleteWhere(ctx, where); err != nil {
		return IndexResult{ProductID: productID}, fmt.Errorf("delete file chunks: %w", err)
	}

	s.logger.Info("index: file chunks removed", "product_id", productID, "file_path", filePath)

	return IndexResult{ProductID: productID, Removed: true}, nil
}

// Stats counts chunks, distinct products and distinct files in the partition.
func (s *ProductIndexer) Stats(ctx context.Context) (IndexStats, error) {
	if s.stats != nil {
		if cached, ok := s.stats.Get(statsCacheKey); ok {
			return cached, nil
		}
	}

	res, err := s.store.Get(ctx, vectorstore.Where{})
	if err != nil {
		return IndexStats{}, fmt.Errorf("get chunks: %w", err)
	}

	products := make(map[int64]struct{})
	files := make(map[string]struct{})

	for _, md := range res.Metadatas {
		products[md.ProductID] = struct{}{}

		if md.FilePath != "" {
			files[md.FilePath] = struct{}{}
		}
	}

	stats := IndexStats{Chunks: res.Len(), Products: len(products), Files: len(files)}

	if s.stats != nil {
		s.stats.Add(statsCacheKey, stats)
	}

	return stats, nil
}

func (s *ProductIndexer) invalidateStats() {
	if s.stats != nil {
		s.stats.Purge()
	}
}

// buildRecords chunks and embeds the product text and every readable file. It returns the
// embedded records and the number of chunks attempted.
func (s *ProductIndexer) buildRecords(ctx context.Context, product *models.Product) ([]models.ChunkRecord, int, error) {
	base := models.ChunkMetadata{
		ProductID:   product.ID,
		ProductName: product.Name,
		Description: truncateRunes(product.Description, metadataDescriptionRunes),
	}

	var (
		records []models.ChunkRecord
		total   int
	)

	for _, c := range s.chunker.Split(productText(product)) {
		total++

		md := base
		md.ChunkIndex = c.Index

		rec, ok, err := s.embedChunk(ctx, models.DescriptionChunkID(product.ID, c.Index), c.Text, md)
		if err != nil {
			return nil, total, err
		}

		if ok {
			records = append(records, rec)
		}
	}

	for _, f := range product.Files {
		text, err := s.readFile(f.FilePath)
		if err != nil {
			if s.metrics != nil {
				s.metrics.RecordChunkSkipped(ctx, "file_unreadable")
			}

			s.logger.Warn("index: skip unreadable file",
				"product_id", product.ID,
				"file_path", f.FilePath,
				"error", err,
			)

			continue
		}

		for _, c := range s.chunker.Split(text) {
			total++

			md := base
			md.FilePath = f.FilePath
			md.ChunkIndex = c.Index

			rec, ok, err := s.embedChunk(ctx, models.FileChunkID(product.ID, f.FilePath, c.Index), c.Text, md)
			if err != nil {
				return nil, total, err
			}

			if ok {
				records = append(records, rec)
			}
		}
	}

	return records, total, nil
}

// embedChunk returns ok=false when the embedding failed and the chunk is skipped.
// A non-nil error means the context ended and indexing must stop.
func (s *ProductIndexer) embedChunk(
	ctx context.Context, id, text string, md models.ChunkMetadata,
) (models.ChunkRecord, bool, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return models.ChunkRecord{}, false, fmt.Errorf("embedding rate limit: %w", err)
		}
	}

	vec, err := s.embedder.CreateEmbedding(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return models.ChunkRecord{}, false, fmt.Errorf("create embedding: %w", ctx.Err())
		}

		if s.metrics != nil {
			s.metrics.RecordChunkSkipped(ctx, "embedding_failed")
		}

		s.logger.Warn("index: skip chunk, embedding failed",
			"product_id", md.ProductID,
			"chunk_id", id,
			"error", err,
		)

		return models.ChunkRecord{}, false, nil
	}

	return models.ChunkRecord{ID: id, Vector: vec, Document: text, Metadata: md}, true, nil
}

// productText is the searchable representation of a product's own fields.
func productText(p *models.Product) string {
	parts := []string{strings.TrimSpace(p.Name)}

	if c := strings.TrimSpace(p.CategoryName); c != "" {
		parts = append(parts, "Категория: "+c)
	}

	if d := strings.TrimSpace(p.Description); d != "" {
		parts = append(parts, d)
	}

	return strings.Join(parts, "\n")
}

func truncateRunes(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}

	return string(r[:n])
}
