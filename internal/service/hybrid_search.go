package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/bitumen-hub/catalog-assistant/internal/models"
	"github.com/bitumen-hub/catalog-assistant/internal/observability"
)

type lexicalSearcher interface {
	Search(ctx context.Context, query string) ([]models.ProductHit, error)
}

type semanticProductSearcher interface {
	SearchProducts(ctx context.Context, query string, limit int, threshold float64) ([]models.ProductHit, error)
}

// HybridSearch tries lexical name matching first and falls back to semantic search
// only when the lexical stage finds nothing.
type HybridSearch struct {
	lexical        lexicalSearcher
	semantic       semanticProductSearcher
	semanticLimit  int
	scoreThreshold float64
	metrics        observability.SearchMetrics
	logger         *slog.Logger
}

// HybridSearchParams configures HybridSearch. Metrics and Logger may be nil.
type HybridSearchParams struct {
	Lexical        lexicalSearcher
	Semantic       semanticProductSearcher
	SemanticLimit  int
	ScoreThreshold float64
	Metrics        observability.SearchMetrics
	Logger         *slog.Logger
}

// NewHybridSearch creates a HybridSearch.
func NewHybridSearch(p HybridSearchParams) *HybridSearch {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HybridSearch{
		lexical:        p.Lexical,
		semantic:       p.Semantic,
		semanticLimit:  p.SemanticLimit,
		scoreThreshold: p.ScoreThreshold,
		metrics:        p.Metrics,
		logger:         logger,
	}
}

// Search runs the two stages. A failing stage is logged, counted, and treated as empty,
// so the only error returned is a cancelled context.
func (s *HybridSearch) Search(ctx context.Context, query string) (models.HybridResult, error) {
	start := time.Now()
	result := models.HybridResult{Query: query, Stage: models.StageNone, Products: []models.ProductHit{}}

	hits, err := s.lexical.Search(ctx, query)
	if err != nil {
		s.stageFailed(ctx, models.StageLexical, err)
	}

	if len(hits) > 0 {
		result.Stage = models.StageLexical
		result.Products = hits
		s.record(ctx, result.Stage, start)

		return result, nil
	}

	if ctx.Err() != nil {
		return result, ctx.Err()
	}

	hits, err = s.semantic.SearchProducts(ctx, query, s.semanticLimit, s.scoreThreshold)
	if err != nil {
		s.stageFailed(ctx, models.StageSemantic, err)
	}

	if len(hits) > 0 {
		result.Stage = models.StageSemantic
		result.Products = hits
	}

	s.record(ctx, result.Stage, start)

	return result, nil
}

func (s *HybridSearch) stageFailed(ctx context.Context, stage models.SearchStage, err error) {
	if s.metrics != nil {
		s.metrics.RecordStageError(ctx, string(stage))
	}

	s.logger.WarnContext(ctx, "hybrid search: stage failed", "stage", string(stage), "error", err)
}

func (s *HybridSearch) record(ctx context.Context, stage models.SearchStage, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordSearch(ctx, string(stage), time.Since(start))
	}

	s.logger.DebugContext(ctx, "hybrid search done", "stage", string(stage), "duration_ms", time.Since(start).Milliseconds())
}
