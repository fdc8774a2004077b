package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bitumen-hub/catalog-assistant/internal/models"
	"github.com/bitumen-hub/catalog-assistant/internal/querynorm"
)

// productNameFinder matches product names against substring terms.
type productNameFinder interface {
	FindByNameTerms(ctx context.Context, terms []string, limit int) ([]models.Product, error)
}

// LexicalSearch matches product names by substring. Every whitespace-separated term of a
// query variant must appear in the name (case-insensitive). Variants are tried in order and
// the first one with matches wins, so "т65" still finds "Мастика Т-65". Results are unranked
// and come back in catalog order.
type LexicalSearch struct {
	products productNameFinder
	limit    int
}

// NewLexicalSearch creates a LexicalSearch returning at most limit products (0 = no limit).
func NewLexicalSearch(products productNameFinder, limit int) *LexicalSearch {
	return &LexicalSearch{products: products, limit: limit}
}

// Search returns matching non-deleted products. An empty query returns nil without
// touching the catalog.
func (s *LexicalSearch) Search(ctx context.Context, query string) ([]models.ProductHit, error) {
	for _, variant := range querynorm.Variants(query) {
		products, err := s.products.FindByNameTerms(ctx, strings.Fields(variant), s.limit)
		if err != nil {
			return nil, fmt.Errorf("find products by name %q: %w", variant, err)
		}

		if len(products) > 0 {
			return toLexicalHits(products), nil
		}
	}

	return nil, nil
}

func toLexicalHits(products []models.Product) []models.ProductHit {

	hits := make([]models.ProductHit, 0, len(products))
	for _, p := range products {
		hits = append(hits, models.ProductHit{ProductID: p.ID, Name: p.Name, Source: models.StageLexical})
	}

	return hits
}
