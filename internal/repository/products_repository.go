// Package repository provides data access for the catalog and the question/answer ledger.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bitumen-hub/catalog-assistant/internal/huberrors"
	"github.com/bitumen-hub/catalog-assistant/internal/models"
	"github.com/bitumen-hub/catalog-assistant/internal/querynorm"
)

// ProductsRepository reads catalog products. The catalog owns the rows.
type ProductsRepository struct {
	db *pgxpool.Pool
}

// NewProductsRepository creates a new products repository.
func NewProductsRepository(db *pgxpool.Pool) *ProductsRepository {
	return &ProductsRepository{db: db}
}

// GetByID returns a product with its category name and attached files. Soft-deleted products are returned
// with IsDeleted set so callers can decide what to do.
func (r *ProductsRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	query := `
		SELECT p.id, p.name, p.category_id, COALESCE(c.name, ''), p.description, p.is_deleted
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1
	`

	var p models.Product

	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.CategoryID, &p.CategoryName, &p.Description, &p.IsDeleted,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("product", "product not found")
		}

		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, product_id, file_path, original_name
		FROM product_files
		WHERE product_id = $1
		ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list product files: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f models.ProductFile
		if err := rows.Scan(&f.ID, &f.ProductID, &f.FilePath, &f.OriginalName); err != nil {
			return nil, fmt.Errorf("failed to scan product file: %w", err)
		}

		p.Files = append(p.Files, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product files: %w", err)
	}

	return &p, nil
}

// FindByNameTerms returns non-deleted products whose name contains every term, in id order.
// Names are folded with querynorm.Basic before matching, so terms must be folded the same way.
// No terms means no match and no query.
func (r *ProductsRepository) FindByNameTerms(ctx context.Context, terms []string, limit int) ([]models.Product, error) {
	terms = foldTerms(terms)
	if len(terms) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.name, p.category_id, COALESCE(c.name, ''), p.description, p.is_deleted
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.is_deleted = FALSE
		ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	defer rows.Close()

	var products []models.Product

	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.CategoryID, &p.CategoryName, &p.Description, &p.IsDeleted); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}

		if !nameMatchesTerms(p.Name, terms) {
			continue
		}

		products = append(products, p)
		if limit > 0 && len(products) == limit {
			return products, nil
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// ListActiveIDs returns ids of all non-deleted products.
func (r *ProductsRepository) ListActiveIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM products WHERE is_deleted = FALSE ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list product ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to collect product ids: %w", err)
	}

	return ids, nil
}

// foldTerms folds terms the way names are folded and drops empty ones.
func foldTerms(terms []string) []string {
	out := make([]string, 0, len(terms))

	for _, term := range terms {
		if folded := querynorm.Basic(term); folded != "" {
			out = append(out, folded)
		}
	}

	return out
}

// nameMatchesTerms reports whether the folded name contains every folded term as a substring.
func nameMatchesTerms(name string, terms []string) bool {
	folded := querynorm.Basic(name)

	for _, term := range terms {
		if !strings.Contains(folded, term) {
			return false
		}
	}

	return true
}
