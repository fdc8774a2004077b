// Package vectorstore holds product chunk embeddings in a single named partition
// and answers nearest-neighbour queries under cosine distance.
package vectorstore

import (
	"context"
	"errors"

	"github.com/bitumen-hub/catalog-assistant/internal/models"
)

var (
	// ErrNotInitialized is returned by every operation called before Init.
	ErrNotInitialized = errors.New("vector store: not initialized")
	// ErrEmptyFilter is returned by DeleteWhere when the filter matches everything.
	ErrEmptyFilter = errors.New("vector store: delete filter is empty")
	// ErrDimensionMismatch is returned when a vector's length differs from the store's dimensions.
	ErrDimensionMismatch = errors.New("vector store: vector dimension mismatch")
)

// Store is the vector partition contract used by indexing and retrieval.
// Implementations must be safe for concurrent use.
type Store interface {
	// Init creates the partition if needed and marks the store ready.
	Init(ctx context.Context) error
	// Upsert inserts or overwrites records by id.
	Upsert(ctx context.Context, records []models.ChunkRecord) error
	// Query returns up to topK neighbours ordered by ascending cosine distance.
	Query(ctx context.Context, vector []float32, topK int) ([]Neighbor, error)
	// Delete removes records by id. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error
	// DeleteWhere removes every record whose metadata matches where.
	DeleteWhere(ctx context.Context, where Where) error
	// Get returns records matching where without a query vector. An empty filter returns all.
	Get(ctx context.Context, where Where) (GetResult, error)
	// Count returns the number of records in the partition.
	Count(ctx context.Context) (int, error)
}

// Where filters records by metadata. Zero fields are not applied.
type Where struct {
	ProductID int64
	FilePath  string
}

// IsEmpty reports whether no field is set.
func (w Where) IsEmpty() bool {
	return w.ProductID == 0 && w.FilePath == ""
}

// Matches reports whether md satisfies every set field.
func (w Where) Matches(md models.ChunkMetadata) bool {
	if w.ProductID != 0 && md.ProductID != w.ProductID {
		return false
	}

	if w.FilePath != "" && md.FilePath != w.FilePath {
		return false
	}

	return true
}

// Neighbor is one query result.
type Neighbor struct {
	ID       string
	Distance float64
	Document string
	Metadata models.ChunkMetadata
}

// Similarity is 1 - cosine distance.
func (n Neighbor) Similarity() float64 {
	return 1 - n.Distance
}

// GetResult is the output of Get. The slices are parallel and ordered by id.
type GetResult struct {
	IDs       []string
	Documents []string
	Metadatas []models.ChunkMetadata
}

// Len returns the number of records.
func (r GetResult) Len() int { return len(r.IDs) }
