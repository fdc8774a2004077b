package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/bitumen-hub/catalog-assistant/internal/models"
)

// PostgresStore keeps chunks in the chunk_embeddings table, one collection per partition.
// Vectors are stored as halfvec (2 bytes per dimension); pgvector-go converts float32 on encode.
// The pool must register pgvector types (database.WithAfterConnect(pgxvec.RegisterTypes)).
type PostgresStore struct {
	db          *pgxpool.Pool
	collection  string
	dimensions  int
	initialized atomic.Bool
}

// NewPostgresStore creates a store for the named collection. Call Init before use.
func NewPostgresStore(db *pgxpool.Pool, collection string, dimensions int) *PostgresStore {
	return &PostgresStore{db: db, collection: collection, dimensions: dimensions}
}

// Init creates the extension, table, and indexes if missing.
func (s *PostgresStore) Init(ctx context.Context) error {
	if s.dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive", ErrDimensionMismatch)
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS chunk_embeddings (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			embedding halfvec(%d) NOT NULL,
			document TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		)`, s.dimensions),
		`CREATE INDEX IF NOT EXISTS chunk_embeddings_embedding_idx
			ON chunk_embeddings USING hnsw (embedding halfvec_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS chunk_embeddings_metadata_idx
			ON chunk_embeddings USING gin (metadata jsonb_path_ops)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("vector store init: %w", err)
		}
	}

	s.initialized.Store(true)

	return nil
}

// Upsert inserts or updates records in one batch.
func (s *PostgresStore) Upsert(ctx context.Context, records []models.ChunkRecord) error {
	if !s.initialized.Load() {
		return ErrNotInitialized
	}

	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	for i := range records {
		rec := &records[i]
		if len(rec.Vector) != s.dimensions {
			return fmt.Errorf("record %s: %w: got %d, want %d", rec.ID, ErrDimensionMismatch, len(rec.Vector), s.dimensions)
		}

		md, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", rec.ID, err)
		}

		batch.Queue(`
			INSERT INTO chunk_embeddings (collection, id, embedding, document, metadata, updated_at)
			VALUES ($1, $2, $3, $4, $5::jsonb, now())
			ON CONFLICT (collection, id)
			DO UPDATE SET embedding = EXCLUDED.embedding, document = EXCLUDED.document,
				metadata = EXCLUDED.metadata, updated_at = now()`,
			s.collection, rec.ID, pgvector.NewHalfVector(rec.Vector), rec.Document, string(md),
		)
	}

	if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("vector store upsert: %w", err)
	}

	return nil
}

// Query returns the nearest chunks by cosine distance (<=>).
func (s *PostgresStore) Query(ctx context.Context, vector []float32, topK int) ([]Neighbor, error) {
	if !s.initialized.Load() {
		return nil, ErrNotInitialized
	}

	if topK <= 0 {
		return nil, nil
	}

	if len(vector) != s.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), s.dimensions)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, (embedding <=> $2)::float8 AS distance, document, metadata
		FROM chunk_embeddings
		WHERE collection = $1
		ORDER BY embedding <=> $2, id
		LIMIT $3`,
		s.collection, pgvector.NewHalfVector(vector), topK,
	)
	if err != nil {
		return nil, fmt.Errorf("vector store query: %w", err)
	}
	defer rows.Close()

	var out []Neighbor

	for rows.Next() {
		var (
			n  Neighbor
			md []byte
		)

		if err := rows.Scan(&n.ID, &n.Distance, &n.Document, &md); err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}

		if err := json.Unmarshal(md, &n.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", n.ID, err)
		}

		out = append(out, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating neighbors: %w", err)
	}

	return out, nil
}

// Delete removes records by id.
func (s *PostgresStore) Delete(ctx context.Context, ids []string) error {
	if !s.initialized.Load() {
		return ErrNotInitialized
	}

	if len(ids) == 0 {
		return nil
	}

	_, err := s.db.Exec(ctx,
		`DELETE FROM chunk_embeddings WHERE collection = $1 AND id = ANY($2)`,
		s.collection, ids,
	)
	if err != nil {
		return fmt.Errorf("vector store delete: %w", err)
	}

	return nil
}

// DeleteWhere removes records whose metadata contains the filter.
func (s *PostgresStore) DeleteWhere(ctx context.Context, where Where) error {
	if !s.initialized.Load() {
		return ErrNotInitialized
	}

	if where.IsEmpty() {
		return ErrEmptyFilter
	}

	filter, err := metadataFilter(where)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx,
		`DELETE FROM chunk_embeddings WHERE collection = $1 AND metadata @> $2::jsonb`,
		s.collection, filter,
	)
	if err != nil {
		return fmt.Errorf("vector store delete where: %w", err)
	}

	return nil
}

// Get returns records matching where, ordered by id.
func (s *PostgresStore) Get(ctx context.Context, where Where) (GetResult, error) {
	if !s.initialized.Load() {
		return GetResult{}, ErrNotInitialized
	}

	filter, err := metadataFilter(where)
	if err != nil {
		return GetResult{}, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, document, metadata
		FROM chunk_embeddings
		WHERE collection = $1 AND metadata @> $2::jsonb
		ORDER BY id`,
		s.collection, filter,
	)
	if err != nil {
		return GetResult{}, fmt.Errorf("vector store get: %w", err)
	}
	defer rows.Close()

	var out GetResult

	for rows.Next() {
		var (
			id, doc string
			raw     []byte
			md      models.ChunkMetadata
		)

		if err := rows.Scan(&id, &doc, &raw); err != nil {
			return GetResult{}, fmt.Errorf("scan chunk: %w", err)
		}

		if err := json.Unmarshal(raw, &md); err != nil {
			return GetResult{}, fmt.Errorf("decode metadata for %s: %w", id, err)
		}

		out.IDs = append(out.IDs, id)
		out.Documents = append(out.Documents, doc)
		out.Metadatas = append(out.Metadatas, md)
	}

	if err := rows.Err(); err != nil {
		return GetResult{}, fmt.Errorf("iterating chunks: %w", err)
	}

	return out, nil
}

// Count returns the number of records in the collection.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	if !s.initialized.Load() {
		return 0, ErrNotInitialized
	}

	var n int
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunk_embeddings WHERE collection = $1`, s.collection,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("vector store count: %w", err)
	}

	return n, nil
}

// metadataFilter renders where as a JSONB containment document. Empty where renders "{}", which matches all rows.
func metadataFilter(where Where) (string, error) {
	filter := map[string]any{}
	if where.ProductID != 0 {
		filter["product_id"] = where.ProductID
	}

	if where.FilePath != "" {
		filter["file_path"] = where.FilePath
	}

	b, err := json.Marshal(filter)
	if err != nil {
		return "", fmt.Errorf("marshal metadata filter: %w", err)
	}

	return string(b), nil
}

var _ Store = (*PostgresStore)(nil)
