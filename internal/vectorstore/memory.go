package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/viterin/vek/vek32"

	"github.com/bitumen-hub/catalog-assistant/internal/models"
)

type memoryEntry struct {
	record models.ChunkRecord
	norm   float32
}

// MemoryStore is an in-process Store with brute-force cosine search.
// Suitable for tests and small catalogs; contents are lost on restart.
type MemoryStore struct {
	mu          sync.RWMutex
	dimensions  int
	initialized bool
	entries     map[string]memoryEntry
}

// NewMemoryStore creates a MemoryStore. dimensions <= 0 accepts the length of the first vector.
func NewMemoryStore(dimensions int) *MemoryStore {
	return &MemoryStore{dimensions: dimensions}
}

// Init marks the store ready. Calling Init again keeps existing records.
func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries == nil {
		s.entries = make(map[string]memoryEntry)
	}

	s.initialized = true

	return nil
}

// Upsert stores copies of the records, overwriting existing ids.
func (s *MemoryStore) Upsert(_ context.Context, records []models.ChunkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	for i := range records {
		if err := s.checkDims(len(records[i].Vector)); err != nil {
			return fmt.Errorf("record %s: %w", records[i].ID, err)
		}
	}

	for _, rec := range records {
		vec := make([]float32, len(rec.Vector))
		copy(vec, rec.Vector)
		rec.Vector = vec

		s.entries[rec.ID] = memoryEntry{
			record: rec,
			norm:   float32(math.Sqrt(float64(vek32.Dot(vec, vec)))),
		}
	}

	return nil
}

// checkDims must be called with the write lock held.
func (s *MemoryStore) checkDims(n int) error {
	if s.dimensions <= 0 {
		s.dimensions = n
	}

	if n != s.dimensions {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, n, s.dimensions)
	}

	return nil
}

// Query returns up to topK neighbours by ascending cosine distance, ties broken by id.
func (s *MemoryStore) Query(_ context.Context, vector []float32, topK int) ([]Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	if topK <= 0 || len(s.entries) == 0 {
		return nil, nil
	}

	if s.dimensions > 0 && len(vector) != s.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), s.dimensions)
	}

	qNorm := float32(math.Sqrt(float64(vek32.Dot(vector, vector))))

	neighbors := make([]Neighbor, 0, len(s.entries))
	for id, e := range s.entries {
		sim := float32(0)
		if qNorm > 0 && e.norm > 0 {
			sim = vek32.Dot(vector, e.record.Vector) / (qNorm * e.norm)
		}

		neighbors = append(neighbors, Neighbor{
			ID:       id,
			Distance: 1 - float64(sim),
			Document: e.record.Document,
			Metadata: e.record.Metadata,
		})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}

		return neighbors[i].ID < neighbors[j].ID
	})

	if len(neighbors) > topK {
		neighbors = neighbors[:topK]
	}

	return neighbors, nil
}

// Delete removes records by id.
func (s *MemoryStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	for _, id := range ids {
		delete(s.entries, id)
	}

	return nil
}

// DeleteWhere removes every record matching where. An empty filter is rejected.
func (s *MemoryStore) DeleteWhere(_ context.Context, where Where) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	if where.IsEmpty() {
		return ErrEmptyFilter
	}

	for id, e := range s.entries {
		if where.Matches(e.record.Metadata) {
			delete(s.entries, id)
		}
	}

	return nil
}

// Get returns matching records ordered by id.
func (s *MemoryStore) Get(_ context.Context, where Where) (GetResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return GetResult{}, ErrNotInitialized
	}

	ids := make([]string, 0, len(s.entries))
	for id, e := range s.entries {
		if where.Matches(e.record.Metadata) {
			ids = append(ids, id)
		}
	}

	sort.Strings(ids)

	out := GetResult{
		IDs:       ids,
		Documents: make([]string, len(ids)),
		Metadatas: make([]models.ChunkMetadata, len(ids)),
	}
	for i, id := range ids {
		out.Documents[i] = s.entries[id].record.Document
		out.Metadatas[i] = s.entries[id].record.Metadata
	}

	return out, nil
}

// Count returns the number of stored records.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return 0, ErrNotInitialized
	}

	return len(s.entries), nil
}

var _ Store = (*MemoryStore)(nil)
