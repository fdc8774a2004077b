package embeddings

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"

	"github.com/bitumen-hub/catalog-assistant/internal/querynorm"
)

var (
	// ErrEmptyInput is returned when the text has no tokens after normalization.
	ErrEmptyInput = errors.New("embeddings: input text is empty")
	// ErrInvalidDims is returned when dimensions is not positive.
	ErrInvalidDims = errors.New("embeddings: dimensions must be positive")
)

// HashingClient embeds text without a model: words and character trigrams are
// hashed into a fixed number of signed buckets and the result is L2-normalized.
// Output is deterministic and close for texts sharing vocabulary, which is
// enough for offline runs and tests.
type HashingClient struct {
	dimensions int
}

// NewHashingClient returns a local embedder producing vectors of the given size.
func NewHashingClient(dimensions int) *HashingClient {
	return &HashingClient{dimensions: dimensions}
}

// Dimensions returns the output vector length.
func (c *HashingClient) Dimensions() int { return c.dimensions }

// CreateEmbedding returns the hashed feature vector for input.
func (c *HashingClient) CreateEmbedding(_ context.Context, input string) ([]float32, error) {
	if c.dimensions <= 0 {
		return nil, ErrInvalidDims
	}

	words := strings.Fields(querynorm.Basic(input))
	if len(words) == 0 {
		return nil, ErrEmptyInput
	}

	vec := make([]float32, c.dimensions)

	for _, w := range words {
		c.add(vec, "w:"+w, 1)

		runes := []rune("#" + w + "#")
		for i := 0; i+3 <= len(runes); i++ {
			c.add(vec, "t:"+string(runes[i:i+3]), 0.5)
		}
	}

	NormalizeL2(vec)

	return vec, nil
}

func (c *HashingClient) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % uint64(c.dimensions)) //nolint:gosec // bounded by dimensions
	if sum&(1<<63) != 0 {
		weight = -weight
	}

	vec[idx] += weight
}
