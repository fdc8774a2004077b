// Package googleai wraps the Google Gen AI SDK for Gemini embeddings.
package googleai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"

	"github.com/bitumen-hub/catalog-assistant/pkg/embeddings"
)

var (
	// ErrEmptyInput is returned when CreateEmbedding is called with empty input.
	ErrEmptyInput = errors.New("googleai: input text is empty")
	// ErrInvalidDims is returned when dimensions is not positive.
	ErrInvalidDims = errors.New("googleai: embedding dimensions must be positive")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("googleai: no embedding in response")
	// ErrDimensionMismatch is returned when the response length differs from the configured dimensions.
	ErrDimensionMismatch = errors.New("googleai: embedding dimension mismatch")
)

const (
	defaultDimension = 768
	defaultModel     = "gemini-embedding-001"
	// Catalog text and user queries share one vector space, so a symmetric task type is used.
	defaultTaskType = "SEMANTIC_SIMILARITY"
)

// Client calls the Gemini embeddings API.
type Client struct {
	client     *genai.Client
	model      string
	taskType   string
	dimensions int
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithDimensions sets the output dimensionality. It must match the vector store.
func WithDimensions(dim int) ClientOption {
	return func(c *Client) {
		c.dimensions = dim
	}
}

// WithModel sets the embedding model. Empty keeps gemini-embedding-001.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTaskType sets the Gemini task type, e.g. RETRIEVAL_DOCUMENT.
func WithTaskType(taskType string) ClientOption {
	return func(c *Client) {
		if taskType != "" {
			c.taskType = taskType
		}
	}
}

// NewClient creates a Gemini embeddings client. No request is made until CreateEmbedding.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("googleai client: %w", err)
	}

	client := &Client{
		client:     genaiClient,
		model:      defaultModel,
		taskType:   defaultTaskType,
		dimensions: defaultDimension,
	}
	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// CreateEmbedding returns a unit-length embedding of input.
// Gemini only normalizes full-size outputs, so truncated vectors are normalized here.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	if c.dimensions <= 0 || c.dimensions > math.MaxInt32 {
		return nil, ErrInvalidDims
	}

	//nolint:gosec // G115: bounded by the check above
	dims := int32(c.dimensions)

	resp, err := c.client.Models.EmbedContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromText(input, genai.RoleUser)},
		&genai.EmbedContentConfig{
			TaskType:             c.taskType,
			OutputDimensionality: &dims,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}

	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, ErrNoEmbeddingInResponse
	}

	values := resp.Embeddings[0].Values
	if len(values) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(values), c.dimensions)
	}

	out := make([]float32, len(values))
	copy(out, values)
	embeddings.NormalizeL2(out)

	return out, nil
}
