// Package openai wraps the official OpenAI Go SDK for embeddings and chat completions.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

var (
	ErrEmptyInput            = errors.New("openai: input text is empty")
	ErrInvalidDims           = errors.New("openai: embedding dimensions must be positive")
	ErrNoEmbeddingInResponse = errors.New("openai: no embedding in response")
	ErrDimensionMismatch     = errors.New("openai: embedding dimension mismatch")
)

const defaultDimension = 768

// Client creates embeddings. Requests are not retried unless WithMaxRetries is given.
type Client struct {
	sdk        openaisdk.Client
	model      string
	dimensions int
	sdkOpts    []option.RequestOption
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithDimensions sets the requested embedding dimension (must match the vector column).
func WithDimensions(dim int) ClientOption {
	return func(c *Client) {
		c.dimensions = dim
	}
}

// WithModel sets the embedding model. Empty keeps text-embedding-3-small.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxRetries lets the SDK retry failed requests n times.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.sdkOpts = append(c.sdkOpts, option.WithMaxRetries(n))
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.sdkOpts = append(c.sdkOpts, option.WithBaseURL(url))
		}
	}
}

// NewClient creates an embeddings client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		model:      openaisdk.EmbeddingModelTextEmbedding3Small,
		dimensions: defaultDimension,
		sdkOpts:    []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)},
	}

	for _, opt := range opts {
		opt(client)
	}

	client.sdk = openaisdk.NewClient(client.sdkOpts...)

	return client
}

// CreateEmbedding embeds one text. The result has exactly the configured dimensions.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	out, err := c.CreateEmbeddings(ctx, []string{input})
	if err != nil {
		return nil, err
	}

	return out[0], nil
}

// CreateEmbeddings embeds texts in one request, returning vectors in input order.
func (c *Client) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	if c.dimensions <= 0 {
		return nil, ErrInvalidDims
	}

	trimmed := make([]string, len(inputs))
	for i, in := range inputs {
		trimmed[i] = strings.TrimSpace(in)
		if trimmed[i] == "" {
			return nil, fmt.Errorf("%w (input %d)", ErrEmptyInput, i)
		}
	}

	if len(trimmed) == 0 {
		return nil, ErrEmptyInput
	}

	resp, err := c.sdk.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input:      openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: trimmed},
		Model:      c.model,
		Dimensions: param.NewOpt(int64(c.dimensions)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}

	if len(resp.Data) != len(trimmed) {
		return nil, fmt.Errorf("%w: got %d of %d", ErrNoEmbeddingInResponse, len(resp.Data), len(trimmed))
	}

	out := make([][]float32, len(trimmed))

	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("%w: index %d out of range", ErrNoEmbeddingInResponse, d.Index)
		}

		if len(d.Embedding) != c.dimensions {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(d.Embedding), c.dimensions)
		}

		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}

		out[d.Index] = vec
	}

	for i, vec := range out {
		if vec == nil {
			return nil, fmt.Errorf("%w: missing index %d", ErrNoEmbeddingInResponse, i)
		}
	}

	return out, nil
}
