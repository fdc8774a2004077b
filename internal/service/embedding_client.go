package service

import "context"

// EmbeddingClient turns text into a vector whose length matches the vector store.
// Implemented by the OpenAI, Gemini, and local hashing clients.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}
