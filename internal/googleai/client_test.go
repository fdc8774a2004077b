package googleai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Options(t *testing.T) {
	c, err := NewClient(context.Background(), "test-key",
		WithModel(""),
		WithDimensions(256),
		WithTaskType("RETRIEVAL_QUERY"),
	)
	require.NoError(t, err)

	assert.Equal(t, defaultModel, c.model)
	assert.Equal(t, 256, c.dimensions)
	assert.Equal(t, "RETRIEVAL_QUERY", c.taskType)
}

func TestCreateEmbedding_RejectsBeforeCalling(t *testing.T) {
	c, err := NewClient(context.Background(), "test-key")
	require.NoError(t, err)

	_, err = c.CreateEmbedding(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyInput)

	c.dimensions = 0
	_, err = c.CreateEmbedding(context.Background(), "битум")
	require.ErrorIs(t, err, ErrInvalidDims)
}
