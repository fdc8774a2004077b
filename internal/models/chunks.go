package models

import (
	"crypto/sha1" //nolint:gosec // short content-free id suffix, not a security boundary
	"encoding/hex"
	"fmt"
)

// ChunkMetadata is stored alongside every chunk vector. ProductID is the key used
// by product re-indexing to drop a product's chunks; FilePath does the same for a single file.
type ChunkMetadata struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	FilePath    string `json:"file_path,omitempty"`
	Description string `json:"description,omitempty"`
	ChunkIndex  int    `json:"chunk_index"`
}

// ChunkRecord is one row in the vector partition.
type ChunkRecord struct {
	ID       string        `json:"id"`
	Vector   []float32     `json:"-"`
	Document string        `json:"document"`
	Metadata ChunkMetadata `json:"metadata"`
}

// DescriptionChunkID returns the id of a chunk built from the product's own text.
func DescriptionChunkID(productID int64, chunkIndex int) string {
	return fmt.Sprintf("product_%d_%d", productID, chunkIndex)
}

// FileChunkID returns the id of a chunk built from an attached file. The path is
// hashed so ids stay short and unique per (product, file, index).
func FileChunkID(productID int64, filePath string, chunkIndex int) string {
	sum := sha1.Sum([]byte(filePath)) //nolint:gosec // see import
	return fmt.Sprintf("product_%d_file_%s_%d", productID, hex.EncodeToString(sum[:])[:8], chunkIndex)
}
