package service

import (
	"context"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

const (
	productReindexKind = "product_reindex"
	// EmbeddingsQueueName is the River queue used for product reindex jobs.
	EmbeddingsQueueName = "embeddings"
)

// Reindex actions carried by ProductReindexArgs.
const (
	ReindexActionIndex      = "index"
	ReindexActionRemove     = "remove"
	ReindexActionRemoveFile = "remove_file"
)

// ReindexJobInserter inserts reindex jobs (e.g. River client).
type ReindexJobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// ProductReindexArgs is the job payload for rebuilding or dropping one product's chunks.
// FilePath is set only for remove_file.
type ProductReindexArgs struct {
	ProductID int64  `json:"product_id"`
	Action    string `json:"action"`
	FilePath  string `json:"file_path,omitempty"`
}

// Kind returns the River job kind.
func (ProductReindexArgs) Kind() string { return productReindexKind }

var _ river.JobArgs = ProductReindexArgs{}
