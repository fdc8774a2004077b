// Package workers provides River job workers for keeping the vector index in sync with the catalog.
package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/bitumen-hub/catalog-assistant/internal/observability"
	"github.com/bitumen-hub/catalog-assistant/internal/service"
)

// productIndexer is the minimal interface needed by the worker.
type productIndexer interface {
	IndexProduct(ctx context.Context, productID int64) (service.IndexResult, error)
	RemoveProduct(ctx context.Context, productID int64) (service.IndexResult, error)
	RemoveFile(ctx context.Context, productID int64, filePath string) (service.IndexResult, error)
}

// ProductReindexWorker rebuilds or drops one product's chunks.
// Failures are logged and counted and the job completes; nothing is retried.
type ProductReindexWorker struct {
	river.WorkerDefaults[service.ProductReindexArgs]

	indexer productIndexer
	metrics observability.SyncMetrics
}

// NewProductReindexWorker creates the worker. metrics may be nil when metrics are disabled.
func NewProductReindexWorker(indexer productIndexer, metrics observability.SyncMetrics) *ProductReindexWorker {
	return &ProductReindexWorker{indexer: indexer, metrics: metrics}
}

const productReindexTimeout = 2 * time.Minute

// Timeout limits how long a single reindex can run.
func (w *ProductReindexWorker) Timeout(*river.Job[service.ProductReindexArgs]) time.Duration {
	return productReindexTimeout
}

// Work dispatches on the job action.
func (w *ProductReindexWorker) Work(ctx context.Context, job *river.Job[service.ProductReindexArgs]) error {
	args := job.Args
	start := time.Now()

	var (
		result service.IndexResult
		err    error
		reason string
	)

	switch args.Action {
	case service.ReindexActionIndex:
		result, err = w.indexer.IndexProduct(ctx, args.ProductID)
		reason = "index_failed"
	case service.ReindexActionRemove:
		result, err = w.indexer.RemoveProduct(ctx, args.ProductID)
		reason = "remove_failed"
	case service.ReindexActionRemoveFile:
		result, err = w.indexer.RemoveFile(ctx, args.ProductID, args.FilePath)
		reason = "remove_failed"
	default:
		w.finish(ctx, start, "skipped")

		slog.Warn("reindex: unknown action, skipped",
			"job_id", job.ID,
			"product_id", args.ProductID,
			"action", args.Action,
		)

		return nil
	}

	if err != nil {
		if w.metrics != nil {
			w.metrics.RecordWorkerError(ctx, reason)
		}

		w.finish(ctx, start, "failed_final")

		slog.Error("reindex: failed",
			"job_id", job.ID,
			"product_id", args.ProductID,
			"action", args.Action,
			"error", err,
		)

		return nil
	}

	status := "indexed"
	if result.Removed {
		status = "removed"
	}

	w.finish(ctx, start, status)

	slog.Info("reindex: done",
		"job_id", job.ID,
		"product_id", args.ProductID,
		"action", args.Action,
		"status", status,
		"chunks", result.Chunks,
	)

	return nil
}

func (w *ProductReindexWorker) finish(ctx context.Context, start time.Time, status string) {
	if w.metrics == nil {
		return
	}

	w.metrics.RecordReindexOutcome(ctx, status)
	w.metrics.RecordReindexDuration(ctx, time.Since(start), status)
}
