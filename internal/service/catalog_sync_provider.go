package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/bitumen-hub/catalog-assistant/internal/datatypes"
	"github.com/bitumen-hub/catalog-assistant/internal/observability"
)

// syncJobMaxAttempts is 1: a failed reindex is logged and counted, never retried.
// The next catalog edit or a rebuild repairs the product.
const syncJobMaxAttempts = 1

// activeProductLister lists products that should be present in the index.
type activeProductLister interface {
	ListActiveIDs(ctx context.Context) ([]int64, error)
}

// CatalogSyncProvider implements eventPublisher by turning catalog notifications into
// product_reindex jobs. It also serves explicit reindex and rebuild requests.
type CatalogSyncProvider struct {
	inserter  ReindexJobInserter
	products  activeProductLister
	queueName string
	metrics   observability.SyncMetrics
}

// NewCatalogSyncProvider creates a provider that enqueues product_reindex jobs on queueName.
// metrics may be nil when metrics are disabled.
func NewCatalogSyncProvider(
	inserter ReindexJobInserter,
	products activeProductLister,
	queueName string,
	metrics observability.SyncMetrics,
) *CatalogSyncProvider {
	return &CatalogSyncProvider{
		inserter:  inserter,
		products:  products,
		queueName: queueName,
		metrics:   metrics,
	}
}

// PublishEvent maps one catalog notification to a job. Failures are logged and counted only.
func (p *CatalogSyncProvider) PublishEvent(ctx context.Context, event Event) {
	args, ok := reindexArgsForEvent(event)
	if !ok {
		slog.Debug("catalog sync: skip event",
			"event_id", event.ID,
			"event_type", event.Catalog.Event.String(),
			"product_id", event.Catalog.ProductID,
		)

		return
	}

	if err := p.enqueue(ctx, args); err != nil {
		slog.Error("catalog sync: enqueue failed",
			"event_id", event.ID,
			"product_id", args.ProductID,
			"action", args.Action,
			"error", err,
		)

		return
	}

	slog.Info("catalog sync: job enqueued",
		"event_id", event.ID,
		"product_id", args.ProductID,
		"action", args.Action,
	)
}

// EnqueueReindex schedules a full reindex of one product.
func (p *CatalogSyncProvider) EnqueueReindex(ctx context.Context, productID int64) error {
	return p.enqueue(ctx, ProductReindexArgs{ProductID: productID, Action: ReindexActionIndex})
}

// EnqueueRebuild schedules a reindex of every non-deleted product and returns how many
// jobs were enqueued. Individual enqueue failures are logged and skipped.
func (p *CatalogSyncProvider) EnqueueRebuild(ctx context.Context) (int, error) {
	ids, err := p.products.ListActiveIDs(ctx)
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordProviderError(ctx, "list_failed")
		}

		return 0, fmt.Errorf("list active products: %w", err)
	}

	enqueued := 0

	for _, id := range ids {
		if err := p.EnqueueReindex(ctx, id); err != nil {
			slog.Error("catalog sync: rebuild enqueue failed", "product_id", id, "error", err)

			continue
		}

		enqueued++
	}

	slog.Info("catalog sync: rebuild enqueued", "products", len(ids), "enqueued", enqueued)

	return enqueued, nil
}

func (p *CatalogSyncProvider) enqueue(ctx context.Context, args ProductReindexArgs) error {
	opts := &river.InsertOpts{
		Queue:       p.queueName,
		MaxAttempts: syncJobMaxAttempts,
	}

	if _, err := p.inserter.Insert(ctx, args, opts); err != nil {
		if p.metrics != nil {
			p.metrics.RecordProviderError(ctx, "enqueue_failed")
		}

		return fmt.Errorf("insert %s job: %w", args.Kind(), err)
	}

	if p.metrics != nil {
		p.metrics.RecordJobsEnqueued(ctx, 1)
	}

	return nil
}

// reindexArgsForEvent decides what a notification means for the index.
// A soft delete arrives as updated with is_deleted set and is treated like deleted.
func reindexArgsForEvent(event Event) (ProductReindexArgs, bool) {
	ce := event.Catalog
	if ce.ProductID <= 0 {
		return ProductReindexArgs{}, false
	}

	args := ProductReindexArgs{ProductID: ce.ProductID}

	switch ce.Event {
	case datatypes.ProductCreated, datatypes.ProductUpdated, datatypes.ProductDeleted:
		if ce.Removes() {
			args.Action = ReindexActionRemove
		} else {
			args.Action = ReindexActionIndex
		}
	case datatypes.ProductFileAdded:
		if ce.IsDeleted {
			return ProductReindexArgs{}, false
		}

		args.Action = ReindexActionIndex
	case datatypes.ProductFileRemoved:
		if ce.FilePath == "" {
			return ProductReindexArgs{}, false
		}

		args.Action = ReindexActionRemoveFile
		args.FilePath = ce.FilePath
	default:
		return ProductReindexArgs{}, false
	}

	return args, true
}
