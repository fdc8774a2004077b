package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetrics records the catalog-to-index sync pipeline (provider, reindex worker, indexer).
type SyncMetrics interface {
	RecordJobsEnqueued(ctx context.Context, count int64)
	RecordProviderError(ctx context.Context, reason string)
	RecordReindexOutcome(ctx context.Context, status string)
	RecordWorkerError(ctx context.Context, reason string)
	RecordReindexDuration(ctx context.Context, duration time.Duration, status string)
	RecordChunksIndexed(ctx context.Context, count int64)
	RecordChunkSkipped(ctx context.Context, reason string)
}

type syncMetrics struct {
	jobsEnqueued   metric.Int64Counter
	providerErrors metric.Int64Counter
	outcomes       metric.Int64Counter
	workerErrors   metric.Int64Counter
	duration       metric.Float64Histogram
	chunksIndexed  metric.Int64Counter
	chunksSkipped  metric.Int64Counter
}

// NewSyncMetrics creates SyncMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewSyncMetrics(meter metric.Meter) (SyncMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	jobsEnqueued, err := meter.Int64Counter(
		MetricNameSyncJobsEnqueued,
		metric.WithDescription("Total product reindex jobs enqueued"),
	)
	if err != nil {
		return nil, fmt.Errorf("create sync jobs enqueued counter: %w", err)
	}

	providerErrors, err := meter.Int64Counter(
		MetricNameSyncProviderErrors,
		metric.WithDescription("Total sync provider errors (enqueue failures, bad payloads)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create sync provider errors counter: %w", err)
	}

	outcomes, err := meter.Int64Counter(
		MetricNameReindexOutcomes,
		metric.WithDescription("Total reindex job outcomes by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create reindex outcomes counter: %w", err)
	}

	workerErrors, err := meter.Int64Counter(
		MetricNameReindexWorkerErrors,
		metric.WithDescription("Total reindex worker errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("create reindex worker errors counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameReindexDuration,
		metric.WithDescription("Reindex job duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create reindex duration histogram: %w", err)
	}

	chunksIndexed, err := meter.Int64Counter(
		MetricNameChunksIndexed,
		metric.WithDescription("Total chunks written to the vector store"),
	)
	if err != nil {
		return nil, fmt.Errorf("create chunks indexed counter: %w", err)
	}

	chunksSkipped, err := meter.Int64Counter(
		MetricNameChunksSkipped,
		metric.WithDescription("Total chunks or files skipped during indexing"),
	)
	if err != nil {
		return nil, fmt.Errorf("create chunks skipped counter: %w", err)
	}

	return &syncMetrics{
		jobsEnqueued:   jobsEnqueued,
		providerErrors: providerErrors,
		outcomes:       outcomes,
		workerErrors:   workerErrors,
		duration:       duration,
		chunksIndexed:  chunksIndexed,
		chunksSkipped:  chunksSkipped,
	}, nil
}

func (s *syncMetrics) RecordJobsEnqueued(ctx context.Context, count int64) {
	s.jobsEnqueued.Add(ctx, count)
}

func (s *syncMetrics) RecordProviderError(ctx context.Context, reason string) {
	reason = NormalizeReason(reason, AllowedSyncProviderReasons)
	s.providerErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrReason, reason)))
}

func (s *syncMetrics) RecordReindexOutcome(ctx context.Context, status string) {
	status = NormalizeReason(status, AllowedReindexStatuses)
	s.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrStatus, status)))
}

func (s *syncMetrics) RecordWorkerError(ctx context.Context, reason string) {
	reason = NormalizeReason(reason, AllowedReindexWorkerReasons)
	s.workerErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrReason, reason)))
}

func (s *syncMetrics) RecordReindexDuration(ctx context.Context, duration time.Duration, status string) {
	status = NormalizeReason(status, AllowedReindexStatuses)
	s.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrStatus, status)))
}

func (s *syncMetrics) RecordChunksIndexed(ctx context.Context, count int64) {
	s.chunksIndexed.Add(ctx, count)
}

func (s *syncMetrics) RecordChunkSkipped(ctx context.Context, reason string) {
	reason = NormalizeReason(reason, AllowedChunkSkipReasons)
	s.chunksSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrReason, reason)))
}
