package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SearchMetrics records hybrid search outcomes. Stage is the stage that produced the result.
type SearchMetrics interface {
	RecordSearch(ctx context.Context, stage string, duration time.Duration)
	RecordStageError(ctx context.Context, stage string)
}

type searchMetrics struct {
	searches    metric.Int64Counter
	duration    metric.Float64Histogram
	stageErrors metric.Int64Counter
}

// NewSearchMetrics creates SearchMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewSearchMetrics(meter metric.Meter) (SearchMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	searches, err := meter.Int64Counter(
		MetricNameSearches,
		metric.WithDescription("Total hybrid searches by producing stage"),
	)
	if err != nil {
		return nil, fmt.Errorf("create searches counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameSearchDuration,
		metric.WithDescription("Hybrid search duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create search duration histogram: %w", err)
	}

	stageErrors, err := meter.Int64Counter(
		MetricNameSearchStageErrors,
		metric.WithDescription("Search stage failures treated as empty results"),
	)
	if err != nil {
		return nil, fmt.Errorf("create search stage errors counter: %w", err)
	}

	return &searchMetrics{searches: searches, duration: duration, stageErrors: stageErrors}, nil
}

func attrStage(stage string) attribute.KeyValue {
	return attribute.String(AttrStage, NormalizeReason(stage, AllowedSearchStages))
}

func (s *searchMetrics) RecordSearch(ctx context.Context, stage string, duration time.Duration) {
	attrs := metric.WithAttributes(attrStage(stage))
	s.searches.Add(ctx, 1, attrs)
	s.duration.Record(ctx, duration.Seconds(), attrs)
}

func (s *searchMetrics) RecordStageError(ctx context.Context, stage string) {
	s.stageErrors.Add(ctx, 1, metric.WithAttributes(attrStage(stage)))
}
