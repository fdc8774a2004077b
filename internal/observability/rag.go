package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RAGMetrics records question answering and ledger write failures.
type RAGMetrics interface {
	RecordAnswer(ctx context.Context, outcome string, duration time.Duration)
	RecordLLMError(ctx context.Context, kind string)
	RecordLedgerError(ctx context.Context, operation string)
}

type ragMetrics struct {
	answers      metric.Int64Counter
	duration     metric.Float64Histogram
	llmErrors    metric.Int64Counter
	ledgerErrors metric.Int64Counter
}

// NewRAGMetrics creates RAGMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewRAGMetrics(meter metric.Meter) (RAGMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	answers, err := meter.Int64Counter(
		MetricNameAnswers,
		metric.WithDescription("Total answered questions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create answers counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameAnswerDuration,
		metric.WithDescription("End-to-end answer duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create answer duration histogram: %w", err)
	}

	llmErrors, err := meter.Int64Counter(
		MetricNameLLMErrors,
		metric.WithDescription("Language model failures by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm errors counter: %w", err)
	}

	ledgerErrors, err := meter.Int64Counter(
		MetricNameLedgerErrors,
		metric.WithDescription("Failed ledger writes by operation"),
	)
	if err != nil {
		return nil, fmt.Errorf("create ledger errors counter: %w", err)
	}

	return &ragMetrics{answers: answers, duration: duration, llmErrors: llmErrors, ledgerErrors: ledgerErrors}, nil
}

func (r *ragMetrics) RecordAnswer(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(AttrOutcome, NormalizeReason(outcome, AllowedAnswerOutcomes)))
	r.answers.Add(ctx, 1, attrs)
	r.duration.Record(ctx, duration.Seconds(), attrs)
}

func (r *ragMetrics) RecordLLMError(ctx context.Context, kind string) {
	r.llmErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrKind, NormalizeReason(kind, AllowedLLMErrorKinds))))
}

func (r *ragMetrics) RecordLedgerError(ctx context.Context, operation string) {
	r.ledgerErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String(AttrOperation, NormalizeReason(operation, AllowedLedgerOperations))))
}
