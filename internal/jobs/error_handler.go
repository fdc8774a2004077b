// Package jobs holds River wiring shared by the job workers.
package jobs

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/bitumen-hub/catalog-assistant/internal/observability"
)

// ErrorHandler logs job errors and panics and counts them as worker errors.
type ErrorHandler struct {
	metrics observability.SyncMetrics
}

// NewErrorHandler creates an ErrorHandler. metrics may be nil when metrics are disabled.
func NewErrorHandler(metrics observability.SyncMetrics) *ErrorHandler {
	return &ErrorHandler{metrics: metrics}
}

// HandleError is called when a job returns an error.
func (h *ErrorHandler) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	if h.metrics != nil {
		h.metrics.RecordWorkerError(ctx, "job_error")
	}

	slog.ErrorContext(ctx, "job failed",
		"job_kind", job.Kind,
		"job_id", job.ID,
		"attempt", job.Attempt,
		"max_attempts", job.MaxAttempts,
		"error", err,
	)

	// nil keeps River's attempt accounting; sync jobs have MaxAttempts 1.
	return nil
}

// HandlePanic is called when a job panics. The job is cancelled so a poisoned payload is not run again.
func (h *ErrorHandler) HandlePanic(
	ctx context.Context, job *rivertype.JobRow, panicVal any, trace string,
) *river.ErrorHandlerResult {
	if h.metrics != nil {
		h.metrics.RecordWorkerError(ctx, "panic")
	}

	slog.ErrorContext(ctx, "job panicked",
		"job_kind", job.Kind,
		"job_id", job.ID,
		"attempt", job.Attempt,
		"panic_value", panicVal,
		"stack_trace", trace,
	)

	return &river.ErrorHandlerResult{SetCancelled: true}
}

var _ river.ErrorHandler = (*ErrorHandler)(nil)
