package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncMetrics struct {
	reasons []string
}

func (f *fakeSyncMetrics) RecordJobsEnqueued(context.Context, int64) {}
func (f *fakeSyncMetrics) RecordProviderError(context.Context, string) {}
func (f *fakeSyncMetrics) RecordReindexOutcome(context.Context, string) {}
func (f *fakeSyncMetrics) RecordReindexDuration(context.Context, time.Duration, string) {}
func (f *fakeSyncMetrics) RecordChunksIndexed(context.Context, int64) {}
func (f *fakeSyncMetrics) RecordChunkSkipped(context.Context, string) {}

func (f *fakeSyncMetrics) RecordWorkerError(_ context.Context, reason string) {
	f.reasons = append(f.reasons, reason)
}

func TestErrorHandler(t *testing.T) {
	metrics := &fakeSyncMetrics{}
	h := NewErrorHandler(metrics)
	row := &rivertype.JobRow{ID: 7, Kind: "product_reindex", Attempt: 1, MaxAttempts: 1}

	assert.Nil(t, h.HandleError(context.Background(), row, errors.New("boom")))

	res := h.HandlePanic(context.Background(), row, "nil map", "stack")
	require.NotNil(t, res)
	assert.True(t, res.SetCancelled)

	assert.Equal(t, []string{"job_error", "panic"}, metrics.reasons)
}

func TestErrorHandler_NilMetrics(t *testing.T) {
	h := NewErrorHandler(nil)
	row := &rivertype.JobRow{ID: 1}

	assert.NotPanics(t, func() {
		h.HandleError(context.Background(), row, errors.New("boom"))
		h.HandlePanic(context.Background(), row, "x", "")
	})
}
