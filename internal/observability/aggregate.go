package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric collectors. When metrics are disabled, all fields are nil.
// Components accept the interface they need and already handle nil.
type Metrics struct {
	Events EventMetrics
	Sync   SyncMetrics
	Search SearchMetrics
	RAG    RAGMetrics
	Cache  CacheMetrics
	API    APIMetrics
}

// NewMetrics creates every collector from the given meter.
// Returns (nil, nil) when meter is nil (metrics disabled).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	events, err := NewEventMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("event metrics: %w", err)
	}

	syncM, err := NewSyncMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("sync metrics: %w", err)
	}

	search, err := NewSearchMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("search metrics: %w", err)
	}

	rag, err := NewRAGMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("rag metrics: %w", err)
	}

	cache, err := NewCacheMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("cache metrics: %w", err)
	}

	api, err := NewAPIMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("api metrics: %w", err)
	}

	return &Metrics{
		Events: events,
		Sync:   syncM,
		Search: search,
		RAG:    rag,
		Cache:  cache,
		API:    api,
	}, nil
}
