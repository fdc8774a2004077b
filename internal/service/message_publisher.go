package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bitumen-hub/catalog-assistant/internal/models"
	"github.com/bitumen-hub/catalog-assistant/internal/observability"
)

// Event is a catalog notification handed to providers.
type Event struct {
	ID        uuid.UUID // UUID v7, time-ordered
	Timestamp int64     // Unix seconds
	Catalog   models.CatalogEvent
}

// MessagePublisher accepts catalog notifications without blocking the caller.
type MessagePublisher interface {
	PublishEvent(ctx context.Context, event models.CatalogEvent)
}

// eventPublisher is the internal interface for providers that receive a full Event.
type eventPublisher interface {
	PublishEvent(ctx context.Context, event Event)
}

// MessagePublisherManager decouples catalog writes from indexing: PublishEvent only
// enqueues onto a bounded channel and one worker fans events out to providers.
// When the channel is full, or after Shutdown, the event is dropped, logged and counted.
type MessagePublisherManager struct {
	eventChan       chan Event
	providers       []eventPublisher
	perEventTimeout time.Duration
	metrics         observability.EventMetrics
	wg              sync.WaitGroup

	mu     sync.RWMutex // guards closed and sends on eventChan
	closed bool
}

// NewMessagePublisherManager creates a manager and starts its worker.
// metrics may be nil when metrics are disabled.
func NewMessagePublisherManager(
	bufferSize int, perEventTimeout time.Duration, metrics observability.EventMetrics,
) *MessagePublisherManager {
	m := &MessagePublisherManager{
		eventChan:       make(chan Event, bufferSize),
		perEventTimeout: perEventTimeout,
		metrics:         metrics,
	}

	m.wg.Add(1)

	go m.startWorker()

	return m
}

// RegisterProvider registers a provider. Must only be called during startup,
// before any events are published.
func (m *MessagePublisherManager) RegisterProvider(provider eventPublisher) {
	m.providers = append(m.providers, provider)
}

// PublishEvent enqueues a catalog notification. It never blocks.
func (m *MessagePublisherManager) PublishEvent(ctx context.Context, catalogEvent models.CatalogEvent) {
	event := Event{
		ID:        uuid.Must(uuid.NewV7()),
		Timestamp: time.Now().Unix(),
		Catalog:   catalogEvent,
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		m.recordDiscard(ctx, event, "Publisher shut down, event dropped")

		return
	}

	select {
	case m.eventChan <- event:
		slog.Debug("Event published to channel",
			"event_id", event.ID,
			"event_type", catalogEvent.Event.String(),
			"product_id", catalogEvent.ProductID,
		)
	default:
		m.recordDiscard(ctx, event, "Event channel full, event dropped")
	}

	if m.metrics != nil {
		m.metrics.SetChannelDepth(len(m.eventChan))
	}
}

func (m *MessagePublisherManager) recordDiscard(ctx context.Context, event Event, msg string) {
	if m.metrics != nil {
		m.metrics.RecordEventDiscarded(ctx, event.Catalog.Event.String())
	}

	slog.Warn(msg,
		"event_id", event.ID,
		"event_type", event.Catalog.Event.String(),
		"product_id", event.Catalog.ProductID,
	)
}

// startWorker reads events until the channel is closed. Each event gets its own
// timeout so one stuck provider call cannot freeze the worker.
func (m *MessagePublisherManager) startWorker() {
	defer m.wg.Done()

	bgCtx := context.Background()

	for event := range m.eventChan {
		start := time.Now()
		ctx, cancel := context.WithTimeout(bgCtx, m.perEventTimeout)

		for _, provider := range m.providers {
			provider.PublishEvent(ctx, event)
		}

		cancel()

		if m.metrics != nil {
			m.metrics.RecordFanOutDuration(bgCtx, time.Since(start), event.Catalog.Event.String())
			m.metrics.SetChannelDepth(len(m.eventChan))
		}
	}
}

// Shutdown stops accepting work and waits for buffered events to drain.
// Later PublishEvent calls are dropped. Safe to call more than once.
func (m *MessagePublisherManager) Shutdown() {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.eventChan)
	}
	m.mu.Unlock()

	m.wg.Wait()
}
