// Package catalog receives product mutation notifications from Postgres and hands
// them to the sync pipeline.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bitumen-hub/catalog-assistant/internal/models"
	"github.com/bitumen-hub/catalog-assistant/internal/service"
)

// Reconnect backoff bounds.
const (
	initialReconnectDelay = time.Second
	maxReconnectDelay     = 30 * time.Second
)

// ErrInvalidNotification is returned for payloads that are not catalog events.
var ErrInvalidNotification = errors.New("invalid catalog notification")

// Listener holds a dedicated connection in LISTEN mode and publishes each notification.
// Notifications are sent by triggers after commit, so a rolled-back write never reaches it.
type Listener struct {
	pool      *pgxpool.Pool
	channel   string
	publisher service.MessagePublisher
	logger    *slog.Logger
}

// NewListener creates a Listener for channel.
func NewListener(pool *pgxpool.Pool, channel string, publisher service.MessagePublisher, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}

	return &Listener{pool: pool, channel: channel, publisher: publisher, logger: logger}
}

// Run listens until ctx is cancelled, reconnecting with capped exponential backoff.
// Notifications sent while disconnected are lost; a rebuild repairs the index.
func (l *Listener) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialReconnectDelay
	b.MaxInterval = maxReconnectDelay
	b.MaxElapsedTime = 0

	for {
		err := l.listen(ctx, b.Reset)
		if ctx.Err() != nil {
			return nil
		}

		delay := b.NextBackOff()
		l.logger.Warn("catalog listener disconnected, reconnecting",
			"channel", l.channel,
			"retry_in", delay.String(),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// listen runs one LISTEN session. connected is called once the session is established.
func (l *Listener) listen(ctx context.Context, connected func()) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	// The connection carries LISTEN state; destroy it instead of returning it to the pool.
	defer func() {
		_ = conn.Conn().Close(context.Background())
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}

	connected()
	l.logger.Info("catalog listener started", "channel", l.channel)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		event, err := ParseNotification(n.Payload)
		if err != nil {
			l.logger.Warn("catalog listener: bad payload", "payload", n.Payload, "error", err)

			continue
		}

		l.publisher.PublishEvent(ctx, event)
	}
}

// ParseNotification decodes a trigger payload such as
// {"event":"updated","product_id":42,"name":"...","is_deleted":true}.
func ParseNotification(payload string) (models.CatalogEvent, error) {
	var event models.CatalogEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return models.CatalogEvent{}, fmt.Errorf("%w: %w", ErrInvalidNotification, err)
	}

	if !event.Event.IsValid() {
		return models.CatalogEvent{}, fmt.Errorf("%w: event is required", ErrInvalidNotification)
	}

	if event.ProductID <= 0 {
		return models.CatalogEvent{}, fmt.Errorf("%w: product_id must be positive", ErrInvalidNotification)
	}

	return event, nil
}
