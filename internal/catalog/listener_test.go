package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitumen-hub/catalog-assistant/internal/datatypes"
	"github.com/bitumen-hub/catalog-assistant/internal/models"
	"github.com/bitumen-hub/catalog-assistant/internal/testutil/pgtest"
)

func TestParseNotification(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    models.CatalogEvent
		wantErr bool
	}{
		{
			name:    "product update",
			payload: `{"event":"updated","product_id":42,"name":"Мастика Т-65","is_deleted":false}`,
			want:    models.CatalogEvent{Event: datatypes.ProductUpdated, ProductID: 42, Name: "Мастика Т-65"},
		},
		{
			name:    "soft delete",
			payload: `{"event":"updated","product_id":42,"name":"Мастика Т-65","is_deleted":true}`,
			want: models.CatalogEvent{
				Event: datatypes.ProductUpdated, ProductID: 42, Name: "Мастика Т-65", IsDeleted: true,
			},
		},
		{
			name:    "file removed",
			payload: `{"event":"file_removed","product_id":7,"file_path":"/data/t65.txt"}`,
			want:    models.CatalogEvent{Event: datatypes.ProductFileRemoved, ProductID: 7, FilePath: "/data/t65.txt"},
		},
		{
			name:    "long event name",
			payload: `{"event":"product.deleted","product_id":3}`,
			want:    models.CatalogEvent{Event: datatypes.ProductDeleted, ProductID: 3},
		},
		{name: "not json", payload: `updated 42`, wantErr: true},
		{name: "unknown event", payload: `{"event":"renamed","product_id":1}`, wantErr: true},
		{name: "missing event", payload: `{"product_id":1,"name":"Мастика Т-65"}`, wantErr: true},
		{name: "missing product id", payload: `{"event":"created"}`, wantErr: true},
		{name: "negative product id", payload: `{"event":"created","product_id":-5}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNotification(tt.payload)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidNotification)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.CatalogEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, event models.CatalogEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)
}

func (p *recordingPublisher) snapshot() []models.CatalogEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]models.CatalogEvent(nil), p.events...)
}

func TestListener_Integration(t *testing.T) {
	pool, _ := pgtest.NewPool(t)
	pub := &recordingPublisher{}
	l := NewListener(pool, "catalog_events", pub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- l.Run(ctx) }()

	// Writes made before LISTEN is active are not delivered, so keep writing until one arrives.
	var productID int64

	require.Eventually(t, func() bool {
		err := pool.QueryRow(context.Background(),
			`INSERT INTO products (name, description) VALUES ('Битум БНД 70/100', 'дорожный') RETURNING id`,
		).Scan(&productID)
		require.NoError(t, err)

		return len(pub.snapshot()) > 0
	}, 10*time.Second, 100*time.Millisecond)

	_, err := pool.Exec(context.Background(), `UPDATE products SET is_deleted = TRUE WHERE id = $1`, productID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, e := range pub.snapshot() {
			if e.ProductID == productID && e.IsDeleted {
				return true
			}
		}

		return false
	}, 5*time.Second, 50*time.Millisecond)

	first := pub.snapshot()[0]
	assert.Equal(t, datatypes.ProductCreated, first.Event)
	assert.False(t, first.Removes())

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop after cancel")
	}
}
