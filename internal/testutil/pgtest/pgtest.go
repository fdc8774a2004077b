// Package pgtest starts a disposable pgvector PostgreSQL for integration tests.
package pgtest

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/bitumen-hub/catalog-assistant/pkg/database"
)

const image = "pgvector/pgvector:pg17"

// NewPool starts a container, applies the schema, and returns a pool with pgvector types registered.
// The test is skipped in -short mode or when no container runtime is available.
func NewPool(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in -short mode")
	}

	ctx := context.Background()

	ctr, err := postgres.Run(ctx, image,
		postgres.WithDatabase("catalog"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)

	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	if err := database.EnsureVectorExtension(ctx, dsn); err != nil {
		t.Fatalf("vector extension: %v", err)
	}

	pool, err := database.NewPostgresPool(ctx, dsn, database.WithAfterConnect(pgxvec.RegisterTypes))
	if err != nil {
		t.Fatalf("pool: %v", err)
	}

	t.Cleanup(pool.Close)

	if err := database.ApplySchema(ctx, pool, database.DefaultCatalogChannel); err != nil {
		t.Fatalf("schema: %v", err)
	}

	return pool, dsn
}
