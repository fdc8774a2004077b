// reindex enqueues product_reindex jobs for every non-deleted product, or for the products
// given with -product. The API process runs the jobs; this command only inserts them.
//
// Usage:
//
//	go run ./cmd/reindex
//	go run ./cmd/reindex -product 42 -product 43
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/bitumen-hub/catalog-assistant/internal/observability"
	"github.com/bitumen-hub/catalog-assistant/internal/repository"
	"github.com/bitumen-hub/catalog-assistant/internal/service"
	"github.com/bitumen-hub/catalog-assistant/pkg/database"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

// productIDs collects repeated -product flags.
type productIDs []int64

func (p *productIDs) String() string {
	parts := make([]string, len(*p))
	for i, id := range *p {
		parts[i] = strconv.FormatInt(id, 10)
	}

	return strings.Join(parts, ",")
}

func (p *productIDs) Set(s string) error {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid product id %q", s)
	}

	*p = append(*p, id)

	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	var products productIDs

	flag.Var(&products, "product", "Product ID to reindex (repeatable); default is every active product")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	slog.SetDefault(observability.NewLogger(os.Stdout, os.Getenv("LOG_LEVEL")))

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		slog.Error("DATABASE_URL is required")

		return exitFailure
	}

	ctx := context.Background()

	db, err := database.NewPostgresPool(ctx, databaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)

		return exitFailure
	}
	defer db.Close()

	// Insert-only client: no queues or workers.
	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)

		return exitFailure
	}

	sync := service.NewCatalogSyncProvider(
		riverClient, repository.NewProductsRepository(db), service.EmbeddingsQueueName, nil,
	)

	enqueued, err := enqueue(ctx, sync, products)
	if err != nil {
		slog.Error("Reindex failed", "error", err, "enqueued", enqueued)

		return exitFailure
	}

	slog.Info("Reindex enqueued", "enqueued", enqueued)
	fmt.Printf("Enqueued %d reindex job(s).\n", enqueued)

	return exitSuccess
}

type reindexEnqueuer interface {
	EnqueueReindex(ctx context.Context, productID int64) error
	EnqueueRebuild(ctx context.Context) (int, error)
}

func enqueue(ctx context.Context, sync reindexEnqueuer, products []int64) (int, error) {
	if len(products) == 0 {
		n, err := sync.EnqueueRebuild(ctx)
		if err != nil {
			return n, fmt.Errorf("rebuild: %w", err)
		}

		return n, nil
	}

	for i, id := range products {
		if err := sync.EnqueueReindex(ctx, id); err != nil {
			return i, fmt.Errorf("product %d: %w", id, err)
		}
	}

	return len(products), nil
}
