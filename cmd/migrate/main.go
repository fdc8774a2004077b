// migrate applies River's job tables and the catalog/ledger schema. It is safe to run on
// every deploy; all steps are idempotent.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/bitumen-hub/catalog-assistant/internal/observability"
	"github.com/bitumen-hub/catalog-assistant/pkg/database"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

func main() {
	os.Exit(run())
}

func run() int {
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

	if err := database.EnsureVectorExtension(ctx, databaseURL); err != nil {
		slog.Error("Failed to create vector extension", "error", err)

		return exitFailure
	}

	db, err := database.NewPostgresPool(ctx, databaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)

		return exitFailure
	}
	defer db.Close()

	migrator, err := rivermigrate.New(riverpgxv5.New(db), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)

		return exitFailure
	}

	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		slog.Error("River migration failed", "error", err)

		return exitFailure
	}

	for _, v := range res.Versions {
		slog.Info("River migration applied", "version", v.Version)
	}

	// Triggers must notify on the channel the API listens to.
	if err := database.ApplySchema(ctx, db, os.Getenv("CATALOG_LISTEN_CHANNEL")); err != nil {
		slog.Error("Schema migration failed", "error", err)

		return exitFailure
	}

	slog.Info("Migrations complete")

	return exitSuccess
}
