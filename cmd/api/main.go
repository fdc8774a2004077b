// Command api serves catalog search, questions, and feedback over HTTP and keeps the
// vector index in sync with catalog changes.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/bitumen-hub/catalog-assistant/internal/config"
	"github.com/bitumen-hub/catalog-assistant/internal/observability"
	"github.com/bitumen-hub/catalog-assistant/pkg/database"
)

const (
	exitSuccess     = 0
	exitFailure     = 1
	shutdownTimeout = 30 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return exitFailure
	}

	slog.SetDefault(observability.NewLogger(os.Stdout, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []database.PoolOption{database.WithAfterConnect(pgxvec.RegisterTypes)}
	if cfg.DatabaseMaxConns > 0 {
		//nolint:gosec // G115: connection counts are small
		opts = append(opts, database.WithMaxConns(int32(cfg.DatabaseMaxConns)))
	}

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, opts...)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)

		return exitFailure
	}
	defer db.Close()

	app, err := NewApp(ctx, cfg, db)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)

		return exitFailure
	}

	code := exitSuccess
	if err := app.Run(ctx); err != nil {
		slog.Error("Application stopped with error", "error", err)

		code = exitFailure
	}

	slog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown failed", "error", err)

		code = exitFailure
	}

	slog.Info("Server exited")

	return code
}
