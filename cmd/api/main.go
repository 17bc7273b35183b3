// Command api serves the course generation HTTP API and runs the indexing and generation workers.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edulane/coursegen/internal/config"
	"github.com/edulane/coursegen/internal/jobs"
	"github.com/edulane/coursegen/internal/observability"
	"github.com/edulane/coursegen/internal/repository"
	"github.com/edulane/coursegen/pkg/database"
)

const shutdownTimeout = 30 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return 1
	}

	if err := cfg.RequireAPIKey(); err != nil {
		slog.Error("Invalid configuration", "error", err)

		return 1
	}

	logger := observability.SetupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.EnsureVectorExtension(ctx, cfg.DatabaseURL); err != nil {
		logger.Error("Failed to create vector extension", "error", err)

		return 1
	}

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.WithVectorTypes())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)

		return 1
	}
	defer db.Close()

	if err := repository.ApplySchema(ctx, db, cfg.EmbeddingDimensions); err != nil {
		logger.Error("Failed to apply schema", "error", err)

		return 1
	}

	if err := jobs.Migrate(ctx, db, logger); err != nil {
		logger.Error("Failed to migrate River tables", "error", err)

		return 1
	}

	app, err := NewApp(ctx, cfg, db, logger)
	if err != nil {
		logger.Error("Failed to start", "error", err)

		return 1
	}

	exitCode := 0

	if err := app.Run(ctx); err != nil {
		logger.Error("Server stopped with error", "error", err)

		exitCode = 1
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", "error", err)

		exitCode = 1
	}

	logger.Info("Server exited")

	return exitCode
}
