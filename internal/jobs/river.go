package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
)

// ClientParams configures NewClient.
type ClientParams struct {
	Indexer           SourceIndexer
	Generator         CourseGenerator
	IndexWorkers      int
	GenerationWorkers int
	MaxAttempts       int
	JobTimeout        time.Duration
	Logger            *slog.Logger
}

// NewClient builds a River client with the index and generation workers registered on their queues.
func NewClient(db *pgxpool.Pool, p ClientParams) (*river.Client[pgx.Tx], error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewIndexSourceWorker(p.Indexer, logger))
	river.AddWorker(workers, NewGenerateCourseWorker(p.Generator, p.JobTimeout, logger))

	client, err := river.NewClient(riverpgxv5.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			QueueIndexing:   {MaxWorkers: max(p.IndexWorkers, 1)},
			QueueGeneration: {MaxWorkers: max(p.GenerationWorkers, 1)},
		},
		Workers:      workers,
		MaxAttempts:  p.MaxAttempts,
		ErrorHandler: &ErrorHandler{Logger: logger},
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}

	return client, nil
}

// NewInsertClient builds a River client that only enqueues jobs. CLIs use it; the API process works them.
func NewInsertClient(db *pgxpool.Pool, logger *slog.Logger) (*river.Client[pgx.Tx], error) {
	client, err := river.NewClient(riverpgxv5.New(db), &river.Config{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("create river insert client: %w", err)
	}

	return client, nil
}

// Migrate brings the River tables up to date.
func Migrate(ctx context.Context, db *pgxpool.Pool, logger *slog.Logger) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(db), &rivermigrate.Config{Logger: logger})
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}

	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("river migrate: %w", err)
	}

	if logger != nil && len(res.Versions) > 0 {
		logger.InfoContext(ctx, "river migrations applied", "versions", len(res.Versions))
	}

	return nil
}
