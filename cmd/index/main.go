// Command index loads sources into the database and indexes them for retrieval.
// By default it enqueues index_source jobs for the API process to work; --sync indexes inline.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v3"

	"github.com/edulane/coursegen/internal/config"
	"github.com/edulane/coursegen/internal/jobs"
	"github.com/edulane/coursegen/internal/models"
	"github.com/edulane/coursegen/internal/observability"
	"github.com/edulane/coursegen/internal/pipeline"
	"github.com/edulane/coursegen/internal/repository"
	"github.com/edulane/coursegen/internal/source"
	"github.com/edulane/coursegen/pkg/database"
)

var (
	errSourceRequired = errors.New("--id or --file is required unless --unindexed is set")
	errSyncUnindexed  = errors.New("--sync cannot be combined with --unindexed")
)

type options struct {
	sourceType string
	sourceID   string
	file       string
	unindexed  bool
	sync       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := command().Run(ctx, os.Args); err != nil {
		slog.Error("index failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func command() *cli.Command {
	var opts options

	return &cli.Command{
		Name:  "index",
		Usage: "Load and index sources for retrieval",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "type",
				Usage:       "Source type (book, document, course)",
				Value:       models.SourceTypeBook,
				Destination: &opts.sourceType,
			},
			&cli.StringFlag{
				Name:        "id",
				Usage:       "Source ID (defaults to the file name when --file is set)",
				Destination: &opts.sourceID,
			},
			&cli.StringFlag{
				Name:        "file",
				Usage:       "Load the source from a .txt, .md or .pdf file before indexing",
				Destination: &opts.file,
			},
			&cli.BoolFlag{
				Name:        "unindexed",
				Usage:       "Enqueue every stored source that has no chunks yet",
				Destination: &opts.unindexed,
			},
			&cli.BoolFlag{
				Name:        "sync",
				Usage:       "Index inline instead of enqueueing a job",
				Destination: &opts.sync,
			},
		},
		Action: func(ctx context.Context, _ *cli.Command) error {
			return run(ctx, opts)
		},
	}
}

func (o options) validate() error {
	if o.unindexed {
		if o.sync {
			return errSyncUnindexed
		}

		return nil
	}

	if o.sourceID == "" && o.file == "" {
		return errSourceRequired
	}

	if !models.IsValidSourceType(o.sourceType) {
		return fmt.Errorf("unsupported source type %q", o.sourceType)
	}

	return nil
}

func run(ctx context.Context, opts options) error {
	if err := opts.validate(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := observability.SetupLogging(cfg.LogLevel)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	stores := pipeline.PostgresStores(db)

	if opts.file != "" {
		src, err := source.NewFileLoader(logger).LoadFile(opts.file, opts.sourceType, opts.sourceID)
		if err != nil {
			return fmt.Errorf("load %s: %w", opts.file, err)
		}

		if err := stores.Sources.Save(ctx, src); err != nil {
			return fmt.Errorf("save source: %w", err)
		}

		opts.sourceID = src.ID

		logger.Info("Source stored", "source_type", src.Type, "source_id", src.ID, "pages", len(src.Pages))
	}

	if opts.sync {
		p, err := pipeline.New(ctx, pipeline.Params{Config: cfg, Stores: stores, Logger: logger})
		if err != nil {
			return fmt.Errorf("build pipeline: %w", err)
		}

		summary, err := p.Indexer.IndexSource(ctx, opts.sourceType, opts.sourceID)
		if err != nil {
			return fmt.Errorf("index source: %w", err)
		}

		logger.Info("Index complete", "indexed", summary.Indexed, "failed", summary.Failed, "deleted", summary.Deleted)

		fmt.Printf("Indexed %d of %d chunk(s) for %s/%s.\n", summary.Indexed, summary.Total, opts.sourceType, opts.sourceID)

		return nil
	}

	if err := jobs.Migrate(ctx, db, logger); err != nil {
		return fmt.Errorf("migrate River tables: %w", err)
	}

	riverClient, err := jobs.NewInsertClient(db, logger)
	if err != nil {
		return err
	}

	inserter := jobs.NewRiverJobInserter(riverClient, cfg.RiverMaxAttempts)

	if opts.unindexed {
		stats, err := jobs.EnqueueUnindexed(ctx, db, inserter, logger)
		if err != nil {
			return fmt.Errorf("enqueue unindexed sources: %w", err)
		}

		logger.Info("Backfill complete", "enqueued", stats.Enqueued, "errors", stats.Errors)

		fmt.Printf("Enqueued %d index job(s), %d error(s).\n", stats.Enqueued, stats.Errors)

		return nil
	}

	if err := inserter.InsertIndexJob(ctx, jobs.IndexSourceArgs{SourceType: opts.sourceType, SourceID: opts.sourceID}); err != nil {
		return err
	}

	fmt.Printf("Enqueued index job for %s/%s.\n", opts.sourceType, opts.sourceID)

	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := database.EnsureVectorExtension(ctx, cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("create vector extension: %w", err)
	}

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.WithVectorTypes())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := repository.ApplySchema(ctx, db, cfg.EmbeddingDimensions); err != nil {
		db.Close()

		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return db, nil
}
