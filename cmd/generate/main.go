// Command generate runs one course generation. With --local it needs no database: the source file
// is indexed in memory and the run result with all artifacts is printed as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v3"

	"github.com/edulane/coursegen/internal/api/validation"
	"github.com/edulane/coursegen/internal/config"
	"github.com/edulane/coursegen/internal/generation"
	"github.com/edulane/coursegen/internal/jobs"
	"github.com/edulane/coursegen/internal/models"
	"github.com/edulane/coursegen/internal/observability"
	"github.com/edulane/coursegen/internal/pipeline"
	"github.com/edulane/coursegen/internal/repository"
	"github.com/edulane/coursegen/internal/source"
	"github.com/edulane/coursegen/pkg/database"
)

var (
	errLocalNeedsFile = errors.New("--local requires --file")
	errLocalEnqueue   = errors.New("--local cannot be combined with --enqueue")
	errSourceRequired = errors.New("--id or --file is required")
)

type options struct {
	sourceType string
	sourceID   string
	file       string
	local      bool
	enqueue    bool
	output     string
	request    generation.RunRequest
}

// localOutput is what --local prints: the run result and every artifact it persisted.
type localOutput struct {
	Result    *generation.RunResult `json:"result"`
	Artifacts []models.Artifact     `json:"artifacts"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := command().Run(ctx, os.Args); err != nil {
		slog.Error("generate failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func command() *cli.Command {
	var opts options

	return &cli.Command{
		Name:  "generate",
		Usage: "Generate a course, lessons and quizzes from an indexed source",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Usage: "Source type (book, document, course)", Value: models.SourceTypeBook, Destination: &opts.sourceType},
			&cli.StringFlag{Name: "id", Usage: "Source ID (defaults to the file name when --file is set)", Destination: &opts.sourceID},
			&cli.StringFlag{Name: "file", Usage: "Load the source from a .txt, .md or .pdf file", Destination: &opts.file},
			&cli.BoolFlag{Name: "local", Usage: "Run fully in memory without a database (requires --file)", Destination: &opts.local},
			&cli.BoolFlag{Name: "enqueue", Usage: "Enqueue a generate_course job instead of running inline", Destination: &opts.enqueue},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write the JSON result to this file instead of stdout", Destination: &opts.output},
			&cli.StringFlag{Name: "audience", Usage: "Target audience (beginner, intermediate, advanced)", Destination: &opts.request.Structure.TargetAudience},
			&cli.StringFlag{Name: "mode", Usage: "Course mode (sequential, modular)", Destination: &opts.request.Structure.Mode},
			&cli.IntFlag{Name: "modules", Usage: "Number of modules", Destination: &opts.request.Structure.ModuleCount},
			&cli.IntFlag{Name: "lessons-per-module", Usage: "Lessons per module", Destination: &opts.request.Structure.LessonsPerModule},
			&cli.StringFlag{Name: "tone", Usage: "Lesson tone (conversational, academic, practical)", Destination: &opts.request.Content.Tone},
			&cli.IntFlag{Name: "target-words", Usage: "Target words per lesson", Destination: &opts.request.Content.TargetWords},
			&cli.BoolFlag{Name: "examples", Usage: "Include worked examples in lessons", Value: true, Destination: &opts.request.Content.IncludeExamples},
			&cli.BoolFlag{Name: "exercises", Usage: "Include exercises in lessons", Destination: &opts.request.Content.IncludeExercises},
			&cli.BoolFlag{Name: "quizzes", Usage: "Generate one quiz per module", Destination: &opts.request.GenerateQuizzes},
			&cli.IntFlag{Name: "questions", Usage: "Questions per quiz", Destination: &opts.request.Quiz.QuestionCount},
		},
		Action: func(ctx context.Context, _ *cli.Command) error {
			opts.request.Content.TargetAudience = opts.request.Structure.TargetAudience

			return run(ctx, opts)
		},
	}
}

func (o options) validate() error {
	if o.local && o.file == "" {
		return errLocalNeedsFile
	}

	if o.local && o.enqueue {
		return errLocalEnqueue
	}

	if o.sourceID == "" && o.file == "" {
		return errSourceRequired
	}

	if !models.IsValidSourceType(o.sourceType) {
		return fmt.Errorf("unsupported source type %q", o.sourceType)
	}

	if err := validation.ValidateStruct(o.request.Structure); err != nil {
		return fmt.Errorf("structure: %w", err)
	}

	if err := validation.ValidateStruct(o.request.Content); err != nil {
		return fmt.Errorf("content: %w", err)
	}

	if err := validation.ValidateStruct(o.request.Quiz); err != nil {
		return fmt.Errorf("quiz: %w", err)
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

	var src *models.Source

	if opts.file != "" {
		src, err = source.NewFileLoader(logger).LoadFile(opts.file, opts.sourceType, opts.sourceID)
		if err != nil {
			return fmt.Errorf("load %s: %w", opts.file, err)
		}

		opts.sourceID = src.ID
	}

	opts.request.RunID = uuid.Must(uuid.NewV7())
	opts.request.SourceType = opts.sourceType
	opts.request.SourceID = opts.sourceID
	opts.request.OnStateChange = func(state generation.RunState) {
		logger.Info("Run state", "run_id", opts.request.RunID, "state", state)
	}

	if opts.local {
		return runLocal(ctx, cfg, src, opts, logger)
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	stores := pipeline.PostgresStores(db)

	if src != nil {
		if err := stores.Sources.Save(ctx, src); err != nil {
			return fmt.Errorf("save source: %w", err)
		}
	}

	if opts.enqueue {
		return enqueue(ctx, cfg, db, opts, logger)
	}

	p, err := pipeline.New(ctx, pipeline.Params{Config: cfg, Stores: stores, Logger: logger})
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	if src != nil {
		if _, err := p.Indexer.IndexLoaded(ctx, src); err != nil {
			return fmt.Errorf("index source: %w", err)
		}
	}

	result, runErr := p.Orchestrator.Run(ctx, opts.request)
	if err := writeJSON(opts.output, result); err != nil {
		return err
	}

	return runErr
}

func runLocal(ctx context.Context, cfg *config.Config, src *models.Source, opts options, logger *slog.Logger) error {
	stores, err := pipeline.MemoryStores(source.NewMemoryStore(src))
	if err != nil {
		return err
	}

	p, err := pipeline.New(ctx, pipeline.Params{Config: cfg, Stores: stores, Logger: logger})
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	summary, err := p.Indexer.IndexLoaded(ctx, src)
	if err != nil {
		return fmt.Errorf("index source: %w", err)
	}

	logger.Info("Source indexed", "indexed", summary.Indexed, "failed", summary.Failed)

	result, runErr := p.Orchestrator.Run(ctx, opts.request)

	artifacts, err := stores.Artifacts.List(ctx, &models.ListArtifactsFilters{RunID: &opts.request.RunID})
	if err != nil {
		return fmt.Errorf("list artifacts: %w", err)
	}

	if err := writeJSON(opts.output, localOutput{Result: result, Artifacts: artifacts}); err != nil {
		return err
	}

	return runErr
}

func enqueue(ctx context.Context, cfg *config.Config, db *pgxpool.Pool, opts options, logger *slog.Logger) error {
	if err := jobs.Migrate(ctx, db, logger); err != nil {
		return fmt.Errorf("migrate River tables: %w", err)
	}

	riverClient, err := jobs.NewInsertClient(db, logger)
	if err != nil {
		return err
	}

	inserter := jobs.NewRiverJobInserter(riverClient, cfg.RiverMaxAttempts)

	if opts.file != "" {
		if err := inserter.InsertIndexJob(ctx, jobs.IndexSourceArgs{SourceType: opts.sourceType, SourceID: opts.sourceID}); err != nil {
			return err
		}
	}

	req := opts.request
	if err := inserter.InsertGenerateJob(ctx, jobs.GenerateCourseArgs{
		RunID:           req.RunID,
		SourceType:      req.SourceType,
		SourceID:        req.SourceID,
		Structure:       req.Structure,
		Content:         req.Content,
		GenerateQuizzes: req.GenerateQuizzes,
		Quiz:            req.Quiz,
	}); err != nil {
		return err
	}

	fmt.Printf("Enqueued generation run %s for %s/%s.\n", req.RunID, req.SourceType, req.SourceID)

	return nil
}

func writeJSON(path string, v any) (err error) {
	var w io.Writer = os.Stdout

	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}

		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

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
