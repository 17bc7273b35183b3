package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/edulane/coursegen/internal/generation"
	"github.com/edulane/coursegen/internal/huberrors"
)

// DefaultGenerationTimeout bounds one generate_course attempt.
const DefaultGenerationTimeout = 30 * time.Minute

// CourseGenerator runs one generation. *generation.Orchestrator satisfies it.
type CourseGenerator interface {
	Run(ctx context.Context, req generation.RunRequest) (*generation.RunResult, error)
}

// GenerateCourseWorker processes generate_course jobs.
type GenerateCourseWorker struct {
	river.WorkerDefaults[GenerateCourseArgs]
	generator CourseGenerator
	timeout   time.Duration
	logger    *slog.Logger
}

// NewGenerateCourseWorker creates a GenerateCourseWorker. timeout <= 0 uses DefaultGenerationTimeout.
func NewGenerateCourseWorker(generator CourseGenerator, timeout time.Duration, logger *slog.Logger) *GenerateCourseWorker {
	if logger == nil {
		logger = slog.Default()
	}

	if timeout <= 0 {
		timeout = DefaultGenerationTimeout
	}

	return &GenerateCourseWorker{generator: generator, timeout: timeout, logger: logger}
}

// Timeout overrides River's default job timeout; a course takes many LLM calls.
func (w *GenerateCourseWorker) Timeout(*river.Job[GenerateCourseArgs]) time.Duration {
	return w.timeout
}

// Work runs the orchestrator. Failures that another attempt cannot fix (missing source,
// unusable model output after validation) cancel the job; anything else is retried.
func (w *GenerateCourseWorker) Work(ctx context.Context, job *river.Job[GenerateCourseArgs]) error {
	req := job.Args.RunRequest()
	req.OnProgress = func(p generation.BatchProgress) {
		w.logger.DebugContext(ctx, "lesson batch progress",
			"job_id", job.ID, "completed", p.Completed, "total", p.Total, "status", p.Node.Status)
	}

	res, err := w.generator.Run(ctx, req)
	if err != nil {
		if errors.Is(err, huberrors.ErrSourceNotFound) || errors.Is(err, huberrors.ErrMalformedLLMResponse) {
			w.logger.WarnContext(ctx, "generation job cancelled",
				"job_id", job.ID, "run_id", job.Args.RunID, "attempt", job.Attempt, "error", err)

			return river.JobCancel(err)
		}

		return err
	}

	w.logger.InfoContext(ctx, "generation job completed",
		"job_id", job.ID,
		"run_id", res.RunID,
		"lessons", len(res.LessonIDs),
		"quizzes", len(res.QuizIDs),
		"total_cost_usd", res.Totals.CostUSD,
	)

	return nil
}
