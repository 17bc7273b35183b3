package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/edulane/coursegen/internal/huberrors"
	"github.com/edulane/coursegen/internal/models"
)

// errNothingIndexed makes River retry a run in which every chunk failed, usually an embedding outage.
var errNothingIndexed = errors.New("no chunk was indexed")

// SourceIndexer indexes one source. *service.IndexingService satisfies it.
type SourceIndexer interface {
	IndexSource(ctx context.Context, sourceType, sourceID string) (*models.IndexSummary, error)
}

// IndexSourceWorker processes index_source jobs.
type IndexSourceWorker struct {
	river.WorkerDefaults[IndexSourceArgs]
	indexer SourceIndexer
	logger  *slog.Logger
}

// NewIndexSourceWorker creates an IndexSourceWorker.
func NewIndexSourceWorker(indexer SourceIndexer, logger *slog.Logger) *IndexSourceWorker {
	if logger == nil {
		logger = slog.Default()
	}

	return &IndexSourceWorker{indexer: indexer, logger: logger}
}

// Work indexes the source. A missing source cancels the job since a retry cannot fix it;
// partial chunk failures complete the job and are logged.
func (w *IndexSourceWorker) Work(ctx context.Context, job *river.Job[IndexSourceArgs]) error {
	args := job.Args

	summary, err := w.indexer.IndexSource(ctx, args.SourceType, args.SourceID)
	if err != nil {
		if errors.Is(err, huberrors.ErrSourceNotFound) {
			w.logger.WarnContext(ctx, "index job cancelled: source not found",
				"job_id", job.ID, "source_type", args.SourceType, "source_id", args.SourceID)

			return river.JobCancel(err)
		}

		return err
	}

	if summary.Total > 0 && summary.Indexed == 0 {
		return fmt.Errorf("%w: %d chunks failed", errNothingIndexed, summary.Failed)
	}

	w.logger.InfoContext(ctx, "index job completed",
		"job_id", job.ID,
		"source_type", args.SourceType,
		"source_id", args.SourceID,
		"indexed", summary.Indexed,
		"failed", summary.Failed,
	)

	return nil
}
