package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river/rivertype"

	"github.com/edulane/coursegen/internal/observability"
)

// DefaultQueueDepthInterval is how often RunQueueDepthPoller samples the queue.
const DefaultQueueDepthInterval = 15 * time.Second

// QueueDepth counts jobs waiting on the indexing and generation queues.
func QueueDepth(ctx context.Context, db Querier) (int, error) {
	var count int

	err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM river_job WHERE queue = ANY($1) AND state IN ($2, $3, $4)`,
		[]string{QueueIndexing, QueueGeneration},
		string(rivertype.JobStateAvailable), string(rivertype.JobStateRetryable), string(rivertype.JobStateScheduled),
	).Scan(&count)

	return count, err
}

// RunQueueDepthPoller updates the queue depth gauge every interval until ctx is done.
func RunQueueDepthPoller(
	ctx context.Context, db Querier, metrics observability.GenerationMetrics, interval time.Duration, logger *slog.Logger,
) {
	if metrics == nil {
		return
	}

	if logger == nil {
		logger = slog.Default()
	}

	if interval <= 0 {
		interval = DefaultQueueDepthInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	update := func() {
		depth, err := QueueDepth(ctx, db)
		if err != nil {
			logger.WarnContext(ctx, "river queue depth poll failed", "error", err)

			return
		}

		metrics.SetRiverQueueDepth(depth)
	}

	update()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}
