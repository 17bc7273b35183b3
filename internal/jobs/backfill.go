package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

// Querier is the part of *pgxpool.Pool the backfill and queue depth poller need.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// BackfillStats holds statistics from a backfill operation.
type BackfillStats struct {
	Enqueued int `json:"enqueued"`
	Errors   int `json:"errors"`
}

// EnqueueUnindexed enqueues an index_source job for every stored source that has no chunks
// in the vector store. Sources that fail to enqueue are counted and skipped.
func EnqueueUnindexed(ctx context.Context, db Querier, inserter JobInserter, logger *slog.Logger) (*BackfillStats, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rows, err := db.Query(ctx, `
		SELECT s.source_type, s.source_id
		FROM sources s
		WHERE NOT EXISTS (
			SELECT 1 FROM content_embeddings e
			WHERE e.content_type = s.source_type AND e.content_id = s.source_id
		)
		ORDER BY s.source_type, s.source_id`)
	if err != nil {
		return nil, fmt.Errorf("query unindexed sources: %w", err)
	}
	defer rows.Close()

	stats := &BackfillStats{}

	for rows.Next() {
		var args IndexSourceArgs
		if err := rows.Scan(&args.SourceType, &args.SourceID); err != nil {
			logger.ErrorContext(ctx, "failed to scan source", "error", err)

			stats.Errors++

			continue
		}

		if err := inserter.InsertIndexJob(ctx, args); err != nil {
			logger.ErrorContext(ctx, "failed to enqueue index job",
				"source_type", args.SourceType, "source_id", args.SourceID, "error", err)

			stats.Errors++

			continue
		}

		stats.Enqueued++
	}

	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate unindexed sources: %w", err)
	}

	return stats, nil
}
