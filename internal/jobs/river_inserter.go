package jobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// RiverJobInserter implements JobInserter using the River client.
type RiverJobInserter struct {
	client      *river.Client[pgx.Tx]
	maxAttempts int
}

var _ JobInserter = (*RiverJobInserter)(nil)

// NewRiverJobInserter creates a River-based job inserter. maxAttempts <= 0 keeps River's default.
func NewRiverJobInserter(client *river.Client[pgx.Tx], maxAttempts int) *RiverJobInserter {
	return &RiverJobInserter{client: client, maxAttempts: maxAttempts}
}

// uniqueOpts dedupes on the args fields tagged river:"unique" while a job is still live.
// JobStatePending is required by River when ByState is set.
func uniqueOpts() river.UniqueOpts {
	return river.UniqueOpts{
		ByArgs: true,
		ByState: []rivertype.JobState{
			rivertype.JobStatePending,
			rivertype.JobStateAvailable,
			rivertype.JobStateRunning,
			rivertype.JobStateRetryable,
			rivertype.JobStateScheduled,
		},
	}
}

// InsertIndexJob enqueues an index_source job on the indexing queue.
func (r *RiverJobInserter) InsertIndexJob(ctx context.Context, args IndexSourceArgs) error {
	if _, err := r.client.Insert(ctx, args, &river.InsertOpts{
		Queue:       QueueIndexing,
		MaxAttempts: r.maxAttempts,
		UniqueOpts:  uniqueOpts(),
	}); err != nil {
		return fmt.Errorf("insert index job: %w", err)
	}

	return nil
}

// InsertGenerateJob enqueues a generate_course job on the generation queue.
func (r *RiverJobInserter) InsertGenerateJob(ctx context.Context, args GenerateCourseArgs) error {
	if _, err := r.client.Insert(ctx, args, &river.InsertOpts{
		Queue:       QueueGeneration,
		MaxAttempts: r.maxAttempts,
		UniqueOpts:  uniqueOpts(),
	}); err != nil {
		return fmt.Errorf("insert generate job: %w", err)
	}

	return nil
}
