package jobs

import (
	"context"
)

// JobInserter enqueues jobs. It lets handlers and CLIs enqueue work without knowing about River.
type JobInserter interface {
	// InsertIndexJob enqueues an index_source job. A job for the same source that is
	// still pending or running is not duplicated.
	InsertIndexJob(ctx context.Context, args IndexSourceArgs) error

	// InsertGenerateJob enqueues a generate_course job.
	InsertGenerateJob(ctx context.Context, args GenerateCourseArgs) error
}
