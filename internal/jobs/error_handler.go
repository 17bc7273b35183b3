package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// ErrorHandler logs failed and panicking jobs with the source and run they belong to.
// Retries stay on River's schedule; a panicking generate_course job is cancelled.
type ErrorHandler struct {
	Logger *slog.Logger
}

var _ river.ErrorHandler = (*ErrorHandler)(nil)

func (h *ErrorHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}

	return h.Logger
}

// jobRef is the subset of IndexSourceArgs and GenerateCourseArgs worth logging.
type jobRef struct {
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
	RunID      string `json:"run_id"`
}

func jobAttrs(job *rivertype.JobRow) []any {
	attrs := []any{
		"job_kind", job.Kind,
		"job_id", job.ID,
		"queue", job.Queue,
		"attempt", job.Attempt,
		"max_attempts", job.MaxAttempts,
	}

	var ref jobRef
	if err := json.Unmarshal(job.EncodedArgs, &ref); err == nil {
		attrs = append(attrs, "source_type", ref.SourceType, "source_id", ref.SourceID)
		if ref.RunID != "" {
			attrs = append(attrs, "run_id", ref.RunID)
		}
	}

	return attrs
}

// HandleError logs at warn while attempts remain and at error on the last one.
func (h *ErrorHandler) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	attrs := append(jobAttrs(job), "error", err)

	if job.Attempt < job.MaxAttempts {
		h.logger().WarnContext(ctx, "job failed, will retry", attrs...)
	} else {
		h.logger().ErrorContext(ctx, "job failed, no attempts left", attrs...)
	}

	return nil
}

// HandlePanic logs the panic and cancels generate_course jobs.
func (h *ErrorHandler) HandlePanic(
	ctx context.Context, job *rivertype.JobRow, panicVal any, trace string,
) *river.ErrorHandlerResult {
	attrs := append(jobAttrs(job), "panic_value", panicVal, "stack_trace", trace)
	h.logger().ErrorContext(ctx, "job panicked", attrs...)

	if job.Kind == (GenerateCourseArgs{}).Kind() {
		return &river.ErrorHandlerResult{SetCancelled: true}
	}

	return nil
}
