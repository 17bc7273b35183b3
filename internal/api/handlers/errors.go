package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/edulane/coursegen/internal/api/response"
	"github.com/edulane/coursegen/internal/huberrors"
)

// respondServiceError maps pipeline errors to Problem Details. Anything unrecognised is a 500;
// the cause is logged, never echoed to the client.
func respondServiceError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, huberrors.ErrSourceNotFound):
		response.RespondNotFound(w, "Source not found")
	case errors.Is(err, huberrors.ErrNotFound):
		response.RespondNotFound(w, err.Error())
	case errors.Is(err, huberrors.ErrValidation):
		response.RespondBadRequest(w, err.Error())
	case errors.Is(err, huberrors.ErrMalformedLLMResponse):
		response.RespondBadGateway(w, "The language model returned an unusable response")
	case errors.Is(err, huberrors.ErrEmbeddingService):
		response.RespondServiceUnavailable(w, "Embedding service unavailable")
	case errors.Is(err, huberrors.ErrStoreUnavailable):
		response.RespondServiceUnavailable(w, "Storage unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		response.RespondServiceUnavailable(w, "Request timed out")
	default:
		logger.ErrorContext(ctx, op+" failed", "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")

		return
	}

	logger.WarnContext(ctx, op+" failed", "error", err)
}
