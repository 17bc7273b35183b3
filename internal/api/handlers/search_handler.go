package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/edulane/coursegen/internal/api/response"
	"github.com/edulane/coursegen/internal/api/validation"
	"github.com/edulane/coursegen/internal/models"
	"github.com/edulane/coursegen/internal/service"
)

// SearchService defines the interface for semantic search over indexed chunks.
type SearchService interface {
	Search(ctx context.Context, req *models.SearchRequest) ([]models.SimilarityResult, error)
}

// SearchHandler handles HTTP requests for semantic search.
type SearchHandler struct {
	service SearchService
	logger  *slog.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(service SearchService, logger *slog.Logger) *SearchHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &SearchHandler{service: service, logger: logger}
}

// Search handles POST /v1/search
// @Summary Semantic search
// @Description Embeds the query and returns the most similar indexed chunks, best first
// @Tags Search
// @Accept json
// @Produce json
// @Param request body SearchRequest true "Query, optional threshold, limit and content filters"
// @Success 200 {object} SearchResponse
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails "Unauthorized - Invalid or missing API key"
// @Failure 503 {object} ProblemDetails "Embedding service or vector store unavailable"
// @Security BearerAuth
// @Router /v1/search [post]
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	results, err := h.service.Search(r.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrEmptyQuery) || errors.Is(err, service.ErrInvalidThreshold) {
			response.RespondBadRequest(w, err.Error())

			return
		}

		respondServiceError(r.Context(), w, h.logger, "search", err)

		return
	}

	if results == nil {
		results = []models.SimilarityResult{}
	}

	response.RespondJSON(w, http.StatusOK, models.SearchResponse{Results: results})
}
