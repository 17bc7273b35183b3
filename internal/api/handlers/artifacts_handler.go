package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/edulane/coursegen/internal/api/response"
	"github.com/edulane/coursegen/internal/api/validation"
	"github.com/edulane/coursegen/internal/generation"
	"github.com/edulane/coursegen/internal/models"
)

// ArtifactService defines the artifact operations the API exposes.
type ArtifactService interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Artifact, error)
	List(ctx context.Context, filters *models.ListArtifactsFilters) ([]models.Artifact, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ArtifactStatus) (*models.Artifact, error)
}

// DefaultListLimit is used when the list request does not set a limit.
const DefaultListLimit = 100

// ArtifactsHandler handles HTTP requests for generated artifacts.
type ArtifactsHandler struct {
	service ArtifactService
	logger  *slog.Logger
}

// NewArtifactsHandler creates a new artifacts handler.
func NewArtifactsHandler(service ArtifactService, logger *slog.Logger) *ArtifactsHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &ArtifactsHandler{service: service, logger: logger}
}

func parseArtifactID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := r.PathValue("id")
	if idStr == "" {
		response.RespondBadRequest(w, "Artifact ID is required")

		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		response.RespondBadRequest(w, "Invalid UUID format")

		return uuid.Nil, false
	}

	return id, true
}

// Get handles GET /v1/artifacts/{id}
// @Summary Get an artifact by ID
// @Tags Artifacts
// @Produce json
// @Param id path string true "Artifact ID (UUID)"
// @Success 200 {object} Artifact
// @Failure 400 {object} ProblemDetails "Invalid UUID format"
// @Failure 404 {object} ProblemDetails "Artifact not found"
// @Security BearerAuth
// @Router /v1/artifacts/{id} [get]
func (h *ArtifactsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseArtifactID(w, r)
	if !ok {
		return
	}

	artifact, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(r.Context(), w, h.logger, "get artifact", err)

		return
	}

	response.RespondJSON(w, http.StatusOK, artifact)
}

// List handles GET /v1/artifacts
// @Summary List artifacts with filters
// @Description Lists artifacts, newest first, filtered by source, content type or run
// @Tags Artifacts
// @Produce json
// @Param source_type query string false "Filter by source type"
// @Param source_id query string false "Filter by source ID"
// @Param content_type query string false "Filter by content type (analysis, course, lesson, quiz)"
// @Param run_id query string false "Filter by generation run"
// @Param limit query int false "Number of results to return (max 1000)"
// @Param offset query int false "Number of results to skip"
// @Success 200 {object} ListArtifactsResponse
// @Failure 400 {object} ProblemDetails
// @Security BearerAuth
// @Router /v1/artifacts [get]
func (h *ArtifactsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := &models.ListArtifactsFilters{}
	if err := validation.ValidateAndDecodeQueryParams(r, filters); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	if filters.Limit <= 0 {
		filters.Limit = DefaultListLimit
	}

	artifacts, err := h.service.List(r.Context(), filters)
	if err != nil {
		respondServiceError(r.Context(), w, h.logger, "list artifacts", err)

		return
	}

	if artifacts == nil {
		artifacts = []models.Artifact{}
	}

	response.RespondJSON(w, http.StatusOK, models.ListArtifactsResponse{
		Data:   artifacts,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	})
}

// UpdateStatus handles PATCH /v1/artifacts/{id}/status.
func (h *ArtifactsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseArtifactID(w, r)
	if !ok {
		return
	}

	var req models.UpdateArtifactStatusRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	artifact, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		respondServiceError(r.Context(), w, h.logger, "update artifact status", err)

		return
	}

	h.logger.InfoContext(r.Context(), "artifact status updated", "artifact_id", id, "status", req.Status)

	response.RespondJSON(w, http.StatusOK, artifact)
}

// ValidateAnswer handles POST /v1/artifacts/{id}/questions/{index}/validate
// @Summary Check an answer against a quiz question
// @Description Multiple choice and true/false answers are scored; short answer and essay require manual review
// @Tags Artifacts
// @Accept json
// @Produce json
// @Param id path string true "Quiz artifact ID (UUID)"
// @Param index path int true "Zero-based question index"
// @Param request body ValidateAnswerRequest true "Submitted answer"
// @Success 200 {object} AnswerResult
// @Failure 404 {object} ProblemDetails "Artifact or question not found"
// @Failure 409 {object} ProblemDetails "Artifact is not a quiz"
// @Security BearerAuth
// @Router /v1/artifacts/{id}/questions/{index}/validate [post]
func (h *ArtifactsHandler) ValidateAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := parseArtifactID(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		response.RespondBadRequest(w, "Question index must be a non-negative integer")

		return
	}

	var req models.ValidateAnswerRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	artifact, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(r.Context(), w, h.logger, "validate answer", err)

		return
	}

	if artifact.ContentType != models.ContentTypeQuiz {
		response.RespondConflict(w, fmt.Sprintf("artifact is a %s, not a quiz", artifact.ContentType))

		return
	}

	var quiz models.Quiz
	if err := json.Unmarshal(artifact.GeneratedData, &quiz); err != nil {
		h.logger.ErrorContext(r.Context(), "validate answer: stored quiz is unreadable",
			"artifact_id", id, "error", err)
		response.RespondInternalServerError(w, "Stored quiz is unreadable")

		return
	}

	if index >= len(quiz.Questions) {
		response.RespondNotFound(w, fmt.Sprintf("quiz has %d questions", len(quiz.Questions)))

		return
	}

	response.RespondJSON(w, http.StatusOK, generation.ValidateAnswer(quiz.Questions[index], req.Answer))
}
