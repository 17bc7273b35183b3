package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/edulane/coursegen/internal/api/response"
	"github.com/edulane/coursegen/internal/api/validation"
	"github.com/edulane/coursegen/internal/generation"
	"github.com/edulane/coursegen/internal/jobs"
	"github.com/edulane/coursegen/internal/models"
)

// SourceStore loads and saves source documents.
type SourceStore interface {
	Load(ctx context.Context, sourceType, sourceID string) (*models.Source, error)
	Save(ctx context.Context, src *models.Source) error
}

// SourcesHandler handles uploading sources and enqueueing indexing and generation jobs.
type SourcesHandler struct {
	sources  SourceStore
	inserter jobs.JobInserter
	logger   *slog.Logger
}

// NewSourcesHandler creates a new sources handler.
func NewSourcesHandler(sources SourceStore, inserter jobs.JobInserter, logger *slog.Logger) *SourcesHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &SourcesHandler{sources: sources, inserter: inserter, logger: logger}
}

// PutSourceRequest is the body of PUT /v1/sources/{type}/{id}.
type PutSourceRequest struct {
	Title string        `json:"title" validate:"required,no_null_bytes,max=500"`
	Pages []models.Page `json:"pages" validate:"required,min=1,dive"`
}

// GenerationRequest is the body of POST /v1/sources/{type}/{id}/generations.
type GenerationRequest struct {
	Structure       generation.StructureConfig `json:"structure"`
	Content         generation.ContentConfig   `json:"content"`
	GenerateQuizzes bool                       `json:"generate_quizzes"`
	Quiz            generation.QuizConfig      `json:"quiz"`
}

// AcceptedResponse is returned when a job has been enqueued.
type AcceptedResponse struct {
	Status     string     `json:"status"`
	SourceType string     `json:"source_type"`
	SourceID   string     `json:"source_id"`
	RunID      *uuid.UUID `json:"run_id,omitempty"`
}

const statusQueued = "queued"

// sourcePath reads and checks the {type} and {id} path values.
func sourcePath(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	sourceType := r.PathValue("type")
	sourceID := strings.TrimSpace(r.PathValue("id"))

	if !models.IsValidSourceType(sourceType) {
		response.RespondBadRequest(w, "source type must be one of: book, document, course")

		return "", "", false
	}

	if sourceID == "" || len(sourceID) > 255 || strings.ContainsRune(sourceID, 0) {
		response.RespondBadRequest(w, "Invalid source ID")

		return "", "", false
	}

	return sourceType, sourceID, true
}

// Put handles PUT /v1/sources/{type}/{id}
// @Summary Create or replace a source document
// @Tags Sources
// @Accept json
// @Produce json
// @Param type path string true "Source type (book, document, course)"
// @Param id path string true "Source ID"
// @Param request body PutSourceRequest true "Title and pages"
// @Success 200 {object} Source
// @Failure 400 {object} ProblemDetails
// @Security BearerAuth
// @Router /v1/sources/{type}/{id} [put]
func (h *SourcesHandler) Put(w http.ResponseWriter, r *http.Request) {
	sourceType, sourceID, ok := sourcePath(w, r)
	if !ok {
		return
	}

	var req PutSourceRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	src := &models.Source{Type: sourceType, ID: sourceID, Title: req.Title, Pages: req.Pages}
	if strings.TrimSpace(src.Text()) == "" {
		response.RespondBadRequest(w, "source has no text")

		return
	}

	if err := h.sources.Save(r.Context(), src); err != nil {
		respondServiceError(r.Context(), w, h.logger, "save source", err)

		return
	}

	h.logger.InfoContext(r.Context(), "source saved",
		"source_type", sourceType, "source_id", sourceID, "pages", len(src.Pages))

	response.RespondJSON(w, http.StatusOK, src)
}

// Index handles POST /v1/sources/{type}/{id}/index
// @Summary Enqueue indexing of a source
// @Description Chunks, embeds and stores the source in the background
// @Tags Sources
// @Produce json
// @Success 202 {object} AcceptedResponse
// @Failure 404 {object} ProblemDetails "Source not found"
// @Security BearerAuth
// @Router /v1/sources/{type}/{id}/index [post]
func (h *SourcesHandler) Index(w http.ResponseWriter, r *http.Request) {
	sourceType, sourceID, ok := sourcePath(w, r)
	if !ok {
		return
	}

	if _, err := h.sources.Load(r.Context(), sourceType, sourceID); err != nil {
		respondServiceError(r.Context(), w, h.logger, "index source", err)

		return
	}

	if err := h.inserter.InsertIndexJob(r.Context(), jobs.IndexSourceArgs{
		SourceType: sourceType,
		SourceID:   sourceID,
	}); err != nil {
		respondServiceError(r.Context(), w, h.logger, "enqueue index job", err)

		return
	}

	response.RespondJSON(w, http.StatusAccepted, AcceptedResponse{
		Status: statusQueued, SourceType: sourceType, SourceID: sourceID,
	})
}

// Generate handles POST /v1/sources/{type}/{id}/generations. The run ID in the response
// can be used as the run_id filter on GET /v1/artifacts.
func (h *SourcesHandler) Generate(w http.ResponseWriter, r *http.Request) {
	sourceType, sourceID, ok := sourcePath(w, r)
	if !ok {
		return
	}

	var req GenerationRequest
	if r.ContentLength != 0 {
		if err := validation.DecodeJSON(r, &req); err != nil {
			response.RespondBadRequest(w, "Invalid request body")

			return
		}
	}

	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	if _, err := h.sources.Load(r.Context(), sourceType, sourceID); err != nil {
		respondServiceError(r.Context(), w, h.logger, "generate course", err)

		return
	}

	runID := uuid.Must(uuid.NewV7())

	if err := h.inserter.InsertGenerateJob(r.Context(), jobs.GenerateCourseArgs{
		RunID:           runID,
		SourceType:      sourceType,
		SourceID:        sourceID,
		Structure:       req.Structure,
		Content:         req.Content,
		GenerateQuizzes: req.GenerateQuizzes,
		Quiz:            req.Quiz,
	}); err != nil {
		respondServiceError(r.Context(), w, h.logger, "enqueue generate job", err)

		return
	}

	h.logger.InfoContext(r.Context(), "generation enqueued",
		"run_id", runID, "source_type", sourceType, "source_id", sourceID)

	response.RespondJSON(w, http.StatusAccepted, AcceptedResponse{
		Status: statusQueued, SourceType: sourceType, SourceID: sourceID, RunID: &runID,
	})
}
