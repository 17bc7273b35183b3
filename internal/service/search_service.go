package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/edulane/coursegen/internal/models"
	"github.com/edulane/coursegen/internal/repository"
)

// Defaults for semantic search.
const (
	DefaultSearchLimit     = 10
	DefaultFallbackChunks  = 5
	DefaultSearchThreshold = 0.7
)

// Sentinel errors for search (used by handlers for status mapping).
var (
	ErrEmptyQuery       = errors.New("query is required and must be non-empty")
	ErrInvalidThreshold = errors.New("threshold must be between 0 and 1")
)

// QueryVectorizer turns a query string into an embedding.
type QueryVectorizer interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SearchService performs semantic search over indexed chunks.
type SearchService struct {
	embedder  QueryVectorizer
	store     repository.VectorStore
	threshold float64
	logger    *slog.Logger
}

// SearchServiceParams configures SearchService. Threshold 0 uses DefaultSearchThreshold.
type SearchServiceParams struct {
	Embedder  QueryVectorizer
	Store     repository.VectorStore
	Threshold float64
	Logger    *slog.Logger
}

// NewSearchService creates a SearchService.
func NewSearchService(p SearchServiceParams) *SearchService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	threshold := p.Threshold
	if threshold <= 0 {
		threshold = DefaultSearchThreshold
	}

	return &SearchService{
		embedder:  p.Embedder,
		store:     p.Store,
		threshold: threshold,
		logger:    logger,
	}
}

// Search embeds the query and returns chunks ranked by similarity.
// A nil threshold uses the configured default; limit <= 0 uses DefaultSearchLimit.
func (s *SearchService) Search(ctx context.Context, req *models.SearchRequest) ([]models.SimilarityResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	opts := models.SearchOptions{
		Threshold:   s.threshold,
		Count:       req.Limit,
		ContentType: req.ContentType,
		ContentID:   req.ContentID,
	}

	if req.Threshold != nil {
		if *req.Threshold < 0 || *req.Threshold > 1 {
			return nil, ErrInvalidThreshold
		}

		opts.Threshold = *req.Threshold
	}

	if opts.Count <= 0 {
		opts.Count = DefaultSearchLimit
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.ErrorContext(ctx, "semantic search: embed query failed", "error", err)

		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.store.Search(ctx, vec, opts)
	if err != nil {
		s.logger.ErrorContext(ctx, "semantic search: store search failed", "error", err)

		return nil, fmt.Errorf("search: %w", err)
	}

	return results, nil
}

// Grounding is the retrieved context for one generation prompt.
type Grounding struct {
	Chunks   []models.SimilarityResult
	Fallback bool
}

// Text joins the grounding chunks in the order they were returned.
func (g Grounding) Text() string {
	parts := make([]string, 0, len(g.Chunks))
	for _, c := range g.Chunks {
		parts = append(parts, strings.TrimSpace(c.Text))
	}

	return strings.Join(parts, "\n\n")
}

// Pages returns the distinct page numbers referenced by the grounding chunks.
func (g Grounding) Pages() []int {
	seen := map[int]bool{}

	var pages []int

	for _, c := range g.Chunks {
		if c.PageNumber != nil && !seen[*c.PageNumber] {
			seen[*c.PageNumber] = true
			pages = append(pages, *c.PageNumber)
		}
	}

	return pages
}

// Ground retrieves up to count chunks of one source relevant to query. When retrieval fails or
// finds nothing it falls back to the first fallbackN chunks of the source. Only a failing fallback
// read is returned as an error.
func (s *SearchService) Ground(
	ctx context.Context, ref models.SourceRef, query string, count, fallbackN int,
) (Grounding, error) {
	if query = strings.TrimSpace(query); query != "" {
		vec, err := s.embedder.Embed(ctx, query)
		if err == nil {
			var results []models.SimilarityResult

			results, err = s.store.Search(ctx, vec, models.SearchOptions{
				Threshold: s.threshold, Count: count, ContentType: ref.Type, ContentID: ref.ID,
			})
			if err == nil && len(results) > 0 {
				return Grounding{Chunks: results}, nil
			}
		}

		if err != nil {
			s.logger.WarnContext(ctx, "retrieval failed, using leading chunks",
				"source_type", ref.Type, "source_id", ref.ID, "error", err)
		}
	}

	if fallbackN <= 0 {
		fallbackN = DefaultFallbackChunks
	}

	chunks, err := s.store.ListByContent(ctx, ref.Type, ref.ID, fallbackN)
	if err != nil {
		return Grounding{Fallback: true}, fmt.Errorf("fallback chunks: %w", err)
	}

	return Grounding{Chunks: chunks, Fallback: true}, nil
}
