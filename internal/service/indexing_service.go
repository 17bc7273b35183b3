package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edulane/coursegen/internal/embeddings"
	"github.com/edulane/coursegen/internal/models"
	"github.com/edulane/coursegen/internal/observability"
	"github.com/edulane/coursegen/internal/repository"
	"github.com/edulane/coursegen/internal/source"
	"github.com/edulane/coursegen/pkg/chunker"
)

// Chunk outcome statuses for coursegen_index_chunks_total.
const (
	chunkStatusSuccess = "success"
	chunkStatusFailed  = "failed"
)

// IndexingService chunks a source, embeds every chunk and replaces its rows in the vector store.
type IndexingService struct {
	sources        source.Loader
	embedder       embeddings.Embedder
	store          repository.VectorStore
	maxChunkTokens int
	metrics        observability.EmbeddingMetrics
	logger         *slog.Logger
}

// IndexingServiceParams configures IndexingService. Metrics and Logger may be nil.
type IndexingServiceParams struct {
	Sources        source.Loader
	Embedder       embeddings.Embedder
	Store          repository.VectorStore
	MaxChunkTokens int
	Metrics        observability.EmbeddingMetrics
	Logger         *slog.Logger
}

// NewIndexingService creates an IndexingService.
func NewIndexingService(p IndexingServiceParams) *IndexingService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &IndexingService{
		sources:        p.Sources,
		embedder:       p.Embedder,
		store:          p.Store,
		maxChunkTokens: p.MaxChunkTokens,
		metrics:        p.Metrics,
		logger:         logger,
	}
}

// ChunkSource splits a source into ordered chunks. Multi-page sources are chunked page by page
// so every chunk carries its page number; chunk indexes stay contiguous across pages.
func ChunkSource(src *models.Source, maxChunkTokens int) []models.Chunk {
	var chunks []models.Chunk

	paged := len(src.Pages) > 1

	for _, page := range src.Pages {
		for text := range chunker.Chunks(page.Text, maxChunkTokens) {
			c := models.Chunk{
				SourceType: src.Type,
				SourceID:   src.ID,
				ChunkIndex: len(chunks),
				Text:       text,
			}

			if paged {
				n := page.Number
				c.PageNumber = &n
			}

			chunks = append(chunks, c)
		}
	}

	return chunks
}

// IndexSource deletes the existing chunks of a source and indexes it again. Chunk-level failures
// are collected in the summary; only a missing source, a failed delete or cancellation abort.
func (s *IndexingService) IndexSource(ctx context.Context, sourceType, sourceID string) (*models.IndexSummary, error) {
	src, err := s.sources.Load(ctx, sourceType, sourceID)
	if err != nil {
		return nil, err
	}

	return s.IndexLoaded(ctx, src)
}

// IndexLoaded indexes an already loaded source.
func (s *IndexingService) IndexLoaded(ctx context.Context, src *models.Source) (*models.IndexSummary, error) {
	logger := s.logger.With("source_type", src.Type, "source_id", src.ID)
	summary := &models.IndexSummary{SourceType: src.Type, SourceID: src.ID}

	deleted, err := s.store.DeleteByContent(ctx, src.Type, src.ID)
	if err != nil {
		return nil, fmt.Errorf("delete existing chunks: %w", err)
	}

	summary.Deleted = deleted

	chunks := ChunkSource(src, s.maxChunkTokens)
	summary.Total = len(chunks)
	start := time.Now()

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if err := s.indexChunk(ctx, src, chunk); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return summary, err
			}

			logger.Warn("chunk indexing failed", "chunk_index", chunk.ChunkIndex, "error", err)

			summary.Failed++
			summary.Failures = append(summary.Failures, models.IndexFailure{ChunkIndex: chunk.ChunkIndex, Error: err.Error()})

			continue
		}

		summary.Indexed++
	}

	if s.metrics != nil {
		s.metrics.RecordChunks(ctx, chunkStatusSuccess, summary.Indexed)
		s.metrics.RecordChunks(ctx, chunkStatusFailed, summary.Failed)
	}

	level := slog.LevelInfo
	if summary.Failed > 0 {
		level = slog.LevelWarn
	}

	logger.Log(ctx, level, "source indexed",
		"total", summary.Total, "indexed", summary.Indexed, "failed", summary.Failed,
		"deleted", summary.Deleted, "duration_ms", time.Since(start).Milliseconds())

	return summary, nil
}

func (s *IndexingService) indexChunk(ctx context.Context, src *models.Source, chunk models.Chunk) error {
	vec, err := s.embedder.Embed(ctx, chunk.Text)
	if err != nil {
		return err
	}

	rec := &models.EmbeddingRecord{
		ContentType: chunk.SourceType,
		ContentID:   chunk.SourceID,
		ChunkIndex:  chunk.ChunkIndex,
		Title:       src.Title,
		Text:        chunk.Text,
		Embedding:   vec,
		PageNumber:  chunk.PageNumber,
		Metadata:    map[string]any{"estimated_tokens": chunker.EstimateTokens(chunk.Text)},
	}

	return s.store.Upsert(ctx, rec)
}
