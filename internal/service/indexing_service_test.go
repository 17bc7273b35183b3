package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulane/coursegen/internal/huberrors"
	"github.com/edulane/coursegen/internal/models"
	"github.com/edulane/coursegen/internal/repository"
	"github.com/edulane/coursegen/internal/source"
)

func paragraphSource(id string, paragraphs int) *models.Source {
	parts := make([]string, paragraphs)
	for i := range parts {
		parts[i] = fmt.Sprintf("Paragraph %d explains goroutine %d and channel %d in detail.", i, i, i)
	}

	return &models.Source{
		Type:  models.SourceTypeBook,
		ID:    id,
		Title: "Concurrency",
		Pages: []models.Page{{Number: 1, Text: strings.Join(parts, "\n\n")}},
	}
}

func TestChunkSource(t *testing.T) {
	t.Run("single page chunks carry no page number", func(t *testing.T) {
		chunks := ChunkSource(paragraphSource("1", 3), 10)

		require.Len(t, chunks, 3)

		for i, c := range chunks {
			assert.Equal(t, i, c.ChunkIndex)
			assert.Nil(t, c.PageNumber)
			assert.Equal(t, "1", c.SourceID)
		}
	})

	t.Run("multi page indexes are contiguous", func(t *testing.T) {
		src := &models.Source{Type: "book", ID: "2", Pages: []models.Page{
			{Number: 3, Text: "one\n\ntwo"},
			{Number: 4, Text: "three"},
		}}

		chunks := ChunkSource(src, 1)

		require.Len(t, chunks, 3)
		assert.Equal(t, 2, chunks[2].ChunkIndex)
		require.NotNil(t, chunks[0].PageNumber)
		assert.Equal(t, 3, *chunks[1].PageNumber)
		assert.Equal(t, 4, *chunks[2].PageNumber)
	})
}

func TestIndexingService_IndexSource(t *testing.T) {
	ctx := context.Background()

	t.Run("reindex leaves exactly the current chunk count", func(t *testing.T) {
		store, err := repository.NewChromemVectorStore()
		require.NoError(t, err)

		sources := source.NewMemoryStore(paragraphSource("1", 5))
		svc := NewIndexingService(IndexingServiceParams{
			Sources: sources, Embedder: hashingEmbedder(), Store: store, MaxChunkTokens: 10,
		})

		first, err := svc.IndexSource(ctx, "book", "1")
		require.NoError(t, err)
		assert.Equal(t, 5, first.Indexed)
		assert.Zero(t, first.Deleted)

		second, err := svc.IndexSource(ctx, "book", "1")
		require.NoError(t, err)
		assert.Equal(t, int64(5), second.Deleted)

		n, err := store.CountByContent(ctx, "book", "1")
		require.NoError(t, err)
		assert.Equal(t, 5, n)

		require.NoError(t, sources.Save(ctx, paragraphSource("1", 3)))

		third, err := svc.IndexSource(ctx, "book", "1")
		require.NoError(t, err)
		assert.Equal(t, 3, third.Total)

		n, err = store.CountByContent(ctx, "book", "1")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("chunk failures are reported, not fatal", func(t *testing.T) {
		embedder := &mockEmbedder{embedFunc: func(_ context.Context, text string) ([]float32, error) {
			if strings.Contains(text, "Paragraph 2") {
				return nil, huberrors.NewEmbeddingServiceError("mock", errors.New("boom"))
			}

			return []float32{1, 0}, nil
		}}

		var upserted []int

		store := &mockVectorStore{upsertFunc: func(_ context.Context, rec *models.EmbeddingRecord) error {
			if rec.ChunkIndex == 4 {
				return huberrors.NewStoreUnavailableError("upsert", errors.New("down"))
			}

			upserted = append(upserted, rec.ChunkIndex)

			return nil
		}}

		svc := NewIndexingService(IndexingServiceParams{
			Sources: source.NewMemoryStore(paragraphSource("1", 5)), Embedder: embedder, Store: store, MaxChunkTokens: 10,
		})

		summary, err := svc.IndexSource(ctx, "book", "1")

		require.NoError(t, err)
		assert.Equal(t, 5, summary.Total)
		assert.Equal(t, 3, summary.Indexed)
		assert.Equal(t, 2, summary.Failed)
		require.Len(t, summary.Failures, 2)
		assert.Equal(t, 2, summary.Failures[0].ChunkIndex)
		assert.Contains(t, summary.Failures[0].Error, "embedding service error")
		assert.Equal(t, 4, summary.Failures[1].ChunkIndex)
		assert.Equal(t, []int{0, 1, 3}, upserted)
	})

	t.Run("missing source aborts", func(t *testing.T) {
		svc := NewIndexingService(IndexingServiceParams{
			Sources: source.NewMemoryStore(), Embedder: &mockEmbedder{}, Store: &mockVectorStore{},
		})

		_, err := svc.IndexSource(ctx, "book", "404")

		assert.ErrorIs(t, err, huberrors.ErrSourceNotFound)
	})

	t.Run("failed delete aborts before embedding", func(t *testing.T) {
		embedder := &mockEmbedder{}
		store := &mockVectorStore{deleteFunc: func(context.Context, string, string) (int64, error) {
			return 0, huberrors.NewStoreUnavailableError("delete", errors.New("down"))
		}}

		svc := NewIndexingService(IndexingServiceParams{
			Sources: source.NewMemoryStore(paragraphSource("1", 2)), Embedder: embedder, Store: store,
		})

		_, err := svc.IndexSource(ctx, "book", "1")

		require.ErrorIs(t, err, huberrors.ErrStoreUnavailable)
		assert.Zero(t, embedder.Calls())
	})

	t.Run("cancellation stops the loop", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		embedder := &mockEmbedder{embedFunc: func(context.Context, string) ([]float32, error) {
			cancel()

			return []float32{1}, nil
		}}

		svc := NewIndexingService(IndexingServiceParams{
			Sources: source.NewMemoryStore(paragraphSource("1", 4)), Embedder: embedder, Store: &mockVectorStore{},
			MaxChunkTokens: 10,
		})

		summary, err := svc.IndexSource(cctx, "book", "1")

		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, summary.Indexed)
	})
}
