package service

import (
	"context"
	"sync"

	"github.com/edulane/coursegen/internal/embeddings"
	"github.com/edulane/coursegen/internal/models"
)

type mockEmbedder struct {
	mu        sync.Mutex
	calls     int
	embedFunc func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.embedFunc != nil {
		return m.embedFunc(ctx, text)
	}

	return []float32{1, 0, 0}, nil
}

func (m *mockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}

// hashingEmbedder embeds with the deterministic bag-of-words mock provider.
func hashingEmbedder() *mockEmbedder {
	p := embeddings.NewMockProviderWithDimensions(256)

	return &mockEmbedder{embedFunc: p.CreateEmbedding}
}

type mockVectorStore struct {
	upsertFunc func(ctx context.Context, rec *models.EmbeddingRecord) error
	searchFunc func(ctx context.Context, query []float32, opts models.SearchOptions) ([]models.SimilarityResult, error)
	deleteFunc func(ctx context.Context, contentType, contentID string) (int64, error)
	listFunc   func(ctx context.Context, contentType, contentID string, limit int) ([]models.SimilarityResult, error)
}

func (m *mockVectorStore) Upsert(ctx context.Context, rec *models.EmbeddingRecord) error {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, rec)
	}

	return nil
}

func (m *mockVectorStore) Search(
	ctx context.Context, query []float32, opts models.SearchOptions,
) ([]models.SimilarityResult, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, query, opts)
	}

	return []models.SimilarityResult{}, nil
}

func (m *mockVectorStore) DeleteByContent(ctx context.Context, contentType, contentID string) (int64, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, contentType, contentID)
	}

	return 0, nil
}

func (m *mockVectorStore) ListByContent(
	ctx context.Context, contentType, contentID string, limit int,
) ([]models.SimilarityResult, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, contentType, contentID, limit)
	}

	return []models.SimilarityResult{}, nil
}

func (m *mockVectorStore) CountByContent(context.Context, string, string) (int, error) {
	return 0, nil
}
