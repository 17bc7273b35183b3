package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulane/coursegen/internal/config"
	"github.com/edulane/coursegen/internal/llm"
	"github.com/edulane/coursegen/internal/models"
	"github.com/edulane/coursegen/internal/source"
)

func testConfig() *config.Config {
	return &config.Config{
		EmbeddingProvider:          config.ProviderMock,
		EmbeddingDimensions:        64,
		EmbeddingMaxChars:          8000,
		EmbeddingRateLimit:         1000,
		LLMProvider:                config.ProviderOpenAI,
		LLMModel:                   "gpt-4o-mini",
		LLMRateLimit:               1000,
		ChunkMaxTokens:             50,
		RetrievalThreshold:         0.5,
		SemanticCacheThreshold:     0.95,
		SemanticCacheMaxCandidates: 10,
		QueryEmbeddingCacheSize:    16,
		QueryEmbeddingCacheTTL:     time.Minute,
	}
}

func TestNewEmbeddingProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("mock honours the configured dimensions", func(t *testing.T) {
		provider, err := NewEmbeddingProvider(ctx, testConfig())
		require.NoError(t, err)

		vec, err := provider.CreateEmbedding(ctx, "channels and goroutines")
		require.NoError(t, err)
		assert.Len(t, vec, 64)
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := testConfig()
		cfg.EmbeddingProvider = "cohere"

		_, err := NewEmbeddingProvider(ctx, cfg)
		assert.ErrorIs(t, err, errUnsupportedProvider)
	})
}

func TestNewCompleter(t *testing.T) {
	cfg := testConfig()
	cfg.LLMProvider = "mock"

	_, err := NewCompleter(context.Background(), cfg)
	assert.ErrorIs(t, err, errUnsupportedProvider)
}

func TestNew_IndexAndSearch(t *testing.T) {
	ctx := context.Background()

	sources := source.NewMemoryStore(&models.Source{
		Type:  models.SourceTypeBook,
		ID:    "go",
		Title: "Go",
		Pages: []models.Page{
			{Number: 1, Text: "Goroutines are lightweight threads managed by the Go runtime."},
			{Number: 2, Text: "Channels let goroutines communicate without sharing memory."},
		},
	})

	stores, err := MemoryStores(sources)
	require.NoError(t, err)

	unused := llm.CompleterFunc(func(context.Context, llm.Request) (*llm.Response, error) {
		return nil, errors.New("not expected")
	})

	p, err := New(ctx, Params{Config: testConfig(), Stores: stores, LLM: unused})
	require.NoError(t, err)
	require.NotNil(t, p.Orchestrator)

	summary, err := p.Indexer.IndexSource(ctx, models.SourceTypeBook, "go")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Indexed)

	results, err := p.Search.Search(ctx, &models.SearchRequest{Query: "Channels let goroutines communicate without sharing memory."})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "go", results[0].ContentID)
	require.NotNil(t, results[0].PageNumber)
	assert.Equal(t, 2, *results[0].PageNumber)
}
