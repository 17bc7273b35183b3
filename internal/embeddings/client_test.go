package embeddings

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulane/coursegen/internal/huberrors"
	"github.com/edulane/coursegen/pkg/embeddings"
)

type mockProvider struct {
	createFunc func(ctx context.Context, input string) ([]float32, error)
	inputs     []string
}

func (m *mockProvider) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	m.inputs = append(m.inputs, input)

	return m.createFunc(ctx, input)
}

type countingWaiter struct {
	calls int
	err   error
}

func (w *countingWaiter) Wait(context.Context) error {
	w.calls++

	return w.err
}

func TestClient_Embed(t *testing.T) {
	ok := func(context.Context, string) ([]float32, error) { return []float32{1, 0}, nil }

	t.Run("truncates to max chars", func(t *testing.T) {
		p := &mockProvider{createFunc: ok}
		c := NewClient(p, "mock", WithMaxChars(10))

		_, err := c.Embed(context.Background(), "  "+strings.Repeat("é", 25)+"  ")
		require.NoError(t, err)

		require.Len(t, p.inputs, 1)
		assert.Equal(t, 10, utf8.RuneCountInString(p.inputs[0]))
	})

	t.Run("waits on limiter once per call", func(t *testing.T) {
		w := &countingWaiter{}
		c := NewClient(&mockProvider{createFunc: ok}, "mock", WithLimiter(w))

		_, _ = c.Embed(context.Background(), "a")
		_, _ = c.Embed(context.Background(), "b")

		assert.Equal(t, 2, w.calls)
	})

	t.Run("provider failure is an embedding service error and not retried", func(t *testing.T) {
		cause := errors.New("429 too many requests")
		p := &mockProvider{createFunc: func(context.Context, string) ([]float32, error) { return nil, cause }}

		_, err := NewClient(p, "openai").Embed(context.Background(), "text")

		assert.ErrorIs(t, err, huberrors.ErrEmbeddingService)
		assert.ErrorIs(t, err, cause)
		assert.Len(t, p.inputs, 1)
	})

	t.Run("empty text", func(t *testing.T) {
		p := &mockProvider{createFunc: ok}

		_, err := NewClient(p, "mock").Embed(context.Background(), " \n ")

		assert.ErrorIs(t, err, huberrors.ErrEmbeddingService)
		assert.ErrorIs(t, err, ErrEmptyText)
		assert.Empty(t, p.inputs)
	})

	t.Run("limiter cancellation", func(t *testing.T) {
		p := &mockProvider{createFunc: ok}
		c := NewClient(p, "mock", WithLimiter(&countingWaiter{err: context.Canceled}))

		_, err := c.Embed(context.Background(), "x")

		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, p.inputs)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "日本", Truncate("日本語", 2))
	assert.Equal(t, "abc", Truncate("abc", 0))
}

func TestMockProvider(t *testing.T) {
	p := NewMockProviderWithDimensions(256)
	ctx := context.Background()

	base := "Variables in Go are declared with the var keyword or the short assignment operator inside functions"
	typo := "Variables in Go are declared with the var keyword or the short asignment operator inside functions"
	other := "Photosynthesis converts light energy into chemical energy stored in glucose molecules"

	a, err := p.CreateEmbedding(ctx, base)
	require.NoError(t, err)
	b, err := p.CreateEmbedding(ctx, typo)
	require.NoError(t, err)
	c, err := p.CreateEmbedding(ctx, other)
	require.NoError(t, err)
	again, err := p.CreateEmbedding(ctx, base)
	require.NoError(t, err)

	assert.Equal(t, a, again, "deterministic")
	assert.Len(t, a, 256)
	assert.InDelta(t, 1.0, embeddings.CosineSimilarity(a, a), 1e-6)
	assert.Greater(t, embeddings.CosineSimilarity(a, b), 0.85)
	assert.Less(t, embeddings.CosineSimilarity(a, c), 0.5)

	_, err = p.CreateEmbedding(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmptyText)
}
