package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"unicode"

	"github.com/edulane/coursegen/pkg/embeddings"
)

// MockProvider implements Provider with deterministic feature hashing: every word is
// hashed (sha256) to a dimension and a sign. Texts that share most words get a high
// cosine similarity, so local runs exercise retrieval and the semantic cache without a hosted model.
type MockProvider struct {
	dimensions int
}

// NewMockProvider creates a mock provider.
// Default dimensions is 1536 to match text-embedding-3-small.
func NewMockProvider() *MockProvider {
	return &MockProvider{dimensions: 1536}
}

// NewMockProviderWithDimensions creates a mock provider with custom dimensions.
func NewMockProviderWithDimensions(dimensions int) *MockProvider {
	return &MockProvider{dimensions: dimensions}
}

// CreateEmbedding returns the unit-length hashed bag-of-words vector of input.
func (p *MockProvider) CreateEmbedding(_ context.Context, input string) ([]float32, error) {
	words := strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(words) == 0 {
		return nil, ErrEmptyText
	}

	vec := make([]float32, p.dimensions)

	for _, w := range words {
		sum := sha256.Sum256([]byte(w))
		idx := binary.BigEndian.Uint64(sum[:8]) % uint64(p.dimensions)

		if sum[8]&1 == 0 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}

	embeddings.NormalizeL2(vec)

	return vec, nil
}

var _ Provider = (*MockProvider)(nil)
