package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/edulane/coursegen/internal/models"
	"github.com/edulane/coursegen/internal/observability"
	"github.com/edulane/coursegen/internal/repository"
	"github.com/edulane/coursegen/pkg/embeddings"
)

// Semantic cache defaults.
const (
	DefaultSemanticCacheThreshold     = 0.95
	DefaultSemanticCacheMaxCandidates = 500
	semanticCacheName                 = "semantic"
)

// SemanticCacheService finds previously generated artifacts whose input is equivalent to a new one.
type SemanticCacheService struct {
	embedder      QueryVectorizer
	store         repository.SemanticCacheStore
	threshold     float64
	maxCandidates int
	metrics       observability.CacheMetrics
	logger        *slog.Logger
}

// SemanticCacheServiceParams configures SemanticCacheService. Zero values use the defaults.
type SemanticCacheServiceParams struct {
	Embedder      QueryVectorizer
	Store         repository.SemanticCacheStore
	Threshold     float64
	MaxCandidates int
	Metrics       observability.CacheMetrics
	Logger        *slog.Logger
}

// NewSemanticCacheService creates a SemanticCacheService.
func NewSemanticCacheService(p SemanticCacheServiceParams) *SemanticCacheService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	threshold := p.Threshold
	if threshold <= 0 {
		threshold = DefaultSemanticCacheThreshold
	}

	maxCandidates := p.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = DefaultSemanticCacheMaxCandidates
	}

	return &SemanticCacheService{
		embedder:      p.Embedder,
		store:         p.Store,
		threshold:     threshold,
		maxCandidates: maxCandidates,
		metrics:       p.Metrics,
		logger:        logger,
	}
}

// ContentHash is the exact-match key of a cache input: sha256 of the whitespace-normalized,
// lower-cased text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.Join(strings.Fields(text), " "))))

	return hex.EncodeToString(sum[:])
}

// Lookup is FindEquivalent with the configured threshold.
func (s *SemanticCacheService) Lookup(
	ctx context.Context, text string, category models.CacheCategory,
) (*models.CacheMatch, error) {
	return s.FindEquivalent(ctx, text, category, s.threshold)
}

// FindEquivalent returns the best cached entry in category with similarity >= threshold, or nil.
// Identical input short-circuits on the content hash without an embedding call.
func (s *SemanticCacheService) FindEquivalent(
	ctx context.Context, text string, category models.CacheCategory, threshold float64,
) (*models.CacheMatch, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}

	if threshold < 0 || threshold > 1 {
		return nil, ErrInvalidThreshold
	}

	exact, err := s.store.FindByContentHash(ctx, category, ContentHash(text))
	if err != nil {
		return nil, fmt.Errorf("semantic cache exact lookup: %w", err)
	}

	if exact != nil {
		return s.hit(ctx, &models.CacheMatch{Entry: *exact, Score: 1, Exact: true}), nil
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("semantic cache embed: %w", err)
	}

	candidates, err := s.store.ListCandidates(ctx, category, s.maxCandidates)
	if err != nil {
		return nil, fmt.Errorf("semantic cache candidates: %w", err)
	}

	var best *models.CacheMatch

	for i := range candidates {
		score := embeddings.CosineSimilarity(vec, candidates[i].Embedding)
		if score < threshold {
			continue
		}

		if best == nil || score > best.Score {
			best = &models.CacheMatch{Entry: candidates[i], Score: score}
		}
	}

	if best == nil {
		if s.metrics != nil {
			s.metrics.RecordMiss(ctx, semanticCacheName)
		}

		return nil, nil //nolint:nilnil // a miss is not an error
	}

	return s.hit(ctx, best), nil
}

func (s *SemanticCacheService) hit(ctx context.Context, m *models.CacheMatch) *models.CacheMatch {
	if err := s.store.RecordHit(ctx, m.Entry.ID); err != nil {
		s.logger.WarnContext(ctx, "semantic cache: record hit failed", "entry_id", m.Entry.ID, "error", err)
	} else {
		m.Entry.HitCount++
	}

	if s.metrics != nil {
		s.metrics.RecordHit(ctx, semanticCacheName)
	}

	return m
}

// Store records that text in category produced artifactRef.
func (s *SemanticCacheService) Store(
	ctx context.Context, text string, category models.CacheCategory, artifactRef uuid.UUID,
) (*models.SemanticCacheEntry, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("semantic cache embed: %w", err)
	}

	entry := &models.SemanticCacheEntry{
		ContentHash:  ContentHash(text),
		SemanticHash: embeddings.SemanticHash(vec),
		Embedding:    vec,
		Category:     category,
		ArtifactRef:  artifactRef,
	}

	if err := s.store.Save(ctx, entry); err != nil {
		return nil, fmt.Errorf("semantic cache save: %w", err)
	}

	return entry, nil
}
