// Package pipeline wires providers, stores and generation stages from configuration.
// The API server, the workers and the CLIs all build their pipeline here.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edulane/coursegen/internal/config"
	"github.com/edulane/coursegen/internal/embeddings"
	"github.com/edulane/coursegen/internal/generation"
	"github.com/edulane/coursegen/internal/googleai"
	"github.com/edulane/coursegen/internal/llm"
	"github.com/edulane/coursegen/internal/observability"
	"github.com/edulane/coursegen/internal/openai"
	"github.com/edulane/coursegen/internal/ratelimit"
	"github.com/edulane/coursegen/internal/repository"
	"github.com/edulane/coursegen/internal/service"
	"github.com/edulane/coursegen/internal/source"
)

var errUnsupportedProvider = errors.New("unsupported provider")

// Stores are the persistence backends a pipeline runs against.
type Stores struct {
	Sources   source.Store
	Vectors   repository.VectorStore
	Artifacts repository.ArtifactStore
	Cache     repository.SemanticCacheStore
}

// PostgresStores keeps everything in Postgres with pgvector.
func PostgresStores(db *pgxpool.Pool) Stores {
	return Stores{
		Sources:   source.NewRepository(db),
		Vectors:   repository.NewEmbeddingsRepository(db),
		Artifacts: repository.NewArtifactsRepository(db),
		Cache:     repository.NewSemanticCacheRepository(db),
	}
}

// MemoryStores keeps everything in process, with chromem as the vector index.
func MemoryStores(sources ...*source.MemoryStore) (Stores, error) {
	vectors, err := repository.NewChromemVectorStore()
	if err != nil {
		return Stores{}, fmt.Errorf("create chromem store: %w", err)
	}

	src := source.NewMemoryStore()
	if len(sources) > 0 && sources[0] != nil {
		src = sources[0]
	}

	return Stores{
		Sources:   src,
		Vectors:   vectors,
		Artifacts: repository.NewMemoryArtifactStore(),
		Cache:     repository.NewMemorySemanticCacheStore(),
	}, nil
}

// Pipeline is a fully wired set of services.
type Pipeline struct {
	Stores       Stores
	Embedder     *embeddings.Client
	Indexer      *service.IndexingService
	Search       *service.SearchService
	Cache        *service.SemanticCacheService
	Orchestrator *generation.Orchestrator
}

// Params configures New. LLM and EmbeddingProvider override the configured providers when set.
type Params struct {
	Config            *config.Config
	Stores            Stores
	Metrics           *observability.Metrics
	LLM               llm.Completer
	EmbeddingProvider embeddings.Provider
	Logger            *slog.Logger
}

// NewEmbeddingProvider creates the embedding provider named by cfg.EmbeddingProvider.
func NewEmbeddingProvider(ctx context.Context, cfg *config.Config) (embeddings.Provider, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.EmbeddingProviderAPIKey,
			openai.WithModel(cfg.EmbeddingModel),
			openai.WithDimensions(cfg.EmbeddingDimensions),
		), nil
	case config.ProviderGoogle:
		client, err := googleai.NewClient(ctx, cfg.EmbeddingProviderAPIKey,
			googleai.WithModel(cfg.EmbeddingModel),
			googleai.WithDimensions(cfg.EmbeddingDimensions),
		)
		if err != nil {
			return nil, fmt.Errorf("create google embedding client: %w", err)
		}

		return client, nil
	case config.ProviderMock:
		return embeddings.NewMockProviderWithDimensions(cfg.EmbeddingDimensions), nil
	default:
		return nil, fmt.Errorf("%w: embedding provider %q", errUnsupportedProvider, cfg.EmbeddingProvider)
	}
}

// NewCompleter creates the completion client named by cfg.LLMProvider, rate limited by cfg.LLMRateLimit.
func NewCompleter(ctx context.Context, cfg *config.Config) (llm.Completer, error) {
	var completer llm.Completer

	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		completer = openai.NewClient(cfg.LLMAPIKey, openai.WithChatModel(cfg.LLMModel))
	case config.ProviderGoogle:
		client, err := googleai.NewClient(ctx, cfg.LLMAPIKey, googleai.WithChatModel(cfg.LLMModel))
		if err != nil {
			return nil, fmt.Errorf("create google completion client: %w", err)
		}

		completer = client
	default:
		return nil, fmt.Errorf("%w: llm provider %q", errUnsupportedProvider, cfg.LLMProvider)
	}

	return llm.WithRateLimit(completer, ratelimit.NewTokenBucket(cfg.LLMRateLimit, 1)), nil
}

// New wires the indexing, search, semantic cache and generation services.
func New(ctx context.Context, p Params) (*Pipeline, error) {
	cfg := p.Config

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		generationMetrics observability.GenerationMetrics
		embeddingMetrics  observability.EmbeddingMetrics
		cacheMetrics      observability.CacheMetrics
	)

	if p.Metrics != nil {
		generationMetrics = p.Metrics.Generation
		embeddingMetrics = p.Metrics.Embeddings
		cacheMetrics = p.Metrics.Cache
	}

	provider := p.EmbeddingProvider
	if provider == nil {
		var err error

		provider, err = NewEmbeddingProvider(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	completer := p.LLM
	if completer == nil {
		var err error

		completer, err = NewCompleter(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	embedder := embeddings.NewClient(provider, cfg.EmbeddingProvider,
		embeddings.WithMaxChars(cfg.EmbeddingMaxChars),
		embeddings.WithLimiter(ratelimit.NewTokenBucket(cfg.EmbeddingRateLimit, 1)),
		embeddings.WithMetrics(embeddingMetrics),
		embeddings.WithLogger(logger),
	)

	queries, err := service.NewQueryEmbedder(embedder, cfg.QueryEmbeddingCacheSize, cfg.QueryEmbeddingCacheTTL, cacheMetrics)
	if err != nil {
		return nil, fmt.Errorf("create query embedder: %w", err)
	}

	indexer := service.NewIndexingService(service.IndexingServiceParams{
		Sources:        p.Stores.Sources,
		Embedder:       embedder,
		Store:          p.Stores.Vectors,
		MaxChunkTokens: cfg.ChunkMaxTokens,
		Metrics:        embeddingMetrics,
		Logger:         logger,
	})

	search := service.NewSearchService(service.SearchServiceParams{
		Embedder:  queries,
		Store:     p.Stores.Vectors,
		Threshold: cfg.RetrievalThreshold,
		Logger:    logger,
	})

	cache := service.NewSemanticCacheService(service.SemanticCacheServiceParams{
		Embedder:      queries,
		Store:         p.Stores.Cache,
		Threshold:     cfg.SemanticCacheThreshold,
		MaxCandidates: cfg.SemanticCacheMaxCandidates,
		Metrics:       cacheMetrics,
		Logger:        logger,
	})

	stage := generation.StageParams{
		LLM: completer,
		Pricing: generation.NewPricing(cfg.LLMModel, generation.ModelPrice{
			InputPer1K:  cfg.LLMPriceInputPer1K,
			OutputPer1K: cfg.LLMPriceOutputPer1K,
		}),
		MaxTokens: cfg.LLMMaxTokens,
		Metrics:   generationMetrics,
		Logger:    logger,
	}

	orchestrator := generation.NewOrchestrator(generation.OrchestratorParams{
		Sources:   p.Stores.Sources,
		Artifacts: p.Stores.Artifacts,
		Analysis:  generation.NewAnalysisStage(generation.AnalysisStageParams{StageParams: stage, Sources: p.Stores.Sources}),
		Structure: generation.NewStructureStage(generation.StructureStageParams{StageParams: stage, Retriever: search}),
		Batch: generation.NewBatchRunner(generation.BatchRunnerParams{
			Writer:    generation.NewContentStage(generation.ContentStageParams{StageParams: stage, Retriever: search}),
			Artifacts: p.Stores.Artifacts,
			Cache:     cache,
			Limiter:   ratelimit.NewFixedInterval(cfg.BatchInterCallDelay),
			Metrics:   generationMetrics,
			Logger:    logger,
		}),
		Assessment: generation.NewAssessmentStage(generation.AssessmentStageParams{StageParams: stage, Retriever: search}),
		QuizPacer:  ratelimit.NewFixedInterval(cfg.BatchInterCallDelay),
		Logger:     logger,
	})

	return &Pipeline{
		Stores:       p.Stores,
		Embedder:     embedder,
		Indexer:      indexer,
		Search:       search,
		Cache:        cache,
		Orchestrator: orchestrator,
	}, nil
}
