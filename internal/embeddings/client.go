// Package embeddings provides the embedding client used by indexing, search and the semantic cache.
package embeddings

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/edulane/coursegen/internal/huberrors"
	"github.com/edulane/coursegen/internal/observability"
	"github.com/edulane/coursegen/internal/ratelimit"
)

// DefaultMaxChars is the hard input ceiling applied before text is sent to a provider.
const DefaultMaxChars = 8000

// ErrEmptyText is wrapped in an EmbeddingServiceError when the input is blank.
var ErrEmptyText = errors.New("embeddings: text is empty")

// Provider generates embedding vectors for text.
// Implemented by provider-specific clients (OpenAI, Google Gemini, MockProvider).
type Provider interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// Embedder is what pipeline components depend on.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Client truncates input, waits on the shared limiter and calls the provider once.
// Every failure is returned as *huberrors.EmbeddingServiceError; Client never retries.
type Client struct {
	provider     Provider
	providerName string
	maxChars     int
	limiter      ratelimit.Waiter
	metrics      observability.EmbeddingMetrics
	logger       *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithMaxChars sets the truncation ceiling in runes. Non-positive keeps DefaultMaxChars.
func WithMaxChars(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxChars = n
		}
	}
}

// WithLimiter sets the shared limiter waited on before each provider call.
func WithLimiter(l ratelimit.Waiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithMetrics sets optional metrics. Nil disables recording.
func WithMetrics(m observability.EmbeddingMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient wraps provider. providerName is used in errors and logs.
func NewClient(provider Provider, providerName string, opts ...Option) *Client {
	c := &Client{
		provider:     provider,
		providerName: providerName,
		maxChars:     DefaultMaxChars,
		limiter:      ratelimit.Unlimited,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Embed returns the embedding of text after trimming and truncation.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	text = Truncate(strings.TrimSpace(text), c.maxChars)
	if text == "" {
		c.recordError(ctx, "empty")

		return nil, huberrors.NewEmbeddingServiceError(c.providerName, ErrEmptyText)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		c.recordError(ctx, "cancelled")

		return nil, huberrors.NewEmbeddingServiceError(c.providerName, err)
	}

	start := time.Now()
	vec, err := c.provider.CreateEmbedding(ctx, text)
	elapsed := time.Since(start)

	if err != nil {
		c.recordError(ctx, "provider")

		if c.metrics != nil {
			c.metrics.RecordEmbeddingDuration(ctx, elapsed, "failed")
		}

		c.logger.WarnContext(ctx, "embedding request failed",
			"provider", c.providerName, "chars", utf8.RuneCountInString(text), "error", err)

		return nil, huberrors.NewEmbeddingServiceError(c.providerName, err)
	}

	if c.metrics != nil {
		c.metrics.RecordEmbeddingDuration(ctx, elapsed, "success")
	}

	return vec, nil
}

func (c *Client) recordError(ctx context.Context, reason string) {
	if c.metrics != nil {
		c.metrics.RecordEmbeddingError(ctx, reason)
	}
}

// Truncate cuts text to at most maxChars runes. Non-positive maxChars returns text unchanged.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}

	i := 0
	for pos := range text {
		if i == maxChars {
			return text[:pos]
		}

		i++
	}

	return text
}

var _ Embedder = (*Client)(nil)
