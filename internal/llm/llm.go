// Package llm defines the completion client boundary used by the generation stages
// and the parser that turns JSON-shaped model output into typed results.
package llm

import (
	"context"
	"fmt"

	"github.com/edulane/coursegen/internal/ratelimit"
)

// Request is one chat completion request.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
	// JSON asks the provider for a JSON object response.
	JSON bool
}

// Usage is the token accounting of one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Add returns the sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
	}
}

// Response is the text and usage of one completion.
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Completer calls an LLM completion service. Implementations do not retry; timeouts come from ctx.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (*Response, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

type rateLimited struct {
	next    Completer
	limiter ratelimit.Waiter
}

// WithRateLimit returns a Completer that waits on limiter before every call.
// Share one limiter between all stages so the policy is applied once per process.
func WithRateLimit(next Completer, limiter ratelimit.Waiter) Completer {
	if limiter == nil {
		return next
	}

	return &rateLimited{next: next, limiter: limiter}
}

func (r *rateLimited) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("llm rate limit: %w", err)
	}

	return r.next.Complete(ctx, req)
}
