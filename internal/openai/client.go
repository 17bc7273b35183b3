// Package openai provides a thin wrapper around the official OpenAI Go SDK for embeddings and chat completions.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"

	"github.com/edulane/coursegen/internal/llm"
)

var (
	// ErrEmptyInput is returned when CreateEmbedding is called with empty input.
	ErrEmptyInput = errors.New("openai: input text is empty")
	// ErrInvalidDims is returned when dimensions is not positive.
	ErrInvalidDims = errors.New("openai: embedding dimensions must be positive")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("openai: no embedding in response")
	// ErrDimensionMismatch is returned when the response embedding length does not match configured dimensions.
	ErrDimensionMismatch = errors.New("openai: embedding dimension mismatch")
	// ErrNoChoices is returned when a chat completion has no choices.
	ErrNoChoices = errors.New("openai: no choices in completion")
)

const (
	defaultDimension      = 1536
	defaultEmbeddingModel = openaisdk.EmbeddingModelTextEmbedding3Small
	defaultChatModel      = "gpt-4o-mini"
)

// Client calls the OpenAI embeddings and chat completions APIs via the official SDK.
type Client struct {
	sdk            openaisdk.Client
	dimensions     int
	embeddingModel string
	chatModel      string
	requestOpts    []option.RequestOption
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithDimensions sets the requested embedding dimension (must match DB column).
func WithDimensions(dim int) ClientOption {
	return func(c *Client) {
		c.dimensions = dim
	}
}

// WithModel sets the embedding model. Empty keeps text-embedding-3-small.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.embeddingModel = model
		}
	}
}

// WithChatModel sets the chat completion model. Empty keeps gpt-4o-mini.
func WithChatModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.chatModel = model
		}
	}
}

// WithBaseURL points the client at another OpenAI-compatible endpoint (proxies, tests).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.requestOpts = append(c.requestOpts, option.WithBaseURL(url))
	}
}

// NewClient creates an OpenAI client using the official SDK.
// SDK retries are disabled; callers decide whether to retry.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		dimensions:     defaultDimension,
		embeddingModel: defaultEmbeddingModel,
		chatModel:      defaultChatModel,
	}

	for _, opt := range opts {
		opt(client)
	}

	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, client.requestOpts...)
	client.sdk = openaisdk.NewClient(reqOpts...)

	return client
}

// CreateEmbedding returns the embedding vector for the given text.
// The returned slice length equals the configured dimensions.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	if c.dimensions <= 0 {
		return nil, ErrInvalidDims
	}

	resp, err := c.sdk.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(input),
		},
		Model:      openaisdk.EmbeddingModel(c.embeddingModel),
		Dimensions: param.NewOpt(int64(c.dimensions)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	emb := resp.Data[0].Embedding
	if len(emb) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb), c.dimensions)
	}

	out := make([]float32, len(emb))
	for i := range emb {
		out[i] = float32(emb[i])
	}

	return out, nil
}

// Complete runs one chat completion. With req.JSON the response format is json_object.
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(c.chatModel),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(req.SystemPrompt),
			openaisdk.UserMessage(req.UserPrompt),
		},
		Temperature: openaisdk.Float(req.Temperature),
	}

	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(req.MaxTokens))
	}

	if req.JSON {
		params.ResponseFormat = openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	model := resp.Model
	if model == "" {
		model = c.chatModel
	}

	return &llm.Response{
		Text:  resp.Choices[0].Message.Content,
		Model: model,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

var _ llm.Completer = (*Client)(nil)
