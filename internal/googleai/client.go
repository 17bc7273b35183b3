// Package googleai provides a thin wrapper around the Google Gen AI SDK for embeddings and generation (Gemini API).
package googleai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"

	"github.com/edulane/coursegen/internal/llm"
)

var (
	ErrEmptyInput            = errors.New("googleai: input text is empty")
	ErrInvalidDims           = errors.New("googleai: embedding dimensions must be in (0, 2^31)")
	ErrNoEmbeddingInResponse = errors.New("googleai: no embedding in response")
	ErrDimensionMismatch     = errors.New("googleai: embedding dimension mismatch")
	ErrEmptyCompletion       = errors.New("googleai: empty completion")
)

const (
	defaultDimension = 1536
	defaultModel     = "gemini-embedding-001"
	defaultChatModel = "gemini-2.0-flash"

	// Chunks, retrieval queries and semantic cache probes share one vector space, so they are
	// all embedded with the symmetric task type.
	defaultTaskType = "SEMANTIC_SIMILARITY"
)

// Client implements embeddings.Provider and llm.Completer on the Gemini API.
type Client struct {
	client     *genai.Client
	model      string
	chatModel  string
	taskType   string
	dimensions int32
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithDimensions sets the output dimensionality. It must match the vector column.
func WithDimensions(dim int) ClientOption {
	return func(c *Client) {
		if dim <= 0 || dim > math.MaxInt32 {
			c.dimensions = -1

			return
		}

		c.dimensions = int32(dim)
	}
}

// WithModel sets the embedding model. Empty keeps gemini-embedding-001.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithChatModel sets the generation model. Empty keeps gemini-2.0-flash.
func WithChatModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.chatModel = model
		}
	}
}

// WithTaskType overrides the embedding task type (e.g. RETRIEVAL_DOCUMENT).
func WithTaskType(taskType string) ClientOption {
	return func(c *Client) {
		if taskType != "" {
			c.taskType = taskType
		}
	}
}

// NewClient creates a Gemini client. Invalid dimensions fail here rather than on first use.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	client := &Client{
		model:      defaultModel,
		chatModel:  defaultChatModel,
		taskType:   defaultTaskType,
		dimensions: defaultDimension,
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.dimensions <= 0 {
		return nil, ErrInvalidDims
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("googleai client: %w", err)
	}

	client.client = genaiClient

	return client, nil
}

// CreateEmbedding embeds one text and checks the vector has the configured length.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	resp, err := c.client.Models.EmbedContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromText(input, genai.RoleUser)},
		&genai.EmbedContentConfig{
			TaskType:             c.taskType,
			OutputDimensionality: genai.Ptr(c.dimensions),
		})
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}

	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, ErrNoEmbeddingInResponse
	}

	values := resp.Embeddings[0].Values
	if len(values) != int(c.dimensions) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(values), c.dimensions)
	}

	return append([]float32(nil), values...), nil
}

// Complete runs one GenerateContent call. With req.JSON the response MIME type is application/json.
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}

	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	if req.MaxTokens > 0 && req.MaxTokens <= math.MaxInt32 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.chatModel, genai.Text(req.UserPrompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, ErrEmptyCompletion
	}

	out := &llm.Response{Text: text, Model: c.chatModel}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}

	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
		}
	}

	return out, nil
}

var _ llm.Completer = (*Client)(nil)
