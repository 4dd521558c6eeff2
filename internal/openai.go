package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"golang.org/x/time/rate"
)

// LLMClient defines the model operations the pipeline needs
type LLMClient interface {
	CreateChatCompletion(ctx context.Context, model, prompt string) (string, error)
	CreateEmbedding(ctx context.Context, model, input string) ([]float64, error)
}

// OpenAIClient wraps the official OpenAI Go SDK. Pointing it at an Ollama
// server's OpenAI-compatible endpoint covers the local provider as well.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a client for the hosted OpenAI API.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{client: &client}
}

// NewOllamaClient creates a client against a local Ollama base URL.
func NewOllamaClient(baseURL string) *OpenAIClient {
	// Ollama ignores the key but the SDK requires one.
	client := openai.NewClient(option.WithBaseURL(baseURL), option.WithAPIKey("ollama"))
	return &OpenAIClient{client: &client}
}

// CreateChatCompletion sends a single-user-message completion request.
func (c *OpenAIClient) CreateChatCompletion(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices from model %s", model)
	}
	return resp.Choices[0].Message.Content, nil
}

// CreateEmbedding returns the embedding vector for one input text.
func (c *OpenAIClient) CreateEmbedding(ctx context.Context, model, input string) ([]float64, error) {
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{input},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding data from model %s", model)
	}
	return resp.Data[0].Embedding, nil
}

// AI fronts the LLM service with lazy initialization, a shared rate limiter,
// and per-call timeouts.
type AI struct {
	// client is written only inside clientOnce.Do; read it only after
	// ensureClient returns so concurrent workers see a fully built value.
	client  LLMClient
	limiter *rate.Limiter
	timeout time.Duration
	verbose bool

	config     *Config
	clientOnce sync.Once
	clientErr  error
}

// NewAI creates an AI processor with an injected client (tests).
func NewAI(client LLMClient, timeout time.Duration, requestsPerSec float64, verbose bool) *AI {
	return &AI{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), 1),
		timeout: timeout,
		verbose: verbose,
	}
}

// NewAIFromConfig creates an AI processor whose client is built lazily from
// the configured provider.
func NewAIFromConfig(config *Config) *AI {
	return &AI{
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSec), 1),
		timeout: config.RequestTimeout,
		verbose: config.Verbose,
		config:  config,
	}
}

// ensureClient resolves the client exactly once. The Once is the only
// synchronization around ai.client, so every caller goes through it.
func (ai *AI) ensureClient() error {
	ai.clientOnce.Do(func() {
		if ai.client != nil {
			// Injected at construction time.
			return
		}
		if ai.config == nil {
			ai.clientErr = fmt.Errorf("no LLM client configured")
			return
		}
		if ai.config.LLMProvider == "ollama" {
			ai.client = NewOllamaClient(ai.config.OllamaBaseURL)
			return
		}
		if ai.config.OpenAIAPIKey == "" {
			ai.clientErr = fmt.Errorf("OpenAI API key is required - set it in config.toml or OPENAI_API_KEY environment variable")
			return
		}
		ai.client = NewOpenAIClient(ai.config.OpenAIAPIKey)
	})
	return ai.clientErr
}

// Complete runs one rate-limited, timeout-bounded chat completion.
func (ai *AI) Complete(ctx context.Context, model, prompt string) (string, error) {
	if err := ai.ensureClient(); err != nil {
		return "", err
	}
	if err := ai.limiter.Wait(ctx); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, ai.timeout)
	defer cancel()

	content, err := ai.client.CreateChatCompletion(ctx, model, prompt)
	if err != nil {
		return "", fmt.Errorf("creating chat completion: %w", err)
	}
	return content, nil
}

// Embed runs one rate-limited, timeout-bounded embedding request.
func (ai *AI) Embed(ctx context.Context, model, input string) ([]float64, error) {
	if err := ai.ensureClient(); err != nil {
		return nil, err
	}
	if err := ai.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, ai.timeout)
	defer cancel()

	vector, err := ai.client.CreateEmbedding(ctx, model, input)
	if err != nil {
		return nil, fmt.Errorf("creating embedding: %w", err)
	}
	return vector, nil
}
