package ai

import (
	"context"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIModel      = openai.GPT4oMini
	defaultDeepSeekBaseURL  = "https://api.deepseek.com"
	defaultOpenRouterURL    = "https://openrouter.ai/api/v1"
	defaultDeepSeekModel    = "deepseek-chat"
	defaultOpenRouterModel  = "openai/gpt-4o-mini"
	defaultOllamaModel      = "llama3.1"
	ollamaCompatiblePathFmt = "%s/v1"
)

// OpenAIProvider implements Provider for OpenAI and OpenAI-compatible APIs
// (DeepSeek, OpenRouter, Ollama) via a configurable base URL.
type OpenAIProvider struct {
	client       *openai.Client
	name         string
	defaultModel string
	models       []ModelInfo
}

type openAIOptions struct {
	baseURL      string
	httpClient   *http.Client
	name         string
	defaultModel string
	models       []ModelInfo
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*openAIOptions)

// WithBaseURL sets the base URL for the OpenAI-compatible API.
func WithBaseURL(url string) OpenAIOption {
	return func(o *openAIOptions) {
		o.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(o *openAIOptions) {
		o.httpClient = client
	}
}

// WithModels sets the available models for this provider.
func WithModels(models []ModelInfo) OpenAIOption {
	return func(o *openAIOptions) {
		o.models = models
	}
}

// WithDefaultModel sets the model used when a request leaves Model empty.
func WithDefaultModel(model string) OpenAIOption {
	return func(o *openAIOptions) {
		o.defaultModel = model
	}
}

// WithProviderName sets the provider name (for multi-instance use, e.g. "deepseek").
func WithProviderName(name string) OpenAIOption {
	return func(o *openAIOptions) {
		o.name = name
	}
}

// NewOpenAIProvider creates a new OpenAI-compatible provider.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	o := &openAIOptions{
		name:         "openai",
		defaultModel: defaultOpenAIModel,
	}
	for _, opt := range opts {
		opt(o)
	}

	cfg := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	if o.httpClient != nil {
		cfg.HTTPClient = o.httpClient
	}

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(cfg),
		name:         o.name,
		defaultModel: o.defaultModel,
		models:       o.models,
	}
}

// NewDeepSeekProvider creates a provider for the DeepSeek API.
func NewDeepSeekProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	opts = append([]OpenAIOption{
		WithBaseURL(defaultDeepSeekBaseURL),
		WithProviderName("deepseek"),
		WithDefaultModel(defaultDeepSeekModel),
	}, opts...)
	return NewOpenAIProvider(apiKey, opts...)
}

// NewOpenRouterProvider creates a provider for the OpenRouter API.
func NewOpenRouterProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	opts = append([]OpenAIOption{
		WithBaseURL(defaultOpenRouterURL),
		WithProviderName("openrouter"),
		WithDefaultModel(defaultOpenRouterModel),
	}, opts...)
	return NewOpenAIProvider(apiKey, opts...)
}

// NewOllamaProvider creates a provider for a self-hosted Ollama server
// through its OpenAI-compatible endpoint.
func NewOllamaProvider(serverURL string, opts ...OpenAIOption) *OpenAIProvider {
	opts = append([]OpenAIOption{
		WithBaseURL(fmt.Sprintf(ollamaCompatiblePathFmt, serverURL)),
		WithProviderName("ollama"),
		WithDefaultModel(defaultOllamaModel),
	}, opts...)
	return NewOpenAIProvider("ollama", opts...)
}

// Name returns the provider name used in logs and router registration.
func (p *OpenAIProvider) Name() string {
	return p.name
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	oaiReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		oaiReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		oaiReq.Temperature = float32(req.Temperature)
	}
	if req.JSON {
		oaiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, oaiReq)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("%s chat completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return CompletionResponse{}, fmt.Errorf("%s: no choices in response", p.name)
	}

	return CompletionResponse{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		Provider:     p.name,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (p *OpenAIProvider) Models() []ModelInfo {
	if p.models != nil {
		return p.models
	}
	return []ModelInfo{
		{ID: openai.GPT4o, Name: "GPT-4o", MaxTokens: 128000, Description: "Most capable OpenAI model"},
		{ID: openai.GPT4oMini, Name: "GPT-4o Mini", MaxTokens: 128000, Description: "Fast, affordable OpenAI model"},
	}
}

func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
