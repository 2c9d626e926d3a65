package provider

import (
	"context"
	"fmt"

	"github.com/kayz/formforge/internal/extract"
	"github.com/kayz/formforge/internal/prompt"
	"github.com/sashabaranov/go-openai"
)

// OpenAICompat serves every OpenAI-compatible chat endpoint: OpenAI itself,
// DeepSeek, Gemini's compatibility layer, and local Ollama servers. One
// client covers them all; only the base URL, credentials and default model
// differ.
type OpenAICompat struct {
	client       *openai.Client
	model        string
	providerName string
}

// OpenAICompatConfig holds configuration for an OpenAI-compatible provider.
type OpenAICompatConfig struct {
	ProviderName string // "openai", "deepseek", "gemini", "ollama"
	APIKey       string
	BaseURL      string
	Model        string
}

var openAICompatDefaults = map[string]struct {
	baseURL string
	model   string
	apiKey  string // placeholder key for local endpoints that ignore auth
}{
	"openai":   {"https://api.openai.com/v1", "gpt-4o-mini", ""},
	"deepseek": {"https://api.deepseek.com/v1", "deepseek-chat", ""},
	"gemini":   {"https://generativelanguage.googleapis.com/v1beta/openai", "gemini-2.0-flash", ""},
	"ollama":   {"http://localhost:11434/v1", "deepseek-r1:8b", "ollama"},
}

// NewOpenAICompat creates a provider for an OpenAI-compatible endpoint.
func NewOpenAICompat(cfg OpenAICompatConfig) (*OpenAICompat, error) {
	if cfg.ProviderName == "" {
		cfg.ProviderName = "ollama"
	}
	defaults, ok := openAICompatDefaults[cfg.ProviderName]
	if !ok {
		return nil, fmt.Errorf("unknown OpenAI-compatible provider: %s", cfg.ProviderName)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = defaults.apiKey
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for %s", cfg.ProviderName)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.baseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaults.model
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	return &OpenAICompat{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        cfg.Model,
		providerName: cfg.ProviderName,
	}, nil
}

// Name returns the provider name.
func (p *OpenAICompat) Name() string {
	return p.providerName
}

// Complete dispatches a streamed chat completion.
func (p *OpenAICompat) Complete(ctx context.Context, messages []prompt.Message) (extract.Stream, error) {
	req := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
		Stream:   true,
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s API error: %w", p.providerName, err)
	}
	return &openAIStream{inner: stream}, nil
}

// openAIStream adapts the SDK stream to the fragment-stream contract.
type openAIStream struct {
	inner *openai.ChatCompletionStream
}

func (s *openAIStream) Recv() (string, error) {
	resp, err := s.inner.Recv()
	if err != nil {
		// io.EOF passes through as the terminal signal.
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *openAIStream) Close() error {
	return s.inner.Close()
}
