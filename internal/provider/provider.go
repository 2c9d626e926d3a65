// Package provider implements the chat backend contract consumed by the
// revision engine: OpenAI-compatible APIs (OpenAI, DeepSeek, Gemini,
// Ollama), Anthropic Claude, and an offline rule-based backend.
package provider

import (
	"context"
	"fmt"

	"github.com/kayz/formforge/internal/config"
	"github.com/kayz/formforge/internal/extract"
	"github.com/kayz/formforge/internal/prompt"
)

// Backend is the capability every model provider exposes: send an ordered
// message sequence, receive a lazily streamed text completion. The stream
// terminates with io.EOF.
type Backend interface {
	// Name identifies the provider in logs and status output.
	Name() string
	// Complete dispatches the messages and returns the fragment stream.
	Complete(ctx context.Context, messages []prompt.Message) (extract.Stream, error)
}

// New builds the backend selected by configuration.
func New(cfg config.AIConfig) (Backend, error) {
	switch cfg.Provider {
	case "openai", "deepseek", "gemini", "ollama", "":
		return NewOpenAICompat(OpenAICompatConfig{
			ProviderName: cfg.Provider,
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			Model:        cfg.Model,
		})
	case "claude", "anthropic":
		return NewClaude(ClaudeConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	case "rules":
		return NewRuleBased(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %s", cfg.Provider)
	}
}
