package provider

import (
	"context"
	"fmt"
	"io"

	"github.com/kayz/formforge/internal/extract"
	"github.com/kayz/formforge/internal/prompt"
	"github.com/liushuangls/go-anthropic/v2"
)

const (
	claudeDefaultModel     = "claude-3-5-haiku-latest"
	claudeDefaultMaxTokens = 4096
)

// Claude implements the Backend interface for Anthropic models.
type Claude struct {
	client *anthropic.Client
	model  string
}

// ClaudeConfig holds Claude provider configuration.
type ClaudeConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewClaude creates a new Claude provider.
func NewClaude(cfg ClaudeConfig) (*Claude, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = claudeDefaultModel
	}

	opts := []anthropic.ClientOption{}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}

	return &Claude{
		client: anthropic.NewClient(cfg.APIKey, opts...),
		model:  cfg.Model,
	}, nil
}

// Name returns the provider name.
func (p *Claude) Name() string {
	return "claude"
}

// Complete dispatches a streamed completion. The SDK streams via callbacks,
// so deltas are bridged through a channel into the pull-based contract.
func (p *Claude) Complete(ctx context.Context, messages []prompt.Message) (extract.Stream, error) {
	req := anthropic.MessagesStreamRequest{
		MessagesRequest: anthropic.MessagesRequest{
			Model:     anthropic.Model(p.model),
			MaxTokens: claudeDefaultMaxTokens,
		},
	}

	for _, msg := range messages {
		switch msg.Role {
		case prompt.RoleSystem:
			req.System = msg.Content
		case prompt.RoleAssistant:
			req.Messages = append(req.Messages, anthropic.NewAssistantTextMessage(msg.Content))
		default:
			req.Messages = append(req.Messages, anthropic.NewUserTextMessage(msg.Content))
		}
	}

	s := &claudeStream{
		fragments: make(chan string, 16),
		done:      make(chan struct{}),
	}

	req.OnContentBlockDelta = func(data anthropic.MessagesEventContentBlockDeltaData) {
		text := data.Delta.GetText()
		if text == "" {
			return
		}
		select {
		case s.fragments <- text:
		case <-ctx.Done():
		}
	}

	go func() {
		_, err := p.client.CreateMessagesStream(ctx, req)
		if err != nil {
			s.err = fmt.Errorf("claude API error: %w", err)
		}
		close(s.fragments)
		close(s.done)
	}()

	return s, nil
}

type claudeStream struct {
	fragments chan string
	done      chan struct{}
	err       error
}

func (s *claudeStream) Recv() (string, error) {
	fragment, ok := <-s.fragments
	if !ok {
		<-s.done
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	return fragment, nil
}
