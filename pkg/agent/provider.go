package agent

import (
	"context"
	"fmt"
)

// Request is a single model invocation.
type Request struct {
	Model       string
	Messages    []PromptMessage
	MaxTokens   int
	Temperature float64
}

// Response is a provider's completed answer.
type Response struct {
	Text  string
	Model string
	Usage TokenUsage
}

// Provider abstracts a chat-completion backend.
type Provider interface {
	Name() string
	// Invoke performs a single-shot completion.
	Invoke(ctx context.Context, req Request) (*Response, error)
	// InvokeStream performs a streaming completion, calling onDelta once per
	// partial text fragment in order. The returned Response carries the full
	// text and the usage from the terminal chunk. An error from onDelta
	// aborts the stream and is returned as-is.
	InvokeStream(ctx context.Context, req Request, onDelta func(delta string) error) (*Response, error)
}

// ProviderConfig selects and configures a concrete provider.
type ProviderConfig struct {
	// Kind is "openai" or "anthropic".
	Kind   string
	APIKey string
	// BaseURL optionally points the provider at a compatible endpoint.
	BaseURL string
}

// NewProvider builds the provider named by cfg.Kind.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Kind {
	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL), nil
	case "anthropic":
		return NewAnthropicProvider(cfg.APIKey, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown model provider: %s", cfg.Kind)
	}
}
