// Package llm provides client implementations for Large Language Models.
// It defines a common interface (Client) that all providers must implement,
// enabling switching between backends (Gemini, Anthropic, in-process stub)
// without touching the generation pipeline.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/promptforge-dev/promptforge/pkg/config"
)

// Message roles in a conversation.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversation turn.
type Message struct {
	Role    string
	Content string
}

// Request is a single generation call. The adapter performs no retries —
// retries are the strategy's responsibility.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Response is the adapter's structured result.
type Response struct {
	Text        string
	TotalTokens int
}

// Client defines the interface that all LLM providers must implement.
type Client interface {
	// Generate sends one non-streaming request and returns the complete response.
	Generate(ctx context.Context, req Request) (*Response, error)

	// CheckConnection verifies that the LLM service is accessible.
	CheckConnection(ctx context.Context) error

	// Model returns the name of the model being used.
	Model() string

	// Provider returns the provider identifier ("gemini", "anthropic", "stub").
	Provider() string
}

// ErrProviderUnavailable categorizes adapter failures: timeouts, network
// errors, quota exhaustion. Strategies react by downgrading.
var ErrProviderUnavailable = errors.New("llm provider unavailable")

// ProviderError wraps a provider failure with its origin.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return ErrProviderUnavailable
}

// NewProviderError wraps err as a provider-unavailable error.
func NewProviderError(provider string, err error) error {
	return &ProviderError{Provider: provider, Err: err}
}

// NewClient builds the configured provider adapter. The client is a single
// shared instance per process.
func NewClient(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg.APIKey, cfg.Model), nil
	case config.ProviderStub:
		return NewStubClient(cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
