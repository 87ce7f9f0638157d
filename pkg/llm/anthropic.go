package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicDefaultMaxTokens = 4096

// AnthropicClient handles communication with the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
	model  string
}

// NewAnthropicClient creates a new Anthropic client with the given API key and model.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Generate sends a non-streaming request and returns the complete response.
func (c *AnthropicClient) Generate(ctx context.Context, req Request) (*Response, error) {
	systemInstruction, conversationMessages := extractSystemInstruction(req.Messages)

	messages := make([]anthropic.MessageParam, 0, len(conversationMessages))
	for _, msg := range conversationMessages {
		block := anthropic.NewTextBlock(msg.Content)
		if msg.Role == RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(maxTokens),
		Messages:    messages,
		Temperature: anthropic.Float(req.Temperature),
	}
	if systemInstruction != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemInstruction}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, NewProviderError("anthropic", fmt.Errorf("model %s: %w", c.model, err))
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return &Response{
		Text:        sb.String(),
		TotalTokens: int(message.Usage.InputTokens + message.Usage.OutputTokens),
	}, nil
}

// CheckConnection verifies that the Anthropic API is accessible.
func (c *AnthropicClient) CheckConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 8,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("Hello"))},
	})
	if err != nil {
		return NewProviderError("anthropic", fmt.Errorf("failed to connect to Anthropic API: %w", err))
	}

	return nil
}

// Model returns the name of the model being used.
func (c *AnthropicClient) Model() string { return c.model }

// Provider returns "anthropic".
func (c *AnthropicClient) Provider() string { return "anthropic" }
