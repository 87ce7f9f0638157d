package llm

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// GeminiClient handles communication with Google's Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a new Gemini client with the given API key and model.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  model,
	}, nil
}

// convertMessages converts our Message type to Gemini Content format.
// Gemini uses "user" and "model" roles (not "assistant").
func (c *GeminiClient) convertMessages(messages []Message) []*genai.Content {
	var contents []*genai.Content

	for _, msg := range messages {
		role := msg.Role
		if role == RoleAssistant {
			role = "model"
		}

		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}

	return contents
}

// extractSystemInstruction extracts the system message (if any) from messages.
// Returns the system instruction and remaining messages.
func extractSystemInstruction(messages []Message) (string, []Message) {
	var systemInstruction string
	var remaining []Message

	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if systemInstruction != "" {
				systemInstruction += "\n\n"
			}
			systemInstruction += msg.Content
		} else {
			remaining = append(remaining, msg)
		}
	}

	return systemInstruction, remaining
}

// Generate sends a non-streaming request and returns the complete response.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (*Response, error) {
	systemInstruction, conversationMessages := extractSystemInstruction(req.Messages)
	contents := c.convertMessages(conversationMessages)

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if systemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(systemInstruction)},
		}
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	response, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return nil, NewProviderError("gemini", fmt.Errorf("model %s: %w", c.model, err))
	}

	out := &Response{Text: response.Text()}
	if response.UsageMetadata != nil {
		out.TotalTokens = int(response.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}

// CheckConnection verifies that the Gemini API is accessible.
func (c *GeminiClient) CheckConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{genai.NewPartFromText("Hello")},
		},
	}

	_, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return NewProviderError("gemini", fmt.Errorf("failed to connect to Gemini API: %w", err))
	}

	return nil
}

// Model returns the name of the model being used.
func (c *GeminiClient) Model() string { return c.model }

// Provider returns "gemini".
func (c *GeminiClient) Provider() string { return "gemini" }
