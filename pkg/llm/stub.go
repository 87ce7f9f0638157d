package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// StubClient is a deterministic in-process provider for tests and offline
// development. It answers classification requests with a fixed label and
// generation requests with a minimal structured prompt built from the last
// user message. No network, no randomness.
type StubClient struct {
	model string
}

// NewStubClient creates a stub client.
func NewStubClient(model string) *StubClient {
	if model == "" {
		model = "stub-static"
	}
	return &StubClient{model: model}
}

// Generate answers deterministically based on the request shape.
func (c *StubClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	last := ""
	for _, m := range req.Messages {
		if m.Role == RoleUser {
			last = m.Content
		}
	}

	if strings.Contains(last, "single intent label") {
		return &Response{Text: "GENERATE 0.6", TotalTokens: len(last) / 4}, nil
	}

	idea := last
	if i := strings.Index(idea, "## Idea\n"); i >= 0 {
		idea = idea[i+len("## Idea\n"):]
	}
	if i := strings.Index(idea, "\n"); i > 0 {
		idea = idea[:i]
	}
	payload := map[string]any{
		"improved_prompt": "You are an expert software engineer. " + strings.TrimSpace(idea) +
			" Work through the problem step by step, state your assumptions explicitly, " +
			"and present the final result with a short rationale.",
		"role":       "expert software engineer",
		"directive":  "work through the problem step by step and justify the result",
		"framework":  "chain-of-thought",
		"guardrails": []string{"state assumptions explicitly", "do not invent APIs"},
		"confidence": 0.75,
	}
	data, _ := json.Marshal(payload)
	return &Response{Text: string(data), TotalTokens: len(last) / 4}, nil
}

// CheckConnection succeeds unless ctx is already done.
func (c *StubClient) CheckConnection(ctx context.Context) error { return ctx.Err() }

// Model returns the stub model name.
func (c *StubClient) Model() string { return c.model }

// Provider returns "stub".
func (c *StubClient) Provider() string { return "stub" }
