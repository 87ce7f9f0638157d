// Package generator turns a raw idea (plus optional context and demos) into a
// structured prompt by invoking the configured LLM adapter and enforcing the
// output contract on what comes back.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/promptforge-dev/promptforge/pkg/llm"
	"github.com/promptforge-dev/promptforge/pkg/models"
)

var (
	// ErrEmptyPrompt indicates the LLM returned no usable prompt text.
	ErrEmptyPrompt = errors.New("generator returned an empty prompt")

	// ErrEmptyGuardrails indicates the output carried no guardrails after coercion.
	ErrEmptyGuardrails = errors.New("generator returned no guardrails")

	// ErrMalformedOutput indicates the LLM response could not be parsed.
	ErrMalformedOutput = errors.New("generator output is not valid JSON")
)

// RefinementContext threads a prior candidate and its gate-failure summary
// into an optimization (OPRO) or reflexion call.
type RefinementContext struct {
	PriorPrompt  string
	GateFailures string
	// Reflexive selects the self-critique variant used for DEBUG intent.
	Reflexive bool
}

// Input is the fixed input signature of a generation call.
type Input struct {
	RawIdea    string
	Context    string
	Demos      []models.Example
	Refinement *RefinementContext
}

// Generator invokes the LLM adapter with the fixed signature and enforces the
// output contract. It is agnostic to the underlying provider; temperature and
// call timeout are injected from configuration. The generator never retries —
// retries are the strategy's responsibility.
type Generator struct {
	client      llm.Client
	temperature float64
	callTimeout time.Duration
}

// New creates a Generator over the shared adapter instance.
func New(client llm.Client, temperature float64, callTimeout time.Duration) *Generator {
	return &Generator{
		client:      client,
		temperature: temperature,
		callTimeout: callTimeout,
	}
}

// Client exposes the underlying adapter (for health checks).
func (g *Generator) Client() llm.Client { return g.client }

// Generate performs one LLM call and returns the post-processed prompt.
// TotalTokens observed on the call is reported through tokens.
func (g *Generator) Generate(ctx context.Context, in Input) (*models.GeneratedPrompt, int, error) {
	system, user := buildMessages(in)

	callCtx := ctx
	if g.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.callTimeout)
		defer cancel()
	}

	resp, err := g.client.Generate(callCtx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
		Temperature: g.temperature,
	})
	if err != nil {
		// A per-call timeout with a still-live parent is a provider failure,
		// not a request deadline.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, 0, llm.NewProviderError(g.client.Provider(), fmt.Errorf("call timed out: %w", err))
		}
		return nil, 0, err
	}

	prompt, err := parseOutput(resp.Text)
	if err != nil {
		return nil, resp.TotalTokens, err
	}
	return prompt, resp.TotalTokens, nil
}

// rawOutput mirrors the JSON contract of the LLM response. Guardrails is
// loosely typed: providers sometimes return a single newline-joined string.
type rawOutput struct {
	ImprovedPrompt string   `json:"improved_prompt"`
	Role           string   `json:"role"`
	Directive      string   `json:"directive"`
	Framework      string   `json:"framework"`
	Guardrails     any      `json:"guardrails"`
	Reasoning      string   `json:"reasoning"`
	Confidence     *float64 `json:"confidence"`
}

// parseOutput extracts the JSON object from the response text and enforces
// the post-processing rules: trim all strings, coerce guardrails to a
// nonempty list, rewrite invalid frameworks, drop out-of-range confidence.
func parseOutput(text string) (*models.GeneratedPrompt, error) {
	payload := extractJSON(text)
	if payload == "" {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedOutput)
	}

	var raw rawOutput
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}

	prompt := &models.GeneratedPrompt{
		ImprovedPrompt: strings.TrimSpace(raw.ImprovedPrompt),
		Role:           strings.TrimSpace(raw.Role),
		Directive:      strings.TrimSpace(raw.Directive),
		Reasoning:      strings.TrimSpace(raw.Reasoning),
	}
	if prompt.ImprovedPrompt == "" {
		return nil, ErrEmptyPrompt
	}

	guardrails := coerceGuardrails(raw.Guardrails)
	if len(guardrails) == 0 {
		return nil, ErrEmptyGuardrails
	}
	prompt.Guardrails = guardrails

	framework, rewritten := models.NormalizeFramework(raw.Framework)
	if rewritten {
		slog.Warn("Rewriting unknown framework to default",
			"framework", raw.Framework, "default", framework)
	}
	prompt.Framework = framework

	if raw.Confidence != nil {
		if *raw.Confidence < 0 || *raw.Confidence > 1 {
			slog.Warn("Dropping out-of-range confidence", "confidence", *raw.Confidence)
		} else {
			prompt.Confidence = raw.Confidence
		}
	}

	return prompt, nil
}

// coerceGuardrails normalizes the guardrails field to a list of nonempty strings.
func coerceGuardrails(v any) []string {
	var out []string
	appendTrimmed := func(s string) {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}

	switch g := v.(type) {
	case string:
		for _, line := range strings.Split(g, "\n") {
			appendTrimmed(strings.TrimLeft(strings.TrimSpace(line), "-*• "))
		}
	case []any:
		for _, item := range g {
			if s, ok := item.(string); ok {
				appendTrimmed(s)
			}
		}
	}
	return out
}

// extractJSON returns the outermost JSON object in text, tolerating markdown
// code fences around it.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if after, ok := strings.CutPrefix(text, "```json"); ok {
		text = after
	} else if after, ok := strings.CutPrefix(text, "```"); ok {
		text = after
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
