package models

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Example is a curated (raw idea → structured prompt) pair used as a
// demonstration for few-shot generation.
type Example struct {
	OriginalIdea   string    `json:"original_idea"`
	Context        string    `json:"context,omitempty"`
	ImprovedPrompt string    `json:"improved_prompt"`
	Role           string    `json:"role,omitempty"`
	Directive      string    `json:"directive,omitempty"`
	Framework      Framework `json:"framework"`
	Guardrails     []string  `json:"guardrails"`

	// Metadata.
	Domain     string  `json:"domain,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	IOHash     string  `json:"io_hash,omitempty"`
	Source     string  `json:"source,omitempty"`
}

// ComputeIOHash derives the deterministic identity hash of an example from
// its (original_idea, improved_prompt) pair. Two examples with the same pair
// always collide, regardless of metadata.
func ComputeIOHash(originalIdea, improvedPrompt string) string {
	h := xxhash.New()
	_, _ = h.WriteString(originalIdea)
	_, _ = h.WriteString("\x1f")
	_, _ = h.WriteString(improvedPrompt)
	return fmt.Sprintf("%016x", h.Sum64())
}
