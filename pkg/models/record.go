package models

import "time"

// PromptRecord is the durable serialization of a generated prompt plus
// execution metadata, one row of the prompt_history table.
//
// Invariants: LatencyMS ≥ 0 or nil; Confidence in [0,1] or nil; OriginalIdea
// and ImprovedPrompt nonempty; Guardrails serialized as a JSON array;
// CreatedAt set to wall-clock UTC if unset at save time.
type PromptRecord struct {
	ID             int64     `db:"id" json:"id"`
	CreatedAt      string    `db:"created_at" json:"created_at"` // ISO-8601 UTC
	OriginalIdea   string    `db:"original_idea" json:"original_idea"`
	Context        string    `db:"context" json:"context"`
	ImprovedPrompt string    `db:"improved_prompt" json:"improved_prompt"`
	Role           string    `db:"role" json:"role"`
	Directive      string    `db:"directive" json:"directive"`
	Framework      string    `db:"framework" json:"framework"`
	Guardrails     []string  `db:"-" json:"guardrails"`
	Reasoning      *string   `db:"reasoning" json:"reasoning,omitempty"`
	Confidence     *float64  `db:"confidence" json:"confidence,omitempty"`
	Backend        string    `db:"backend" json:"backend"`
	Model          string    `db:"model" json:"model"`
	Provider       string    `db:"provider" json:"provider"`
	LatencyMS      *int64    `db:"latency_ms" json:"latency_ms,omitempty"`
}

// CorruptedGuardrailsSentinel replaces guardrails whose stored JSON cannot be
// parsed. Reads never raise on corrupted rows.
var CorruptedGuardrailsSentinel = []string{"[data corrupted - unavailable]"}

// NowUTC returns the current wall-clock time as an ISO-8601 UTC string, the
// canonical created_at representation.
func NowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
