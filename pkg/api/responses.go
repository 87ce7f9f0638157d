package api

import (
	"github.com/promptforge-dev/promptforge/pkg/models"
	"github.com/promptforge-dev/promptforge/pkg/services"
)

// ImprovePromptResponse is returned by POST /api/v1/improve-prompt.
type ImprovePromptResponse struct {
	ImprovedPrompt string                  `json:"improved_prompt"`
	Role           string                  `json:"role"`
	Directive      string                  `json:"directive"`
	Framework      string                  `json:"framework"`
	Guardrails     []string                `json:"guardrails"`
	Reasoning      *string                 `json:"reasoning"`
	Confidence     *float64                `json:"confidence"`
	Backend        *string                 `json:"backend"`
	PromptID       string                  `json:"prompt_id"`
	Strategy       string                  `json:"strategy"`
	Intent         string                  `json:"intent"`
	MetricsWarning *string                 `json:"metrics_warning"`
	Degradation    models.DegradationFlags `json:"degradation_flags"`
}

// ErrorResponse is the stable error body shape.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	DSPyConfigured bool   `json:"dspy_configured"`
	Version        string `json:"version"`
	Database       string `json:"database,omitempty"`
	PoolSize       int    `json:"pool_size"`
	KNNDisabled    bool   `json:"knn_disabled"`
}

// HistoryListResponse is returned by GET /api/v1/history.
type HistoryListResponse struct {
	Records []*models.PromptRecord `json:"records"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

// RetentionSweepResponse is returned by DELETE /api/v1/history/old.
type RetentionSweepResponse struct {
	Deleted int64 `json:"deleted"`
	Days    int   `json:"days"`
}

// StatsResponse is returned by GET /api/v1/stats.
type StatsResponse struct {
	*services.Statistics
}
