package models

// TrendDirection classifies the movement of the rolling quality composite.
type TrendDirection string

const (
	TrendUpward   TrendDirection = "upward"
	TrendFlat     TrendDirection = "flat"
	TrendDownward TrendDirection = "downward"
)

// QualityScores are the per-dimension quality sub-scores, each in [0,1].
type QualityScores struct {
	Coherence    float64 `json:"coherence"`
	Relevance    float64 `json:"relevance"`
	Completeness float64 `json:"completeness"`
	Clarity      float64 `json:"clarity"`

	// Composite is the weighted average plus structure/guardrails bonuses,
	// clamped to [0,1].
	Composite float64 `json:"composite"`
}

// PerformanceScores capture execution cost and speed.
type PerformanceScores struct {
	LatencyMS        int64   `json:"latency_ms"`
	TotalTokens      int     `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
	PerformanceScore float64 `json:"performance_score"`
}

// ImpactData is optional user-feedback input to the impact dimension.
type ImpactData struct {
	CopyCount         int      `json:"copy_count"`
	RegenerationCount int      `json:"regeneration_count"`
	ReuseCount        int      `json:"reuse_count"`
	UserRating        *float64 `json:"user_rating,omitempty"` // 1–5 when present
}

// ImpactScores are derived from ImpactData.
type ImpactScores struct {
	ImpactData
	ImpactScore float64 `json:"impact_score"`
}

// ImprovementScores compare the current composite against a rolling baseline.
type ImprovementScores struct {
	BaselineComposite *float64       `json:"baseline_composite,omitempty"`
	CurrentComposite  float64        `json:"current_composite"`
	Delta             *float64       `json:"delta,omitempty"`
	TrendDirection    TrendDirection `json:"trend_direction"`
}

// QualityMetrics is the four-dimensional metrics record attached to every
// successful response. Impact is nil when no impact data was supplied. When
// the calculation fails the response carries no metrics record and sets
// degradation_flags.metrics_failed.
type QualityMetrics struct {
	Quality     *QualityScores     `json:"quality,omitempty"`
	Performance *PerformanceScores `json:"performance,omitempty"`
	Impact      *ImpactScores      `json:"impact,omitempty"`
	Improvement *ImprovementScores `json:"improvement,omitempty"`
}
