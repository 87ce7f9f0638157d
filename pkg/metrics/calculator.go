// Package metrics derives the four-dimensional quality record (quality,
// performance, impact, improvement) from a generated prompt and its execution
// metadata. All formulas are deterministic; no LLM calls.
package metrics

import (
	"fmt"
	"strings"

	"github.com/promptforge-dev/promptforge/pkg/config"
	"github.com/promptforge-dev/promptforge/pkg/models"
)

const (
	structureBonus    = 0.10
	guardrailBonusCap = 0.15
	guardrailBonus    = 0.05 // per guardrail, capped

	// perTokenCostUSD approximates blended provider cost for the cost band.
	perTokenCostUSD = 2e-6

	trendEpsilon = 0.02
)

// ExecutionMeta carries the measured facts of one strategy execution.
type ExecutionMeta struct {
	LatencyMS   int64
	TotalTokens int
	Provider    string
	Model       string
}

// Calculator computes the metrics record. Weights are injected from
// configuration and must sum to 1.
type Calculator struct {
	weights config.QualityWeights
}

// NewCalculator creates a calculator with the given quality weights.
func NewCalculator(weights config.QualityWeights) *Calculator {
	return &Calculator{weights: weights}
}

// Calculate produces the full metrics record. impact and baseline may be nil.
func (c *Calculator) Calculate(
	prompt *models.GeneratedPrompt,
	rawIdea string,
	meta ExecutionMeta,
	impact *models.ImpactData,
	baseline *float64,
) (*models.QualityMetrics, error) {
	if prompt == nil {
		return nil, fmt.Errorf("metrics: nil prompt")
	}

	quality := c.Quality(prompt, rawIdea)
	performance := c.Performance(meta)
	improvement := c.Improvement(quality.Composite, baseline)

	record := &models.QualityMetrics{
		Quality:     &quality,
		Performance: &performance,
		Improvement: &improvement,
	}
	if impact != nil {
		impactScores := c.Impact(*impact)
		record.Impact = &impactScores
	}
	return record, nil
}

// Quality scores the prompt text along four sub-dimensions and combines them
// into the weighted composite with structure and guardrail bonuses.
func (c *Calculator) Quality(prompt *models.GeneratedPrompt, rawIdea string) models.QualityScores {
	scores := models.QualityScores{
		Coherence:    coherence(prompt.ImprovedPrompt),
		Relevance:    relevance(rawIdea, prompt.ImprovedPrompt),
		Completeness: completeness(prompt),
		Clarity:      clarity(prompt.ImprovedPrompt),
	}

	composite := scores.Coherence*c.weights.Coherence +
		scores.Relevance*c.weights.Relevance +
		scores.Completeness*c.weights.Completeness +
		scores.Clarity*c.weights.Clarity

	if prompt.HasStructure() {
		composite += structureBonus
	}
	if bonus := guardrailBonus * float64(len(prompt.Guardrails)); bonus > 0 {
		if bonus > guardrailBonusCap {
			bonus = guardrailBonusCap
		}
		composite += bonus
	}

	scores.Composite = clamp01(composite)
	return scores
}

// Performance maps latency and token cost onto fixed reference bands and
// multiplies the band scores.
func (c *Calculator) Performance(meta ExecutionMeta) models.PerformanceScores {
	costUSD := float64(meta.TotalTokens) * perTokenCostUSD

	return models.PerformanceScores{
		LatencyMS:        meta.LatencyMS,
		TotalTokens:      meta.TotalTokens,
		CostUSD:          costUSD,
		PerformanceScore: latencyBand(meta.LatencyMS) * costBand(costUSD),
	}
}

// Impact combines normalized usage counts, the optional rating and an inverse
// of the regeneration count.
func (c *Calculator) Impact(data models.ImpactData) models.ImpactScores {
	rating := 0.5 // neutral midpoint when unrated
	if data.UserRating != nil {
		rating = clamp01((*data.UserRating - 1) / 4) // 1–5 → [0,1]
	}

	score := 0.4*saturating(data.CopyCount) +
		0.3*rating +
		0.2*saturating(data.ReuseCount) +
		0.1*(1.0/(1.0+float64(data.RegenerationCount)))

	return models.ImpactScores{
		ImpactData:  data,
		ImpactScore: clamp01(score),
	}
}

// Improvement compares the current composite against the rolling baseline.
// A nil baseline yields a null delta and a flat trend.
func (c *Calculator) Improvement(current float64, baseline *float64) models.ImprovementScores {
	out := models.ImprovementScores{
		CurrentComposite: current,
		TrendDirection:   models.TrendFlat,
	}
	if baseline == nil {
		return out
	}

	delta := current - *baseline
	out.BaselineComposite = baseline
	out.Delta = &delta
	switch {
	case delta > trendEpsilon:
		out.TrendDirection = models.TrendUpward
	case delta < -trendEpsilon:
		out.TrendDirection = models.TrendDownward
	}
	return out
}

// relevance is the fraction of idea tokens that reappear in the prompt.
func relevance(rawIdea, improvedPrompt string) float64 {
	ideaTokens := tokenSet(rawIdea)
	if len(ideaTokens) == 0 {
		return 0.5
	}
	promptTokens := tokenSet(improvedPrompt)

	hits := 0
	for tok := range ideaTokens {
		if promptTokens[tok] {
			hits++
		}
	}
	return float64(hits) / float64(len(ideaTokens))
}

// completeness rewards structural fields and substantial prompt text.
func completeness(prompt *models.GeneratedPrompt) float64 {
	score := 0.0
	if prompt.Role != "" {
		score += 0.25
	}
	if prompt.Directive != "" {
		score += 0.25
	}
	if len(prompt.Guardrails) > 0 {
		score += 0.25
	}
	length := float64(len(prompt.ImprovedPrompt)) / 200.0
	if length > 1 {
		length = 1
	}
	return score + 0.25*length
}

// coherence penalizes degenerate sentence structure: everything in a single
// run-on sentence, or heavy line repetition.
func coherence(text string) float64 {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	sentences := countSentences(text)

	score := 1.0
	avg := float64(words) / float64(sentences)
	switch {
	case avg > 60:
		score -= 0.4
	case avg > 40:
		score -= 0.2
	case avg < 3:
		score -= 0.3
	}

	score -= duplicationPenalty(text)
	return clamp01(score)
}

// clarity penalizes opaque vocabulary and low information density.
func clarity(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	totalLen := 0
	for _, w := range words {
		totalLen += len(w)
	}
	avgLen := float64(totalLen) / float64(len(words))

	score := 1.0
	switch {
	case avgLen > 10:
		score -= 0.4
	case avgLen > 8:
		score -= 0.2
	}
	if density(text) < 0.5 {
		score -= 0.2
	}
	return clamp01(score)
}

func latencyBand(latencyMS int64) float64 {
	switch {
	case latencyMS <= 5_000:
		return 1.0
	case latencyMS <= 10_000:
		return 0.8
	case latencyMS <= 20_000:
		return 0.5
	default:
		return 0.2
	}
}

func costBand(costUSD float64) float64 {
	switch {
	case costUSD <= 0.01:
		return 1.0
	case costUSD <= 0.05:
		return 0.8
	case costUSD <= 0.20:
		return 0.5
	default:
		return 0.2
	}
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(text)) {
		tok := strings.Trim(f, ".,;:!?\"'()[]{}")
		if len(tok) >= 3 {
			set[tok] = true
		}
	}
	return set
}

func countSentences(text string) int {
	count := 0
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return count
}

func duplicationPenalty(text string) float64 {
	seen := make(map[string]bool)
	lines, dups := 0, 0
	for _, line := range strings.Split(text, "\n") {
		norm := strings.Join(strings.Fields(strings.ToLower(line)), " ")
		if norm == "" {
			continue
		}
		lines++
		if seen[norm] {
			dups++
		}
		seen[norm] = true
	}
	if lines == 0 {
		return 0
	}
	return 0.5 * float64(dups) / float64(lines)
}

func density(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	alnum := 0
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			alnum++
		}
	}
	return float64(alnum) / float64(len(text))
}

func saturating(count int) float64 {
	if count < 0 {
		count = 0
	}
	return float64(count) / (float64(count) + 3.0)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
