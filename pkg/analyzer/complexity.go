package analyzer

import (
	"regexp"
	"strings"

	"github.com/promptforge-dev/promptforge/pkg/models"
)

// Signal weights and thresholds of the complexity score. The score is a sum
// of nonnegative contributions, so adding content never lowers the level.
const (
	tokenFloor      = 8    // tokens below this contribute nothing
	tokenCeiling    = 48   // token contribution saturates here
	tokenMaxScore   = 3.0
	conjunctionStep = 0.5  // per conjunction / enumeration marker
	codeFenceScore  = 2.0
	jargonStep      = 0.4  // per domain keyword hit
	jargonMaxScore  = 2.0

	moderateThreshold = 1.5
	complexThreshold  = 3.5
)

var conjunctions = map[string]bool{
	"and": true, "then": true, "also": true, "plus": true, "after": true, "before": true, "while": true,
}

// domainKeywords is a small per-domain jargon list; density of hits raises
// the score proportionally.
var domainKeywords = []string{
	"api", "database", "sql", "async", "concurrency", "thread", "mutex", "cache",
	"authentication", "authorization", "deployment", "kubernetes", "docker",
	"microservice", "queue", "websocket", "transaction", "migration", "endpoint",
	"serialization", "regression", "pipeline", "schema", "latency", "retry",
}

var (
	enumerationRe = regexp.MustCompile(`(?m)^\s*(\d+[.)]|[-*•])\s+`)
	codeFenceRe   = regexp.MustCompile("```|~~~")
)

// ComplexityAnalyzer scores input richness into SIMPLE / MODERATE / COMPLEX.
type ComplexityAnalyzer struct{}

// NewComplexityAnalyzer creates a complexity analyzer.
func NewComplexityAnalyzer() *ComplexityAnalyzer {
	return &ComplexityAnalyzer{}
}

// Analyze maps (idea, context) to a complexity level.
func (a *ComplexityAnalyzer) Analyze(idea, context string) models.Complexity {
	text := idea
	if context != "" {
		text += "\n" + context
	}

	score := tokenScore(text) + structureScore(text) + jargonScore(text)

	switch {
	case score < moderateThreshold:
		return models.ComplexitySimple
	case score < complexThreshold:
		return models.ComplexityModerate
	default:
		return models.ComplexityComplex
	}
}

// tokenScore contributes 0 below tokenFloor tokens and grows linearly to
// tokenMaxScore at tokenCeiling.
func tokenScore(text string) float64 {
	n := len(strings.Fields(text))
	if n <= tokenFloor {
		return 0
	}
	if n >= tokenCeiling {
		return tokenMaxScore
	}
	return tokenMaxScore * float64(n-tokenFloor) / float64(tokenCeiling-tokenFloor)
}

// structureScore counts multi-step signals: conjunctions, enumeration
// markers and code fences.
func structureScore(text string) float64 {
	score := 0.0
	for _, tok := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if conjunctions[tok] {
			score += conjunctionStep
		}
	}
	score += conjunctionStep * float64(len(enumerationRe.FindAllString(text, -1)))
	if codeFenceRe.MatchString(text) {
		score += codeFenceScore
	}
	return score
}

// jargonScore adds weight per domain keyword hit, capped.
func jargonScore(text string) float64 {
	lower := strings.ToLower(text)
	score := 0.0
	for _, kw := range domainKeywords {
		if strings.Contains(lower, kw) {
			score += jargonStep
		}
	}
	if score > jargonMaxScore {
		score = jargonMaxScore
	}
	return score
}
