// Package analyzer classifies raw ideas along two axes: intent (what the user
// wants) and complexity (how rich the input is). Neither analyzer raises to
// callers. The complexity analyzer is deterministic; the intent classifier
// makes one LLM call when its keyword rules are ambiguous.
package analyzer

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/promptforge-dev/promptforge/pkg/llm"
	"github.com/promptforge-dev/promptforge/pkg/models"
)

// Rule-pass keyword sets. High precision beats recall here: anything
// ambiguous falls through to the LLM.
var intentKeywords = map[models.Intent][]string{
	models.IntentDebug:    {"fix", "bug", "error", "crash", "broken", "fails", "failing", "exception", "debug"},
	models.IntentRefactor: {"refactor", "clean", "restructure", "simplify", "rename", "reorganize", "extract", "decouple"},
	models.IntentGenerate: {"create", "build", "implement", "design", "write", "generate", "add", "develop"},
	models.IntentExplain:  {"explain", "analyze", "describe", "why", "how", "understand", "document", "compare"},
}

const (
	// ruleMargin is the evidence lead one intent needs over all others for
	// the rule pass to decide without the LLM.
	ruleMargin = 1

	// ruleConfidenceCap bounds rule-pass confidence. It lies above
	// llmConfidenceCap, so confidences above 0.9 come only from the rule pass.
	ruleConfidenceCap = 0.95

	// llmConfidenceCap clamps fallback confidence below the rule ceiling.
	llmConfidenceCap = 0.9

	// defaultConfidence is reported when classification collapses to the default.
	defaultConfidence = 0.3
)

var wordRe = regexp.MustCompile(`[a-z0-9']+`)

// IntentClassifier assigns one of the four intent labels with a confidence.
// It runs a rule cascade first and falls back to a single LLM call only when
// the rules are ambiguous. It never returns an error: unrecoverable failures
// collapse to GENERATE with low confidence and a logged warning.
type IntentClassifier struct {
	client llm.Client
}

// NewIntentClassifier creates a classifier over the shared adapter.
// client may be nil; the classifier then skips the fallback entirely.
func NewIntentClassifier(client llm.Client) *IntentClassifier {
	return &IntentClassifier{client: client}
}

// Classify returns (intent, confidence) for the given idea and context.
func (c *IntentClassifier) Classify(ctx context.Context, idea, extraContext string) (models.Intent, float64) {
	if intent, confidence, ok := classifyByRules(idea); ok {
		return intent, confidence
	}

	if c.client != nil {
		if intent, confidence, ok := c.classifyByLLM(ctx, idea, extraContext); ok {
			return intent, confidence
		}
	}

	slog.Warn("Intent classification fell back to default", "intent", models.IntentGenerate)
	return models.IntentGenerate, defaultConfidence
}

// classifyByRules scores keyword evidence per intent. It decides only when
// exactly one intent leads all others by at least ruleMargin.
func classifyByRules(idea string) (models.Intent, float64, bool) {
	tokens := wordRe.FindAllString(strings.ToLower(idea), -1)
	tokenSet := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		tokenSet[tok] = true
	}

	scores := make(map[models.Intent]int, len(intentKeywords))
	for intent, keywords := range intentKeywords {
		for _, kw := range keywords {
			if tokenSet[kw] {
				scores[intent]++
			}
		}
	}

	var best models.Intent
	bestScore, secondScore := 0, 0
	for _, intent := range models.AllIntents {
		score := scores[intent]
		if score > bestScore {
			best, bestScore, secondScore = intent, score, bestScore
		} else if score > secondScore {
			secondScore = score
		}
	}

	margin := bestScore - secondScore
	if bestScore == 0 || margin < ruleMargin {
		return "", 0, false
	}

	confidence := 0.6 + 0.1*float64(margin)
	if confidence > ruleConfidenceCap {
		confidence = ruleConfidenceCap
	}
	return best, confidence, true
}

const classifyPrompt = `Classify the intent of this request. Respond with a single intent label and confidence, e.g. "DEBUG 0.8". Labels: DEBUG, REFACTOR, GENERATE, EXPLAIN.`

// classifyByLLM issues one classification call. The returned confidence is
// used verbatim, clamped to [0, 0.9].
func (c *IntentClassifier) classifyByLLM(ctx context.Context, idea, extraContext string) (models.Intent, float64, bool) {
	var sb strings.Builder
	sb.WriteString(classifyPrompt)
	sb.WriteString("\n\nIdea: ")
	sb.WriteString(idea)
	if extraContext != "" {
		sb.WriteString("\nContext: ")
		sb.WriteString(extraContext)
	}

	resp, err := c.client.Generate(ctx, llm.Request{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: sb.String()}},
		Temperature: 0,
	})
	if err != nil {
		slog.Warn("Intent classification LLM fallback failed", "error", err)
		return "", 0, false
	}

	intent, confidence, ok := parseClassification(resp.Text)
	if !ok {
		slog.Warn("Intent classification LLM fallback returned unparseable output", "output", resp.Text)
		return "", 0, false
	}
	return intent, confidence, true
}

// parseClassification extracts "<LABEL> <confidence>" from LLM output.
func parseClassification(text string) (models.Intent, float64, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return "", 0, false
	}

	intent, ok := models.ParseIntent(strings.Trim(fields[0], ".,:"))
	if !ok {
		return "", 0, false
	}

	confidence := 0.5
	if len(fields) > 1 {
		if f, err := strconv.ParseFloat(strings.Trim(fields[1], ".,"), 64); err == nil {
			confidence = f
		}
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > llmConfidenceCap {
		confidence = llmConfidenceCap
	}
	return intent, confidence, true
}
