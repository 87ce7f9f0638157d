package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/promptforge-dev/promptforge/pkg/llm"
	"github.com/promptforge-dev/promptforge/pkg/models"
	"github.com/stretchr/testify/assert"
)

type fakeLLM struct {
	text string
	err  error
}

func (f *fakeLLM) Generate(context.Context, llm.Request) (*llm.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Text: f.text}, nil
}

func (f *fakeLLM) CheckConnection(context.Context) error { return nil }
func (f *fakeLLM) Model() string                         { return "fake" }
func (f *fakeLLM) Provider() string                      { return "stub" }

func TestClassifyByRules(t *testing.T) {
	classifier := NewIntentClassifier(nil)

	tests := []struct {
		name string
		idea string
		want models.Intent
	}{
		{"debug", "Fix the bug in the login handler", models.IntentDebug},
		{"refactor", "Refactor this module to simplify the interfaces", models.IntentRefactor},
		{"generate", "Create a REST endpoint that uploads files", models.IntentGenerate},
		{"explain", "Explain why this query is slow", models.IntentExplain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent, confidence := classifier.Classify(context.Background(), tt.idea, "")
			assert.Equal(t, tt.want, intent)
			assert.Greater(t, confidence, 0.5)
			assert.LessOrEqual(t, confidence, 0.95)
		})
	}
}

func TestClassifyAmbiguousUsesLLMFallback(t *testing.T) {
	classifier := NewIntentClassifier(&fakeLLM{text: "REFACTOR 0.7"})

	// No rule keyword appears; the fallback decides.
	intent, confidence := classifier.Classify(context.Background(), "tidy the sprawling thing somehow", "")
	assert.Equal(t, models.IntentRefactor, intent)
	assert.InDelta(t, 0.7, confidence, 1e-9)
}

func TestClassifyClampsLLMConfidence(t *testing.T) {
	classifier := NewIntentClassifier(&fakeLLM{text: "EXPLAIN 0.99"})

	_, confidence := classifier.Classify(context.Background(), "hmm this thing here", "")
	assert.InDelta(t, 0.9, confidence, 1e-9)
}

func TestClassifyAcceptsAnalyzeAlias(t *testing.T) {
	classifier := NewIntentClassifier(&fakeLLM{text: "ANALYZE 0.6"})

	intent, _ := classifier.Classify(context.Background(), "hmm this thing here", "")
	assert.Equal(t, models.IntentExplain, intent)
}

func TestClassifyDefaultsOnLLMFailure(t *testing.T) {
	classifier := NewIntentClassifier(&fakeLLM{err: errors.New("timeout")})

	intent, confidence := classifier.Classify(context.Background(), "hmm this thing here", "")
	assert.Equal(t, models.IntentGenerate, intent)
	assert.InDelta(t, 0.3, confidence, 1e-9)
}

func TestClassifyDefaultsOnUnparseableLLMOutput(t *testing.T) {
	classifier := NewIntentClassifier(&fakeLLM{text: "I think the user wants many things"})

	intent, confidence := classifier.Classify(context.Background(), "hmm this thing here", "")
	assert.Equal(t, models.IntentGenerate, intent)
	assert.InDelta(t, 0.3, confidence, 1e-9)
}

func TestClassifyDefaultsWithoutClient(t *testing.T) {
	classifier := NewIntentClassifier(nil)

	intent, confidence := classifier.Classify(context.Background(), "hmm this thing here", "")
	assert.Equal(t, models.IntentGenerate, intent)
	assert.InDelta(t, 0.3, confidence, 1e-9)
}
