package pool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/promptforge-dev/promptforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func example(idea, prompt string, guardrails ...string) models.Example {
	return models.Example{
		OriginalIdea:   idea,
		ImprovedPrompt: prompt,
		Framework:      models.FrameworkChainOfThought,
		Guardrails:     guardrails,
	}
}

func TestNewNormalizesAndDeduplicates(t *testing.T) {
	p := New([]models.Example{
		example("reverse a string", "prompt one", "g1"),
		example("  reverse a string  ", "prompt one", "g2"), // same pair after trim → dup
		example("sort a slice", "prompt two", "g1"),
		example("", "prompt three", "g1"),          // empty idea → dropped
		example("parse json", "", "g1"),            // empty prompt → dropped
		example("walk a tree", "prompt four"),      // no guardrails → dropped
		example("walk a tree", "prompt four", " "), // blank guardrail → dropped
	})

	require.Equal(t, 2, p.Size())

	hashes := make(map[string]bool)
	for _, ex := range p.Examples() {
		assert.True(t, ex.Framework.IsValid())
		assert.NotEmpty(t, ex.Guardrails)
		assert.False(t, hashes[ex.IOHash], "io_hash must be unique")
		hashes[ex.IOHash] = true
	}
}

func TestNewRewritesUnknownFramework(t *testing.T) {
	ex := example("reverse a string", "prompt", "g")
	ex.Framework = models.Framework("ReAct")

	p := New([]models.Example{ex})
	require.Equal(t, 1, p.Size())
	assert.Equal(t, models.DefaultFramework, p.Examples()[0].Framework)
}

func TestLoadBareArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"original_idea": "reverse a string", "improved_prompt": "p1", "framework": "chain-of-thought", "guardrails": ["g"]},
		{"original_idea": "sort a slice", "improved_prompt": "p2", "framework": "decomposition", "guardrails": ["g"]}
	]`), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Size())
}

func TestLoadWrappedObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"metadata": {"version": 3},
		"examples": [
			{"original_idea": "reverse a string", "improved_prompt": "p1", "guardrails": ["g"]}
		]
	}`), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Size())
}

func TestLoadSkipsMalformedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"original_idea": "reverse a string", "improved_prompt": "p1", "guardrails": ["g"]},
		{"original_idea": 42, "improved_prompt": true},
		{"original_idea": "sort a slice", "improved_prompt": "p2", "guardrails": ["g"]}
	]`), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Size())
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestEmptyPoolSelectsNothing(t *testing.T) {
	assert.Nil(t, Empty().Select("anything", 3))
}

func TestSelectRanksBySimilarity(t *testing.T) {
	p := New([]models.Example{
		example("sort a slice of integers", "p1", "g"),
		example("reverse a string in place", "p2", "g"),
		example("configure the database connection pool", "p3", "g"),
	})

	got := p.Select("reverse a string", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "reverse a string in place", got[0].OriginalIdea)
}

func TestSelectIsDeterministic(t *testing.T) {
	p := New([]models.Example{
		example("sort a slice of integers", "p1", "g"),
		example("reverse a string in place", "p2", "g"),
		example("configure the database connection pool", "p3", "g"),
		example("walk a binary tree", "p4", "g"),
	})

	first := p.Select("reverse the slice", 3)
	for i := 0; i < 5; i++ {
		again := p.Select("reverse the slice", 3)
		require.Equal(t, first, again, "identical query must yield identical top-k")
	}
}

func TestSelectEmptyQueryReturnsCanonical(t *testing.T) {
	p := New([]models.Example{
		example("idea one", "p1", "g"),
		example("idea two", "p2", "g"),
		example("idea three", "p3", "g"),
	})

	got := p.Select("", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "idea one", got[0].OriginalIdea)
	assert.Equal(t, "idea two", got[1].OriginalIdea)

	// Stopword-only queries behave like empty queries.
	got = p.Select("the and of", 5)
	assert.Len(t, got, 3)
}

func TestSelectTiesBreakByIngestionIndex(t *testing.T) {
	p := New([]models.Example{
		example("completely unrelated alpha", "p1", "g"),
		example("completely unrelated beta", "p2", "g"),
	})

	got := p.Select("reverse a string", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "completely unrelated alpha", got[0].OriginalIdea)
}
