package analyzer

import (
	"strings"
	"testing"

	"github.com/promptforge-dev/promptforge/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestAnalyzeShortIdeaIsSimple(t *testing.T) {
	a := NewComplexityAnalyzer()
	assert.Equal(t, models.ComplexitySimple, a.Analyze("Write a function to reverse a string", ""))
	assert.Equal(t, models.ComplexitySimple, a.Analyze("fix typo", ""))
}

func TestAnalyzeStructuredIdeaIsModerate(t *testing.T) {
	a := NewComplexityAnalyzer()
	idea := "Parse the uploaded CSV file and then validate every row against the schema before writing results"
	assert.Equal(t, models.ComplexityModerate, a.Analyze(idea, ""))
}

func TestAnalyzeCodeFenceAndJargonIsComplex(t *testing.T) {
	a := NewComplexityAnalyzer()
	idea := "Debug the intermittent transaction deadlock in the database migration pipeline and then add retry logic:\n" +
		"```sql\nSELECT * FROM jobs WHERE status = 'stuck';\n```\n" +
		"1. reproduce the issue\n2. capture the lock graph\n3. fix the ordering"
	assert.Equal(t, models.ComplexityComplex, a.Analyze(idea, ""))
}

func TestAnalyzeMonotonicity(t *testing.T) {
	a := NewComplexityAnalyzer()
	base := "Build an endpoint that stores uploaded files"

	rank := func(c models.Complexity) int {
		switch c {
		case models.ComplexityModerate:
			return 1
		case models.ComplexityComplex:
			return 2
		default:
			return 0
		}
	}

	// Appending content must never lower the level.
	grown := base
	prev := rank(a.Analyze(base, ""))
	for i := 0; i < 6; i++ {
		grown += " and then validate the database schema with async queue retries"
		current := rank(a.Analyze(grown, ""))
		assert.GreaterOrEqual(t, current, prev)
		prev = current
	}
	assert.Equal(t, 2, prev, "heavily grown input should saturate at COMPLEX")
}

func TestAnalyzeContextContributes(t *testing.T) {
	a := NewComplexityAnalyzer()
	idea := "Fix the upload handler race"

	withoutCtx := a.Analyze(idea, "")
	withCtx := a.Analyze(idea, "Flask + S3, concurrent uploads hit the same key; reproduction:\n"+
		strings.Repeat("step and detail ", 20))

	assert.Equal(t, models.ComplexitySimple, withoutCtx)
	assert.True(t, withCtx.AtLeast(models.ComplexityModerate))
}
