package strategy

import (
	"testing"

	"github.com/promptforge-dev/promptforge/pkg/models"
	"github.com/stretchr/testify/assert"
)

func allAvailable() Options {
	return Options{DefaultK: 3, MaxIters: 3, PoolAvailable: true, ComplexEnabled: true}
}

func TestSelectRoutingTable(t *testing.T) {
	tests := []struct {
		name       string
		intent     models.Intent
		complexity models.Complexity
		mode       models.Mode
		wantKind   models.StrategyKind
		wantK      int
	}{
		{"simple is zero-shot in legacy", models.IntentGenerate, models.ComplexitySimple, models.ModeLegacy, models.StrategyZeroShot, 0},
		{"simple is zero-shot in nlac", models.IntentDebug, models.ComplexitySimple, models.ModeNLAC, models.StrategyZeroShot, 0},
		{"moderate generate is few-shot", models.IntentGenerate, models.ComplexityModerate, models.ModeLegacy, models.StrategyFewShot, 3},
		{"moderate refactor is few-shot", models.IntentRefactor, models.ComplexityModerate, models.ModeNLAC, models.StrategyFewShot, 3},
		{"complex legacy widens knn", models.IntentGenerate, models.ComplexityComplex, models.ModeLegacy, models.StrategyFewShot, 5},
		{"complex nlac is complex", models.IntentGenerate, models.ComplexityComplex, models.ModeNLAC, models.StrategyComplex, 3},
		{"moderate debug nlac is complex", models.IntentDebug, models.ComplexityModerate, models.ModeNLAC, models.StrategyComplex, 3},
		{"moderate debug legacy is few-shot", models.IntentDebug, models.ComplexityModerate, models.ModeLegacy, models.StrategyFewShot, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, flags := Select(tt.intent, tt.complexity, tt.mode, allAvailable())
			assert.Equal(t, tt.wantKind, desc.Kind)
			if tt.wantK > 0 {
				assert.Equal(t, tt.wantK, desc.K)
			}
			assert.False(t, flags.KNNDisabled)
			assert.False(t, flags.ComplexStrategyDisabled)
		})
	}
}

func TestSelectReflexionOnlyForDebug(t *testing.T) {
	debug, _ := Select(models.IntentDebug, models.ComplexityComplex, models.ModeNLAC, allAvailable())
	assert.True(t, debug.ReflexionOn)
	assert.True(t, debug.ValidatorOn)

	generate, _ := Select(models.IntentGenerate, models.ComplexityComplex, models.ModeNLAC, allAvailable())
	assert.False(t, generate.ReflexionOn)
}

func TestSelectDowngradesWhenComplexDisabled(t *testing.T) {
	opts := allAvailable()
	opts.ComplexEnabled = false

	desc, flags := Select(models.IntentDebug, models.ComplexityComplex, models.ModeNLAC, opts)
	assert.Equal(t, models.StrategyFewShot, desc.Kind)
	assert.True(t, flags.ComplexStrategyDisabled)
	assert.False(t, flags.KNNDisabled)
}

func TestSelectDowngradesToSimpleWithoutPool(t *testing.T) {
	opts := allAvailable()
	opts.PoolAvailable = false

	desc, flags := Select(models.IntentGenerate, models.ComplexityModerate, models.ModeLegacy, opts)
	assert.Equal(t, models.StrategyZeroShot, desc.Kind)
	assert.True(t, flags.KNNDisabled)

	// Both downgrades stack: Complex → FewShot → Simple.
	opts.ComplexEnabled = false
	desc, flags = Select(models.IntentDebug, models.ComplexityComplex, models.ModeNLAC, opts)
	assert.Equal(t, models.StrategyZeroShot, desc.Kind)
	assert.True(t, flags.ComplexStrategyDisabled)
	assert.True(t, flags.KNNDisabled)
}

func TestSelectSimpleUnaffectedByAvailability(t *testing.T) {
	desc, flags := Select(models.IntentGenerate, models.ComplexitySimple, models.ModeLegacy, Options{DefaultK: 3})
	assert.Equal(t, models.StrategyZeroShot, desc.Kind)
	assert.False(t, flags.KNNDisabled)
}
