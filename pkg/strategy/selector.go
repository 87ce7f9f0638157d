// Package strategy routes requests to a generation strategy and executes it:
// zero-shot, KNN-augmented few-shot, or the iterative complex loop
// (OPRO-style optimization with validation and a reflexion branch for DEBUG).
package strategy

import "github.com/promptforge-dev/promptforge/pkg/models"

// Options parameterize selection with runtime availability.
type Options struct {
	DefaultK int
	MaxIters int

	// PoolAvailable is false when the example pool failed to load; KNN-backed
	// strategies then downgrade deterministically.
	PoolAvailable bool

	// ComplexEnabled is false when the complex strategy is administratively
	// disabled; it then downgrades to few-shot.
	ComplexEnabled bool
}

const complexKNNSeedK = 5

// Select is the pure routing function (intent, complexity, mode) → descriptor.
// Unavailable dependencies downgrade the choice deterministically
// (Complex → FewShot → Simple) and the downgrades are reflected in the flags.
func Select(intent models.Intent, complexity models.Complexity, mode models.Mode, opts Options) (models.StrategyDescriptor, models.DegradationFlags) {
	desc := route(intent, complexity, mode, opts)
	var flags models.DegradationFlags

	if desc.Kind == models.StrategyComplex && !opts.ComplexEnabled {
		desc, _ = desc.Downgrade()
		flags.ComplexStrategyDisabled = true
	}
	if (desc.Kind == models.StrategyFewShot || desc.Kind == models.StrategyComplex) && !opts.PoolAvailable {
		flags.KNNDisabled = true
		for desc.Kind != models.StrategyZeroShot {
			desc, _ = desc.Downgrade()
		}
	}
	return desc, flags
}

// route implements the routing table before availability downgrades.
func route(intent models.Intent, complexity models.Complexity, mode models.Mode, opts Options) models.StrategyDescriptor {
	fewShot := models.StrategyDescriptor{Kind: models.StrategyFewShot, K: opts.DefaultK}
	complexDesc := models.StrategyDescriptor{
		Kind:        models.StrategyComplex,
		K:           opts.DefaultK,
		MaxIters:    opts.MaxIters,
		ValidatorOn: true,
		ReflexionOn: intent == models.IntentDebug,
	}

	switch complexity {
	case models.ComplexitySimple:
		return models.StrategyDescriptor{Kind: models.StrategyZeroShot}

	case models.ComplexityComplex:
		if mode == models.ModeNLAC {
			return complexDesc
		}
		wide := fewShot
		wide.K = complexKNNSeedK
		return wide

	default: // MODERATE
		if intent == models.IntentDebug && mode == models.ModeNLAC {
			return complexDesc
		}
		return fewShot
	}
}
