package strategy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/promptforge-dev/promptforge/pkg/gates"
	"github.com/promptforge-dev/promptforge/pkg/generator"
	"github.com/promptforge-dev/promptforge/pkg/metrics"
	"github.com/promptforge-dev/promptforge/pkg/models"
	"github.com/promptforge-dev/promptforge/pkg/pool"
)

// Complex is the iterative optimize-validate-refine loop. It seeds with a
// few-shot generation, validates the candidate against the quality gates, and
// on failure issues refinement calls — a reflexion self-critique for DEBUG
// intent, an OPRO-style rewrite otherwise — until a candidate passes or the
// iteration budget or deadline runs out. On exhaustion it returns the
// best-scoring candidate seen.
type Complex struct {
	gen      *generator.Generator
	seed     *FewShot
	engine   *gates.Engine
	calc     *metrics.Calculator
	maxIters int
	// reflexionOn enables the self-critique branch; it only activates for
	// DEBUG intent requests.
	reflexionOn bool
}

// NewComplex creates the complex executor.
func NewComplex(
	gen *generator.Generator,
	p *pool.Pool,
	k int,
	engine *gates.Engine,
	calc *metrics.Calculator,
	maxIters int,
	reflexionOn bool,
) *Complex {
	return &Complex{
		gen:         gen,
		seed:        NewFewShot(gen, p, k),
		engine:      engine,
		calc:        calc,
		maxIters:    maxIters,
		reflexionOn: reflexionOn,
	}
}

// Name returns the strategy tag.
func (s *Complex) Name() models.StrategyKind { return models.StrategyComplex }

// candidate pairs a prompt with its gate report and quality score.
type candidate struct {
	prompt *models.GeneratedPrompt
	report gates.Report
	score  float64
}

// Execute runs the loop under the caller's deadline. On deadline expiry
// mid-iteration it returns the best candidate so far; if the seed itself
// failed, the failure surfaces.
func (s *Complex) Execute(ctx context.Context, req Request) (*Result, error) {
	seedResult, err := s.seed.Execute(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("complex seed: %w", err)
	}
	totalTokens := seedResult.TotalTokens

	// max_iters=0 degenerates to the few-shot seed, unvalidated beyond the
	// report attached for observability.
	best := s.evaluate(seedResult.Prompt, req.Idea)
	if s.maxIters == 0 || best.report.Pass {
		return s.finish(best, totalTokens, false), nil
	}

	current := best
	for iteration := 1; iteration <= s.maxIters; iteration++ {
		if ctx.Err() != nil {
			slog.Warn("Complex strategy deadline hit mid-loop, returning best candidate",
				"iteration", iteration, "score", best.score)
			return s.finish(best, totalTokens, true), nil
		}

		reflexive := s.reflexionOn && req.Intent == models.IntentDebug
		prompt, tokens, err := s.gen.Generate(ctx, generator.Input{
			RawIdea: req.Idea,
			Context: req.Context,
			Refinement: &generator.RefinementContext{
				PriorPrompt:  current.prompt.ImprovedPrompt,
				GateFailures: current.report.FailureSummary(),
				Reflexive:    reflexive,
			},
		})
		totalTokens += tokens
		if err != nil {
			if ctx.Err() != nil {
				return s.finish(best, totalTokens, true), nil
			}
			slog.Warn("Complex refinement iteration failed, keeping prior candidate",
				"iteration", iteration, "error", err)
			continue
		}

		current = s.evaluate(prompt, req.Idea)
		if current.score > best.score {
			best = current
		}
		if current.report.Pass {
			return s.finish(current, totalTokens, false), nil
		}
	}

	return s.finish(best, totalTokens, true), nil
}

// evaluate scores a candidate: gate report plus quality composite for
// best-so-far ranking.
func (s *Complex) evaluate(prompt *models.GeneratedPrompt, idea string) candidate {
	report := s.engine.Evaluate(prompt.ImprovedPrompt, gates.Infer(prompt.ImprovedPrompt))
	return candidate{
		prompt: prompt,
		report: report,
		score:  s.calc.Quality(prompt, idea).Composite,
	}
}

func (s *Complex) finish(c candidate, tokens int, exhausted bool) *Result {
	c.prompt.Backend = string(models.StrategyComplex)
	report := c.report
	return &Result{
		Prompt:      c.prompt,
		TotalTokens: tokens,
		GateReport:  &report,
		Exhausted:   exhausted,
	}
}
