package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/promptforge-dev/promptforge/pkg/gates"
	"github.com/promptforge-dev/promptforge/pkg/generator"
	"github.com/promptforge-dev/promptforge/pkg/models"
	"github.com/promptforge-dev/promptforge/pkg/pool"
)

// ErrNoCandidate indicates the strategy produced no prompt at all; the
// deadline or a provider failure hit before the seed existed.
var ErrNoCandidate = errors.New("strategy produced no candidate")

// Request is the input of one strategy execution.
type Request struct {
	Idea    string
	Context string
	Intent  models.Intent
}

// Result is the output of one strategy execution.
type Result struct {
	Prompt      *models.GeneratedPrompt
	TotalTokens int

	// GateReport is set by the complex strategy (its final validation pass).
	GateReport *gates.Report

	// Exhausted is true when the complex loop ran out of iterations or hit
	// the deadline without a gate-passing candidate and returned the
	// best-scoring one instead.
	Exhausted bool
}

// Executor runs one strategy variant.
type Executor interface {
	Name() models.StrategyKind
	Execute(ctx context.Context, req Request) (*Result, error)
}

// ZeroShot performs one direct generator call with no demos.
type ZeroShot struct {
	gen *generator.Generator
}

// NewZeroShot creates the zero-shot executor.
func NewZeroShot(gen *generator.Generator) *ZeroShot {
	return &ZeroShot{gen: gen}
}

// Name returns the strategy tag.
func (s *ZeroShot) Name() models.StrategyKind { return models.StrategyZeroShot }

// Execute runs a single generation with empty demos.
func (s *ZeroShot) Execute(ctx context.Context, req Request) (*Result, error) {
	prompt, tokens, err := s.gen.Generate(ctx, generator.Input{
		RawIdea: req.Idea,
		Context: req.Context,
	})
	if err != nil {
		return nil, fmt.Errorf("zero-shot: %w", err)
	}
	prompt.Backend = string(models.StrategyZeroShot)
	return &Result{Prompt: prompt, TotalTokens: tokens}, nil
}

// FewShot queries the example pool for demos and generates once with them.
type FewShot struct {
	gen  *generator.Generator
	pool *pool.Pool
	k    int
}

// NewFewShot creates the few-shot executor.
func NewFewShot(gen *generator.Generator, p *pool.Pool, k int) *FewShot {
	return &FewShot{gen: gen, pool: p, k: k}
}

// Name returns the strategy tag.
func (s *FewShot) Name() models.StrategyKind { return models.StrategyFewShot }

// Execute retrieves up to k demos and generates with them. Fewer than k demos
// (including zero — equivalent to zero-shot) is not an error.
func (s *FewShot) Execute(ctx context.Context, req Request) (*Result, error) {
	var demos []models.Example
	if s.pool != nil {
		demos = s.pool.Select(req.Idea, s.k)
	}

	prompt, tokens, err := s.gen.Generate(ctx, generator.Input{
		RawIdea: req.Idea,
		Context: req.Context,
		Demos:   demos,
	})
	if err != nil {
		return nil, fmt.Errorf("few-shot: %w", err)
	}
	prompt.Backend = string(models.StrategyFewShot)
	return &Result{Prompt: prompt, TotalTokens: tokens}, nil
}
