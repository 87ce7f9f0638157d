// Package orchestrator binds the pipeline into the end-to-end request
// handler: validate → classify → select strategy → execute under deadline
// (with a one-tier downgrade retry) → quality gates → metrics → background
// persistence → response.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/promptforge-dev/promptforge/pkg/analyzer"
	"github.com/promptforge-dev/promptforge/pkg/config"
	"github.com/promptforge-dev/promptforge/pkg/gates"
	"github.com/promptforge-dev/promptforge/pkg/generator"
	"github.com/promptforge-dev/promptforge/pkg/metrics"
	"github.com/promptforge-dev/promptforge/pkg/models"
	"github.com/promptforge-dev/promptforge/pkg/pool"
	"github.com/promptforge-dev/promptforge/pkg/queue"
	"github.com/promptforge-dev/promptforge/pkg/strategy"
)

// ErrGateRejected is returned instead of a response when gates.reject_on_fail
// is enabled and the final candidate fails a FAIL-severity gate.
var ErrGateRejected = errors.New("quality gates rejected the generated prompt")

// ErrNoPrompt indicates the deadline expired with no candidate at all.
var ErrNoPrompt = errors.New("deadline exceeded before any prompt was generated")

// Response is the full pipeline result for one request.
type Response struct {
	ImprovedPrompt string                  `json:"improved_prompt"`
	Role           string                  `json:"role"`
	Directive      string                  `json:"directive"`
	Framework      models.Framework        `json:"framework"`
	Guardrails     []string                `json:"guardrails"`
	Reasoning      *string                 `json:"reasoning"`
	Confidence     *float64                `json:"confidence"`
	Backend        *string                 `json:"backend"`
	PromptID       string                  `json:"prompt_id"`
	Strategy       string                  `json:"strategy"`
	Intent         models.Intent           `json:"intent"`
	MetricsWarning *string                 `json:"metrics_warning"`
	Degradation    models.DegradationFlags `json:"degradation_flags"`

	Metrics    *models.QualityMetrics `json:"metrics,omitempty"`
	GateReport *gates.Report          `json:"gate_report,omitempty"`
}

// Orchestrator owns no durable state; every collaborator is injected.
type Orchestrator struct {
	cfg        *config.Config
	classifier *analyzer.IntentClassifier
	complexity *analyzer.ComplexityAnalyzer
	gen        *generator.Generator
	pool       *pool.Pool
	engine     *gates.Engine
	calc       *metrics.Calculator
	persist    *queue.PersistExecutor // nil when persistence is disabled
	provider   string
	model      string

	baselines *baselineWindow
}

// New creates the orchestrator. persist may be nil.
func New(
	cfg *config.Config,
	classifier *analyzer.IntentClassifier,
	complexityAnalyzer *analyzer.ComplexityAnalyzer,
	gen *generator.Generator,
	p *pool.Pool,
	engine *gates.Engine,
	calc *metrics.Calculator,
	persist *queue.PersistExecutor,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		classifier: classifier,
		complexity: complexityAnalyzer,
		gen:        gen,
		pool:       p,
		engine:     engine,
		calc:       calc,
		persist:    persist,
		provider:   gen.Client().Provider(),
		model:      gen.Client().Model(),
		baselines:  newBaselineWindow(),
	}
}

// Handle runs the pipeline for one request.
func (o *Orchestrator) Handle(ctx context.Context, req models.ImproveRequest) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	intent, intentConfidence := o.classifier.Classify(ctx, req.Idea, req.Context)
	complexityLevel := o.complexity.Analyze(req.Idea, req.Context)

	desc, flags := strategy.Select(intent, complexityLevel, req.Mode, strategy.Options{
		DefaultK:       o.cfg.Pool.DefaultK,
		MaxIters:       o.cfg.Strategy.MaxIters,
		PoolAvailable:  o.pool.Size() > 0,
		ComplexEnabled: o.cfg.Strategy.ComplexEnabled,
	})

	slog.Info("Request routed",
		"intent", intent,
		"intent_confidence", intentConfidence,
		"complexity", complexityLevel,
		"strategy", desc.Kind,
		"mode", req.Mode)

	deadline := time.Duration(o.cfg.Strategy.DeadlineSeconds) * time.Second
	execCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	result, usedKind, err := o.executeWithDowngrade(execCtx, desc, strategy.Request{
		Idea:    req.Idea,
		Context: req.Context,
		Intent:  intent,
	}, &flags)
	if err != nil {
		if execCtx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoPrompt, execCtx.Err())
		}
		return nil, err
	}
	if result.Exhausted {
		flags.ComplexStrategyExhausted = true
	}

	response := &Response{
		ImprovedPrompt: result.Prompt.ImprovedPrompt,
		Role:           result.Prompt.Role,
		Directive:      result.Prompt.Directive,
		Framework:      result.Prompt.Framework,
		Guardrails:     result.Prompt.Guardrails,
		Confidence:     result.Prompt.Confidence,
		PromptID:       uuid.NewString(),
		Strategy:       string(usedKind),
		Intent:         intent,
		Degradation:    flags,
	}
	if result.Prompt.Reasoning != "" {
		reasoning := result.Prompt.Reasoning
		response.Reasoning = &reasoning
	}
	if result.Prompt.Backend != "" {
		backend := result.Prompt.Backend
		response.Backend = &backend
	}

	// Quality gates: reuse the complex strategy's final report when present.
	report := result.GateReport
	if report == nil {
		report = o.evaluateGates(result.Prompt.ImprovedPrompt, response)
	}
	response.GateReport = report
	if report != nil && !report.Pass && o.cfg.Gates.RejectOnFail {
		return nil, fmt.Errorf("%w: %s", ErrGateRejected, report.FailureSummary())
	}

	latency := time.Since(start).Milliseconds()
	o.computeMetrics(response, result, req.Idea, latency, intent)

	// Fire-and-forget persistence. The response never waits on it.
	o.schedulePersist(req, response, latency)

	return response, nil
}

// executeWithDowngrade runs the selected strategy; on a strategy-internal
// error it downgrades one tier and retries once. The second failure surfaces.
func (o *Orchestrator) executeWithDowngrade(
	ctx context.Context,
	desc models.StrategyDescriptor,
	req strategy.Request,
	flags *models.DegradationFlags,
) (*strategy.Result, models.StrategyKind, error) {
	executor := o.buildExecutor(desc)

	result, err := executor.Execute(ctx, req)
	if err == nil {
		return result, executor.Name(), nil
	}
	if ctx.Err() != nil {
		return nil, "", err
	}

	downgraded, ok := desc.Downgrade()
	if !ok {
		return nil, "", err
	}
	slog.Warn("Strategy failed, downgrading one tier",
		"from", desc.Kind, "to", downgraded.Kind, "error", err)
	if desc.Kind == models.StrategyComplex {
		flags.ComplexStrategyDisabled = true
	}

	retryExecutor := o.buildExecutor(downgraded)
	result, retryErr := retryExecutor.Execute(ctx, req)
	if retryErr != nil {
		return nil, "", fmt.Errorf("strategy failed after downgrade: %w", retryErr)
	}
	return result, retryExecutor.Name(), nil
}

// buildExecutor maps a descriptor onto its executor.
func (o *Orchestrator) buildExecutor(desc models.StrategyDescriptor) strategy.Executor {
	switch desc.Kind {
	case models.StrategyComplex:
		return strategy.NewComplex(o.gen, o.pool, desc.K, o.engine, o.calc, desc.MaxIters, desc.ReflexionOn)
	case models.StrategyFewShot:
		return strategy.NewFewShot(o.gen, o.pool, desc.K)
	default:
		return strategy.NewZeroShot(o.gen)
	}
}

// evaluateGates never lets a gate evaluation failure break the response; a
// tracking reference of the form QE-<unix>-<short> ties the warning to logs.
func (o *Orchestrator) evaluateGates(output string, response *Response) *gates.Report {
	var report *gates.Report
	func() {
		defer func() {
			if r := recover(); r != nil {
				ref := fmt.Sprintf("QE-%d-%s", time.Now().Unix(), uuid.NewString()[:6])
				slog.Error("Quality gate evaluation failed", "ref", ref, "panic", r)
				warning := fmt.Sprintf("quality gate evaluation failed (%s)", ref)
				response.MetricsWarning = &warning
			}
		}()
		evaluated := o.engine.Evaluate(output, gates.Infer(output))
		report = &evaluated
	}()
	return report
}

// computeMetrics fills the metrics block; failures degrade to a warning plus
// degradation_flags.metrics_failed, never an error.
func (o *Orchestrator) computeMetrics(response *Response, result *strategy.Result, idea string, latencyMS int64, intent models.Intent) {
	prompt := &models.GeneratedPrompt{
		ImprovedPrompt: response.ImprovedPrompt,
		Role:           response.Role,
		Directive:      response.Directive,
		Framework:      response.Framework,
		Guardrails:     response.Guardrails,
		Confidence:     response.Confidence,
	}

	baseline := o.baselines.baseline(intent)
	record, err := o.calc.Calculate(prompt, idea, metrics.ExecutionMeta{
		LatencyMS:   latencyMS,
		TotalTokens: result.TotalTokens,
		Provider:    o.provider,
		Model:       o.model,
	}, nil, baseline)
	if err != nil {
		response.Degradation.MetricsFailed = true
		warning := "metrics calculation failed"
		response.MetricsWarning = &warning
		slog.Warn("Metrics calculation failed", "error", err)
		return
	}

	response.Metrics = record
	if record.Quality != nil {
		o.baselines.observe(intent, record.Quality.Composite)
	}
}

// schedulePersist enqueues the persistence record. Skipped silently when
// persistence is disabled or the queue is saturated.
func (o *Orchestrator) schedulePersist(req models.ImproveRequest, response *Response, latencyMS int64) {
	if o.persist == nil {
		return
	}

	backend := string(models.StrategyZeroShot)
	if response.Backend != nil {
		backend = *response.Backend
	}
	rec := &models.PromptRecord{
		OriginalIdea:   req.Idea,
		Context:        req.Context,
		ImprovedPrompt: response.ImprovedPrompt,
		Role:           response.Role,
		Directive:      response.Directive,
		Framework:      string(response.Framework),
		Guardrails:     response.Guardrails,
		Confidence:     response.Confidence,
		Backend:        backend,
		Model:          o.model,
		Provider:       o.provider,
		LatencyMS:      &latencyMS,
	}
	if response.Reasoning != nil {
		rec.Reasoning = response.Reasoning
	}
	o.persist.Enqueue(rec)
}
