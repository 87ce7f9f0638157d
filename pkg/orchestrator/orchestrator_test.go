package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/promptforge-dev/promptforge/pkg/analyzer"
	"github.com/promptforge-dev/promptforge/pkg/breaker"
	"github.com/promptforge-dev/promptforge/pkg/config"
	"github.com/promptforge-dev/promptforge/pkg/database"
	"github.com/promptforge-dev/promptforge/pkg/gates"
	"github.com/promptforge-dev/promptforge/pkg/generator"
	"github.com/promptforge-dev/promptforge/pkg/llm"
	"github.com/promptforge-dev/promptforge/pkg/metrics"
	"github.com/promptforge-dev/promptforge/pkg/models"
	"github.com/promptforge-dev/promptforge/pkg/pool"
	"github.com/promptforge-dev/promptforge/pkg/queue"
	"github.com/promptforge-dev/promptforge/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequenceClient returns scripted responses, then repeats the last one.
type sequenceClient struct {
	steps []any // string or error
	calls int
}

func (s *sequenceClient) Generate(ctx context.Context, _ llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx := s.calls
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	s.calls++
	switch v := s.steps[idx].(type) {
	case error:
		return nil, v
	default:
		return &llm.Response{Text: v.(string), TotalTokens: 25}, nil
	}
}

func (s *sequenceClient) CheckConnection(context.Context) error { return nil }
func (s *sequenceClient) Model() string                         { return "seq-model" }
func (s *sequenceClient) Provider() string                      { return "stub" }

func goodOutput(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"improved_prompt": "You are a senior engineer. Work through the request step by step.\n\n" +
			"1. Restate the problem in your own words and list the constraints\n" +
			"2. Design the approach and document the tradeoffs considered\n" +
			"3. Implement the solution with tests covering the edge cases\n" +
			"4. Review the result against the original requirements before finishing\n\n" +
			"Preconditions: the requirements and target environment are known.",
		"role":       "senior engineer",
		"directive":  "work through the request step by step",
		"framework":  "chain-of-thought",
		"guardrails": []string{"state assumptions", "cover edge cases"},
		"confidence": 0.85,
	})
	require.NoError(t, err)
	return string(data)
}

type fixture struct {
	orch    *Orchestrator
	history *services.PromptHistoryService
	persist *queue.PersistExecutor
}

func newFixture(t *testing.T, client llm.Client, p *pool.Pool, withPersist bool) *fixture {
	t.Helper()

	cfg := config.Defaults()
	cfg.LLM.Provider = config.ProviderStub
	cfg.Strategy.DeadlineSeconds = 5

	gen := generator.New(client, 0.1, 2*time.Second)
	f := &fixture{}

	if withPersist {
		dbClient, err := database.NewClient(database.Config{
			Path:    filepath.Join(t.TempDir(), "orch.db"),
			WALMode: true,
		})
		require.NoError(t, err)
		f.history = services.NewPromptHistoryService(dbClient)
		t.Cleanup(func() { _ = f.history.Close() })
		f.persist = queue.NewPersistExecutor(f.history, breaker.New("test", 5, time.Minute), 16)
		f.persist.Start()
	}

	f.orch = New(
		&cfg,
		analyzer.NewIntentClassifier(client),
		analyzer.NewComplexityAnalyzer(),
		gen,
		p,
		gates.NewEngine(nil),
		metrics.NewCalculator(cfg.Metrics.Weights),
		f.persist,
	)
	return f
}

func TestHandleSimpleGenerate(t *testing.T) {
	client := &sequenceClient{steps: []any{goodOutput(t)}}
	f := newFixture(t, client, pool.Empty(), false)

	resp, err := f.orch.Handle(context.Background(), models.ImproveRequest{
		Idea: "Write a function to reverse a string",
		Mode: models.ModeLegacy,
	})
	require.NoError(t, err)

	assert.Equal(t, models.IntentGenerate, resp.Intent)
	assert.Equal(t, "zero-shot", resp.Strategy)
	assert.True(t, resp.Framework.IsValid())
	assert.NotEmpty(t, resp.Guardrails)
	assert.NotEmpty(t, resp.ImprovedPrompt)
	_, err = uuid.Parse(resp.PromptID)
	assert.NoError(t, err, "prompt_id must be a UUID")
	require.NotNil(t, resp.Confidence)
	assert.GreaterOrEqual(t, *resp.Confidence, 0.0)
	assert.LessOrEqual(t, *resp.Confidence, 1.0)
	assert.False(t, resp.Degradation.KNNDisabled, "simple strategy never consults the pool")
	require.NotNil(t, resp.GateReport)
	require.NotNil(t, resp.Metrics)
}

func TestHandleRejectsShortIdea(t *testing.T) {
	f := newFixture(t, &sequenceClient{steps: []any{goodOutput(t)}}, pool.Empty(), false)

	_, err := f.orch.Handle(context.Background(), models.ImproveRequest{Idea: "bug", Mode: models.ModeLegacy})
	require.Error(t, err)

	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "idea", ve.Field)
}

func TestHandleRejectsInvalidMode(t *testing.T) {
	f := newFixture(t, &sequenceClient{steps: []any{goodOutput(t)}}, pool.Empty(), false)

	_, err := f.orch.Handle(context.Background(), models.ImproveRequest{Idea: "long enough idea", Mode: models.Mode("v9")})
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "mode", ve.Field)
}

func TestHandleKNNDisabledFlag(t *testing.T) {
	// Moderate GENERATE routes to few-shot; an empty pool forces the
	// downgrade to zero-shot with knn_disabled set.
	client := &sequenceClient{steps: []any{goodOutput(t)}}
	f := newFixture(t, client, pool.Empty(), false)

	resp, err := f.orch.Handle(context.Background(), models.ImproveRequest{
		Idea: "Create an upload endpoint and then validate every file against the schema before storing results in the database",
		Mode: models.ModeLegacy,
	})
	require.NoError(t, err)
	assert.Equal(t, "zero-shot", resp.Strategy)
	assert.True(t, resp.Degradation.KNNDisabled)
}

func TestHandleProviderOutageSurfaces(t *testing.T) {
	outage := llm.NewProviderError("stub", errors.New("connection refused"))
	client := &sequenceClient{steps: []any{outage}}
	f := newFixture(t, client, pool.Empty(), false)

	_, err := f.orch.Handle(context.Background(), models.ImproveRequest{
		Idea: "Write a function to reverse a string",
		Mode: models.ModeLegacy,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrProviderUnavailable)
}

func TestHandleDowngradesOnceOnStrategyError(t *testing.T) {
	// First call (few-shot) fails, retry (zero-shot) succeeds.
	client := &sequenceClient{steps: []any{
		llm.NewProviderError("stub", errors.New("blip")),
		goodOutput(t),
	}}
	examples := pool.New([]models.Example{{
		OriginalIdea:   "build a rest endpoint",
		ImprovedPrompt: "You are an API engineer...",
		Framework:      models.FrameworkDecomposition,
		Guardrails:     []string{"validate input"},
	}})
	f := newFixture(t, client, examples, false)

	resp, err := f.orch.Handle(context.Background(), models.ImproveRequest{
		Idea: "Create an upload endpoint and then validate every file against the schema before storing results in the database",
		Mode: models.ModeLegacy,
	})
	require.NoError(t, err)
	assert.Equal(t, "zero-shot", resp.Strategy)
	assert.Equal(t, 2, client.calls)
}

func TestHandlePersistsRecordInBackground(t *testing.T) {
	client := &sequenceClient{steps: []any{goodOutput(t)}}
	f := newFixture(t, client, pool.Empty(), true)

	resp, err := f.orch.Handle(context.Background(), models.ImproveRequest{
		Idea:    "Write a function to reverse a string",
		Context: "go module",
		Mode:    models.ModeLegacy,
	})
	require.NoError(t, err)

	// Drain the background queue, then read back.
	require.NoError(t, f.persist.Close(context.Background()))

	saved, err := f.history.FindRecent(context.Background(), services.HistoryFilters{Limit: 10})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "Write a function to reverse a string", saved[0].OriginalIdea)
	assert.Equal(t, resp.ImprovedPrompt, saved[0].ImprovedPrompt)
	assert.Equal(t, "stub", saved[0].Provider)
	require.NotNil(t, saved[0].LatencyMS)
	assert.GreaterOrEqual(t, *saved[0].LatencyMS, int64(0))
}

func TestHandleValidationFailureDoesNotPersist(t *testing.T) {
	client := &sequenceClient{steps: []any{goodOutput(t)}}
	f := newFixture(t, client, pool.Empty(), true)

	_, err := f.orch.Handle(context.Background(), models.ImproveRequest{Idea: "bug", Mode: models.ModeLegacy})
	require.Error(t, err)

	require.NoError(t, f.persist.Close(context.Background()))
	saved, err := f.history.FindRecent(context.Background(), services.HistoryFilters{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestHandleImprovementBaselineAppearsOnSecondCall(t *testing.T) {
	client := &sequenceClient{steps: []any{goodOutput(t)}}
	f := newFixture(t, client, pool.Empty(), false)

	req := models.ImproveRequest{Idea: "Write a function to reverse a string", Mode: models.ModeLegacy}

	first, err := f.orch.Handle(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, first.Metrics)
	assert.Nil(t, first.Metrics.Improvement.Delta, "no baseline on the first request")

	second, err := f.orch.Handle(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, second.Metrics)
	assert.NotNil(t, second.Metrics.Improvement.Delta, "second request compares against the rolling baseline")
}

func TestHandleRejectOnFailGates(t *testing.T) {
	thin, err := json.Marshal(map[string]any{
		"improved_prompt": "Do it.",
		"framework":       "chain-of-thought",
		"guardrails":      []string{"g"},
	})
	require.NoError(t, err)

	client := &sequenceClient{steps: []any{string(thin)}}
	f := newFixture(t, client, pool.Empty(), false)
	f.orch.cfg.Gates.RejectOnFail = true

	_, err = f.orch.Handle(context.Background(), models.ImproveRequest{
		Idea: "Write a function to reverse a string",
		Mode: models.ModeLegacy,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGateRejected)
}
