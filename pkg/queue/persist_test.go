package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/promptforge-dev/promptforge/pkg/breaker"
	"github.com/promptforge-dev/promptforge/pkg/database"
	"github.com/promptforge-dev/promptforge/pkg/models"
	"github.com/promptforge-dev/promptforge/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHistory(t *testing.T, path string) *services.PromptHistoryService {
	t.Helper()
	client, err := database.NewClient(database.Config{Path: path, WALMode: true})
	require.NoError(t, err)
	svc := services.NewPromptHistoryService(client)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func record(idea string) *models.PromptRecord {
	return &models.PromptRecord{
		OriginalIdea:   idea,
		ImprovedPrompt: "You are an engineer...",
		Role:           "engineer",
		Directive:      "do it",
		Framework:      "chain-of-thought",
		Guardrails:     []string{"g"},
		Backend:        "zero-shot",
		Model:          "stub-static",
		Provider:       "stub",
	}
}

func TestPersistExecutorSavesRecords(t *testing.T) {
	dir := t.TempDir()
	history := newHistory(t, filepath.Join(dir, "q.db"))
	executor := NewPersistExecutor(history, breaker.New("test", 5, time.Minute), 16)
	executor.Start()

	require.True(t, executor.Enqueue(record("first idea")))
	require.True(t, executor.Enqueue(record("second idea")))

	require.NoError(t, executor.Close(context.Background()))

	saved, err := history.FindRecent(context.Background(), services.HistoryFilters{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestPersistExecutorRejectsAfterClose(t *testing.T) {
	history := newHistory(t, filepath.Join(t.TempDir(), "q.db"))
	executor := NewPersistExecutor(history, breaker.New("test", 5, time.Minute), 16)
	executor.Start()

	require.NoError(t, executor.Close(context.Background()))
	assert.False(t, executor.Enqueue(record("late idea")))
	// Close is idempotent.
	require.NoError(t, executor.Close(context.Background()))
}

func TestPersistExecutorSkipsWhileBreakerOpen(t *testing.T) {
	history := newHistory(t, filepath.Join(t.TempDir(), "q.db"))

	// Trip the breaker up front; the worker must then skip every save.
	b := breaker.New("test", 1, time.Minute)
	require.True(t, b.ShouldAttempt())
	b.RecordFailure()

	executor := NewPersistExecutor(history, b, 16)
	executor.Start()

	require.True(t, executor.Enqueue(record("skipped idea")))
	require.NoError(t, executor.Close(context.Background()))

	saved, err := history.FindRecent(context.Background(), services.HistoryFilters{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, saved, "open breaker must skip persistence silently")
}

func TestPersistExecutorFailureFeedsBreaker(t *testing.T) {
	history := newHistory(t, filepath.Join(t.TempDir(), "q.db"))
	b := breaker.New("test", 2, time.Minute)
	executor := NewPersistExecutor(history, b, 16)
	executor.Start()

	// Invalid records (empty prompt) make Save fail and feed the breaker.
	bad := record("bad idea")
	bad.ImprovedPrompt = ""
	require.True(t, executor.Enqueue(bad))
	badAgain := record("bad idea again")
	badAgain.ImprovedPrompt = ""
	require.True(t, executor.Enqueue(badAgain))

	require.NoError(t, executor.Close(context.Background()))

	assert.False(t, b.ShouldAttempt(), "two consecutive save failures must open the breaker")
}
