package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(Config{
		Path:    filepath.Join(t.TempDir(), "data", "test.db"),
		WALMode: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewClientRejectsEmptyPath(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestDBLazyInitCreatesDirsAndSchema(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	db, err := client.DB(ctx)
	require.NoError(t, err)

	var name string
	require.NoError(t, db.GetContext(ctx, &name,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='prompt_history'"))
	assert.Equal(t, "prompt_history", name)

	var version int
	require.NoError(t, db.GetContext(ctx, &version, "SELECT version FROM schema_info"))
	assert.Equal(t, 1, version)
}

func TestDBReturnsSameConnection(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	first, err := client.DB(ctx)
	require.NoError(t, err)
	second, err := client.DB(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	db, err := client.DB(ctx)
	require.NoError(t, err)

	// A second run over the same database must be a no-op.
	require.NoError(t, runMigrations(db.DB))

	var count int
	require.NoError(t, db.GetContext(ctx, &count, "SELECT COUNT(*) FROM schema_info"))
	assert.Equal(t, 1, count, "schema_info must keep exactly one version row")
}

func TestHealth(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	db, err := client.DB(ctx)
	require.NoError(t, err)

	status, err := Health(ctx, db)
	require.NoError(t, err)
	assert.Contains(t, status, "ok")
}

func TestCloseIsIdempotent(t *testing.T) {
	client := testClient(t)
	_, err := client.DB(context.Background())
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
}

func TestCheckConstraints(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	db, err := client.DB(ctx)
	require.NoError(t, err)

	const insert = `INSERT INTO prompt_history
		(created_at, original_idea, context, improved_prompt, role, directive, framework,
		 guardrails, backend, model, provider, confidence, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = db.ExecContext(ctx, insert,
		"2026-01-01T00:00:00Z", "idea", "", "prompt", "r", "d", "chain-of-thought",
		`["g"]`, "few-shot", "m", "p", 1.5, 100)
	assert.Error(t, err, "confidence above 1 must violate the CHECK constraint")

	_, err = db.ExecContext(ctx, insert,
		"2026-01-01T00:00:00Z", "idea", "", "prompt", "r", "d", "chain-of-thought",
		`["g"]`, "few-shot", "m", "p", 0.5, -1)
	assert.Error(t, err, "negative latency must violate the CHECK constraint")
}
