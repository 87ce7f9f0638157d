package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Health verifies the connection is alive and the schema is present.
// Returns a short status string for the health endpoint.
func Health(ctx context.Context, db *sqlx.DB) (string, error) {
	if err := db.PingContext(ctx); err != nil {
		return "unreachable", fmt.Errorf("ping failed: %w", err)
	}

	var version int
	if err := db.GetContext(ctx, &version, "SELECT version FROM schema_info LIMIT 1"); err != nil {
		return "schema missing", fmt.Errorf("schema check failed: %w", err)
	}

	return fmt.Sprintf("ok (schema v%d)", version), nil
}
