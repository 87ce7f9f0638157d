// Package database provides the SQLite client and migration utilities behind
// the prompt repository: one long-lived connection per process, WAL-friendly
// PRAGMAs, and idempotent schema migrations applied on first use.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // Register sqlite3 driver for database/sql
)

// Client owns the single database connection. Initialization is lazy: the
// first operation creates parent directories, opens the connection, applies
// PRAGMAs and runs migrations. If any step after the open fails, the
// connection is closed and the reference reset so the next attempt retries
// cleanly.
type Client struct {
	cfg Config

	mu sync.Mutex
	db *sqlx.DB
}

// NewClient creates a client without connecting. Connection happens on first use.
func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{cfg: cfg}, nil
}

// DB returns the initialized connection, performing lazy setup on first call.
func (c *Client) DB(ctx context.Context) (*sqlx.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db, nil
	}

	if dir := filepath.Dir(c.cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite3", c.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single-connection model: every operation is serialized by the caller's
	// mutex, and SQLite gets exactly one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := c.setup(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	c.db = db
	slog.Info("Database initialized", "path", c.cfg.Path, "wal", c.cfg.WALMode)
	return c.db, nil
}

// setup applies PRAGMAs and runs migrations on a fresh connection.
func (c *Client) setup(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", c.cfg.BusyTimeout.Milliseconds()),
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	if c.cfg.WALMode {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := runMigrations(db.DB); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close releases the connection. Safe to call when never connected.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}
