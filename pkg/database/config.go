package database

import (
	"fmt"
	"time"
)

// Config holds SQLite database configuration.
type Config struct {
	// Path is the database file location. Parent directories are created on
	// first connection.
	Path string

	// WALMode enables the write-ahead-log journal.
	WALMode bool

	// BusyTimeout bounds lock waits on the single connection.
	BusyTimeout time.Duration
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("busy timeout cannot be negative")
	}
	return nil
}

// withDefaults fills unset optional fields.
func (c Config) withDefaults() Config {
	if c.BusyTimeout == 0 {
		c.BusyTimeout = 5 * time.Second
	}
	return c
}
