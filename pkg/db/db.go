// Package db persists the session journal (orders, trades, confirmed
// settlements) to SQLite so a restarted terminal can show history.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Database wraps the SQLite handle.
type Database struct {
	sql *sql.DB
}

// Open opens (and migrates) the journal at path. Use ":memory:" for tests.
func Open(path string) (*Database, error) {
	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite is single-writer; one connection avoids SQLITE_BUSY.
	handle.SetMaxOpenConns(1)
	if _, err := handle.Exec(schema); err != nil {
		handle.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Database{sql: handle}, nil
}

// Close closes the underlying handle.
func (d *Database) Close() error {
	return d.sql.Close()
}
