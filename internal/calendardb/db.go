// Package calendardb owns the canonical calendar schema (spec.md §4.8):
// calendars, events (cascading to attendees and to the calendar), and the
// event_fts full-text index, plus sync-status bookkeeping.
package calendardb

import (
	"database/sql"
	_ "embed"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/dwrekofc/swiftea/internal/vaulterrors"
)

//go:embed schema.sql
var schemaSQL string

// DB wraps the canonical calendar SQLite database.
type DB struct {
	mu          sync.Mutex
	conn        *sql.DB
	initialized bool
}

// Open opens (without initializing) the canonical calendar database at
// path.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "opening calendar database %q", path)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "setting %q", pragma)
		}
	}

	return &DB{conn: conn}, nil
}

// Initialize applies the canonical schema. Idempotent (spec.md §4.8).
func (d *DB) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.conn.Exec(schemaSQL); err != nil {
		return vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "applying canonical calendar schema")
	}
	d.initialized = true
	return nil
}

func (d *DB) requireInitialized() error {
	if !d.initialized {
		return vaulterrors.New(vaulterrors.KindNotInitialized, "calendar database not initialized")
	}
	return nil
}

// Close releases the underlying file handle.
func (d *DB) Close() error {
	return d.conn.Close()
}
