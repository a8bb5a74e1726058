// Package maildb owns the canonical mail schema (spec.md §4.7): messages,
// mailboxes, addresses, threads, thread_messages, sync_status, and the
// attach/bulk-copy pipeline that projects rows from Apple Mail's upstream
// Envelope Index into the canonical tables (§4.7 "Attach/bulk-copy (C11)").
package maildb

import (
	"database/sql"
	_ "embed"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/dwrekofc/swiftea/internal/vaulterrors"
)

//go:embed schema.sql
var schemaSQL string

// DB wraps the canonical mail SQLite database. A single *DB serializes
// writers at the application layer via mu, per spec.md §5's per-database
// mutex guidance; SQLite itself still enforces single-writer semantics.
type DB struct {
	mu   sync.Mutex
	conn *sql.DB

	attached     bool
	attachedPath string
}

// Open opens (without initializing) the canonical mail database at path.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "opening mail database %q", path)
	}
	// A single connection avoids SQLITE_BUSY contention between readers and
	// the single writer this database ever has at a time.
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

// Initialize applies the canonical schema. Idempotent: calling it twice on
// the same database is a no-op (spec.md §4.7).
func (d *DB) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.conn.Exec(schemaSQL); err != nil {
		return vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "applying canonical mail schema")
	}
	return nil
}

// Close releases the underlying file handle.
func (d *DB) Close() error {
	return d.conn.Close()
}
