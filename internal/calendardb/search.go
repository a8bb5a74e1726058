package calendardb

import (
	"github.com/dwrekofc/swiftea/internal/vaulterrors"
)

// SearchEvents runs a full-text query against event_fts (summary,
// description, location) and returns the matching events ordered by
// relevance (bm25), most relevant first, capped at limit rows.
func (d *DB) SearchEvents(query string, limit int) ([]*Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireInitialized(); err != nil {
		return nil, err
	}

	rows, err := d.conn.Query(`
		SELECT `+eventColumns+`
		FROM events e
		JOIN event_fts f ON f.rowid = e.rowid
		WHERE event_fts MATCH ?
		ORDER BY bm25(event_fts)
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "searching events for %q", query)
	}
	defer rows.Close()
	return scanEvents(rows)
}
