package calendardb

import (
	"database/sql"

	"github.com/dwrekofc/swiftea/internal/vaulterrors"
)

// UpsertCalendar inserts or replaces a calendar row.
func (d *DB) UpsertCalendar(c *Calendar) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireInitialized(); err != nil {
		return err
	}

	_, err := d.conn.Exec(`
		INSERT OR REPLACE INTO calendars (id, eventkit_id, title, source_type, color, is_subscribed, is_immutable, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, nullIfEmpty(c.EventKitID), c.Title, nullIfEmpty(c.SourceType), nullIfEmpty(c.Color),
		boolToInt(c.IsSubscribed), boolToInt(c.IsImmutable), c.SyncedAt)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.KindConstraintViolation, err, "upserting calendar %q", c.ID)
	}
	return nil
}

// GetCalendar returns the calendar with the given id, or (nil, false) if
// absent.
func (d *DB) GetCalendar(id string) (*Calendar, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireInitialized(); err != nil {
		return nil, false, err
	}

	row := d.conn.QueryRow(`
		SELECT id, eventkit_id, title, source_type, color, is_subscribed, is_immutable, synced_at
		FROM calendars WHERE id = ?`, id)
	cal, err := scanCalendar(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "getting calendar %q", id)
	}
	return cal, true, nil
}

// DeleteCalendar removes a calendar, cascading to its events and their
// attendees via the events.calendar_id and attendees.event_id foreign keys.
func (d *DB) DeleteCalendar(id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireInitialized(); err != nil {
		return false, err
	}

	res, err := d.conn.Exec(`DELETE FROM calendars WHERE id = ?`, id)
	if err != nil {
		return false, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "deleting calendar %q", id)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func scanCalendar(r rowScanner) (*Calendar, error) {
	var c Calendar
	var eventkitID, sourceType, color sql.NullString
	var isSubscribed, isImmutable int64
	var syncedAt sql.NullInt64
	if err := r.Scan(&c.ID, &eventkitID, &c.Title, &sourceType, &color, &isSubscribed, &isImmutable, &syncedAt); err != nil {
		return nil, err
	}
	c.EventKitID = eventkitID.String
	c.SourceType = sourceType.String
	c.Color = color.String
	c.IsSubscribed = isSubscribed == 1
	c.IsImmutable = isImmutable == 1
	c.SyncedAt = syncedAt.Int64
	return &c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
