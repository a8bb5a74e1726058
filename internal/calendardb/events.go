package calendardb

import (
	"database/sql"

	"github.com/dwrekofc/swiftea/internal/vaulterrors"
)

const eventColumns = `
	id, eventkit_id, external_id, calendar_id, summary, description, location, url,
	start_utc, end_utc, start_tz, end_tz, is_all_day, recurrence_rule,
	master_event_id, occurrence_date, status, created_at, updated_at, synced_at`

// UpsertEvent inserts or replaces a single event row. Fails with
// KindConstraintViolation if end_utc < start_utc or if master_event_id
// names a row that does not exist (spec.md §3 StoredEvent invariants).
func (d *DB) UpsertEvent(e *Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.upsertEventLocked(e)
}

func (d *DB) upsertEventLocked(e *Event) error {
	if err := d.requireInitialized(); err != nil {
		return err
	}
	if e.EndUTC < e.StartUTC {
		return vaulterrors.New(vaulterrors.KindConstraintViolation, "event %q: end_utc %d < start_utc %d", e.ID, e.EndUTC, e.StartUTC)
	}

	var occurrenceDate any
	if e.OccurrenceDate != nil {
		occurrenceDate = *e.OccurrenceDate
	}

	_, err := d.conn.Exec(`
		INSERT OR REPLACE INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, nullIfEmpty(e.EventKitID), nullIfEmpty(e.ExternalID), e.CalendarID,
		nullIfEmpty(e.Summary), nullIfEmpty(e.Description), nullIfEmpty(e.Location), nullIfEmpty(e.URL),
		e.StartUTC, e.EndUTC, nullIfEmpty(e.StartTZ), nullIfEmpty(e.EndTZ), boolToInt(e.IsAllDay),
		nullIfEmpty(e.RecurrenceRule), nullIfEmpty(e.MasterEventID), occurrenceDate, nullIfEmpty(e.Status),
		e.CreatedAt, e.UpdatedAt, e.SyncedAt,
	)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.KindConstraintViolation, err, "upserting event %q", e.ID)
	}
	return nil
}

// UpsertEvents upserts a batch of events inside a single transaction. If
// any event fails validation, the whole batch is rolled back.
func (d *DB) UpsertEvents(events []*Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireInitialized(); err != nil {
		return err
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "beginning event batch transaction")
	}
	defer tx.Rollback()

	for _, e := range events {
		if e.EndUTC < e.StartUTC {
			return vaulterrors.New(vaulterrors.KindConstraintViolation, "event %q: end_utc %d < start_utc %d", e.ID, e.EndUTC, e.StartUTC)
		}
		var occurrenceDate any
		if e.OccurrenceDate != nil {
			occurrenceDate = *e.OccurrenceDate
		}
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO events (`+eventColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, nullIfEmpty(e.EventKitID), nullIfEmpty(e.ExternalID), e.CalendarID,
			nullIfEmpty(e.Summary), nullIfEmpty(e.Description), nullIfEmpty(e.Location), nullIfEmpty(e.URL),
			e.StartUTC, e.EndUTC, nullIfEmpty(e.StartTZ), nullIfEmpty(e.EndTZ), boolToInt(e.IsAllDay),
			nullIfEmpty(e.RecurrenceRule), nullIfEmpty(e.MasterEventID), occurrenceDate, nullIfEmpty(e.Status),
			e.CreatedAt, e.UpdatedAt, e.SyncedAt,
		)
		if err != nil {
			return vaulterrors.Wrap(vaulterrors.KindConstraintViolation, err, "upserting event %q", e.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "committing event batch")
	}
	return nil
}

// GetEvent returns the event with the given canonical id, or (nil, false)
// if absent.
func (d *DB) GetEvent(id string) (*Event, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireInitialized(); err != nil {
		return nil, false, err
	}
	row := d.conn.QueryRow(`SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	return scanEventRow(row)
}

// GetEventByEventKitID returns the event with the given eventkit_id, or
// (nil, false) if absent.
func (d *DB) GetEventByEventKitID(eventKitID string) (*Event, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireInitialized(); err != nil {
		return nil, false, err
	}
	row := d.conn.QueryRow(`SELECT `+eventColumns+` FROM events WHERE eventkit_id = ?`, eventKitID)
	return scanEventRow(row)
}

func scanEventRow(r rowScanner) (*Event, bool, error) {
	ev, err := scanEvent(r)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "scanning event row")
	}
	return ev, true, nil
}

// GetEvents returns every event whose [start_utc, end_utc) intersects
// [from, to): inclusive on start, exclusive on end (spec.md §4.8).
func (d *DB) GetEvents(from, to int64) ([]*Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireInitialized(); err != nil {
		return nil, err
	}
	rows, err := d.conn.Query(`SELECT `+eventColumns+` FROM events WHERE start_utc < ? AND end_utc > ? ORDER BY start_utc ASC`, to, from)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "listing events in range")
	}
	defer rows.Close()
	return scanEvents(rows)
}

// GetUpcomingEvents returns up to limit events with start_utc >= now,
// ordered by start_utc ascending.
func (d *DB) GetUpcomingEvents(now int64, limit int) ([]*Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireInitialized(); err != nil {
		return nil, err
	}
	rows, err := d.conn.Query(`SELECT `+eventColumns+` FROM events WHERE start_utc >= ? ORDER BY start_utc ASC LIMIT ?`, now, limit)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "listing upcoming events")
	}
	defer rows.Close()
	return scanEvents(rows)
}

// DeleteEvent removes an event, cascading to its attendees via the FK.
// Returns whether a row was removed (spec.md §8 item 7).
func (d *DB) DeleteEvent(id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireInitialized(); err != nil {
		return false, err
	}
	res, err := d.conn.Exec(`DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return false, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "deleting event %q", id)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteEventsNotIn removes every event in forCalendar whose id is not in
// ids, returning the number of rows removed.
func (d *DB) DeleteEventsNotIn(ids []string, forCalendar string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireInitialized(); err != nil {
		return 0, err
	}

	if len(ids) == 0 {
		res, err := d.conn.Exec(`DELETE FROM events WHERE calendar_id = ?`, forCalendar)
		if err != nil {
			return 0, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "deleting all events for calendar %q", forCalendar)
		}
		n, _ := res.RowsAffected()
		return int(n), nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, forCalendar)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := `DELETE FROM events WHERE calendar_id = ? AND id NOT IN (` + joinPlaceholders(placeholders) + `)`
	res, err := d.conn.Exec(query, args...)
	if err != nil {
		return 0, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "deleting stale events for calendar %q", forCalendar)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func joinPlaceholders(placeholders []string) string {
	out := ""
	for i, p := range placeholders {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

func scanEvents(rows *sql.Rows) ([]*Event, error) {
	var out []*Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "scanning event row")
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func scanEvent(r rowScanner) (*Event, error) {
	var e Event
	var eventkitID, externalID, summary, description, location, url sql.NullString
	var startTZ, endTZ, recurrenceRule, masterEventID, status sql.NullString
	var isAllDay int64
	var occurrenceDate sql.NullInt64

	if err := r.Scan(
		&e.ID, &eventkitID, &externalID, &e.CalendarID, &summary, &description, &location, &url,
		&e.StartUTC, &e.EndUTC, &startTZ, &endTZ, &isAllDay, &recurrenceRule,
		&masterEventID, &occurrenceDate, &status, &e.CreatedAt, &e.UpdatedAt, &e.SyncedAt,
	); err != nil {
		return nil, err
	}

	e.EventKitID = eventkitID.String
	e.ExternalID = externalID.String
	e.Summary = summary.String
	e.Description = description.String
	e.Location = location.String
	e.URL = url.String
	e.StartTZ = startTZ.String
	e.EndTZ = endTZ.String
	e.IsAllDay = isAllDay == 1
	e.RecurrenceRule = recurrenceRule.String
	e.MasterEventID = masterEventID.String
	e.Status = status.String
	if occurrenceDate.Valid {
		v := occurrenceDate.Int64
		e.OccurrenceDate = &v
	}
	return &e, nil
}
