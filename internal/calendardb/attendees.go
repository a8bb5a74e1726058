package calendardb

import (
	"database/sql"

	"github.com/dwrekofc/swiftea/internal/vaulterrors"
)

// UpsertAttendee appends an attendee row for an event. Attendees have no
// natural primary key, so repeated calls accumulate rows; callers that
// want replace semantics should use ReplaceAttendees instead.
func (d *DB) UpsertAttendee(a *Attendee) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireInitialized(); err != nil {
		return err
	}
	return d.insertAttendeeLocked(a)
}

func (d *DB) insertAttendeeLocked(a *Attendee) error {
	_, err := d.conn.Exec(`
		INSERT INTO attendees (event_id, name, email, response_status, is_organizer, is_optional)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.EventID, nullIfEmpty(a.Name), nullIfEmpty(a.Email), nullIfEmpty(a.ResponseStatus),
		boolToInt(a.IsOrganizer), boolToInt(a.IsOptional))
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.KindConstraintViolation, err, "inserting attendee for event %q", a.EventID)
	}
	return nil
}

// ReplaceAttendees atomically replaces the full attendee set for an event:
// deletes every existing attendee row for eventID, then inserts attendees,
// regardless of what was there before (spec.md §8 items 7/8).
func (d *DB) ReplaceAttendees(eventID string, attendees []*Attendee) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireInitialized(); err != nil {
		return err
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "beginning attendee replace transaction")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM attendees WHERE event_id = ?`, eventID); err != nil {
		return vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "clearing attendees for event %q", eventID)
	}

	for _, a := range attendees {
		_, err := tx.Exec(`
			INSERT INTO attendees (event_id, name, email, response_status, is_organizer, is_optional)
			VALUES (?, ?, ?, ?, ?, ?)`,
			eventID, nullIfEmpty(a.Name), nullIfEmpty(a.Email), nullIfEmpty(a.ResponseStatus),
			boolToInt(a.IsOrganizer), boolToInt(a.IsOptional))
		if err != nil {
			return vaulterrors.Wrap(vaulterrors.KindConstraintViolation, err, "inserting attendee for event %q", eventID)
		}
	}

	if err := tx.Commit(); err != nil {
		return vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "committing attendee replace")
	}
	return nil
}

// GetAttendees returns every attendee of eventID.
func (d *DB) GetAttendees(eventID string) ([]*Attendee, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireInitialized(); err != nil {
		return nil, err
	}

	rows, err := d.conn.Query(`
		SELECT event_id, name, email, response_status, is_organizer, is_optional
		FROM attendees WHERE event_id = ?`, eventID)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "listing attendees for event %q", eventID)
	}
	defer rows.Close()

	var out []*Attendee
	for rows.Next() {
		a, err := scanAttendee(rows)
		if err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "scanning attendee row")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAttendee(r rowScanner) (*Attendee, error) {
	var a Attendee
	var name, email, responseStatus sql.NullString
	var isOrganizer, isOptional int64
	if err := r.Scan(&a.EventID, &name, &email, &responseStatus, &isOrganizer, &isOptional); err != nil {
		return nil, err
	}
	a.Name = name.String
	a.Email = email.String
	a.ResponseStatus = responseStatus.String
	a.IsOrganizer = isOrganizer == 1
	a.IsOptional = isOptional == 1
	return &a, nil
}
