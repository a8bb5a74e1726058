package calendardb

import (
	"database/sql"
	"strconv"

	"github.com/dwrekofc/swiftea/internal/vaulterrors"
)

// SetSyncStatus records an arbitrary key/value pair in sync_status, used
// for cursors, watermarks, and other bookkeeping the calendar source
// layer needs across runs.
func (d *DB) SetSyncStatus(key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireInitialized(); err != nil {
		return err
	}
	_, err := d.conn.Exec(`INSERT OR REPLACE INTO sync_status (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "setting sync status %q", key)
	}
	return nil
}

// GetSyncStatus returns the value for key, or ("", false) if absent.
func (d *DB) GetSyncStatus(key string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireInitialized(); err != nil {
		return "", false, err
	}
	var value string
	err := d.conn.QueryRow(`SELECT value FROM sync_status WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "getting sync status %q", key)
	}
	return value, true, nil
}

// lastSyncedAtKey is the sync_status key format for a calendar's
// CalendarSyncCursor (spec.md §3 expansion): "calendar:<id>:last_synced_at".
func lastSyncedAtKey(forCalendar string) string {
	return "calendar:" + forCalendar + ":last_synced_at"
}

// SetLastSyncTime is a convenience wrapper over SetSyncStatus for a
// calendar's CalendarSyncCursor.
func (d *DB) SetLastSyncTime(forCalendar string, unixSeconds int64) error {
	return d.SetSyncStatus(lastSyncedAtKey(forCalendar), strconv.FormatInt(unixSeconds, 10))
}

// GetLastSyncTime returns the last recorded sync time for forCalendar, or
// (0, false) if never synced.
func (d *DB) GetLastSyncTime(forCalendar string) (int64, bool, error) {
	raw, ok, err := d.GetSyncStatus(lastSyncedAtKey(forCalendar))
	if err != nil || !ok {
		return 0, ok, err
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, vaulterrors.Wrap(vaulterrors.KindInvalidFormat, err, "parsing last sync time for %q", forCalendar)
	}
	return v, true, nil
}
