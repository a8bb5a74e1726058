// Package calendarsync orchestrates pulling calendars and events from a
// CalendarSource into CalendarDatabase: fetch, upsert, record sync status
// (spec.md §4.12 expansion). Modeled on the teacher's internal/sync
// package's "run each unit, collect a per-unit result, never let one
// failure abort the rest" shape.
package calendarsync

import (
	"context"
	"fmt"
	"time"

	"github.com/dwrekofc/swiftea/internal/calendardb"
	"github.com/dwrekofc/swiftea/internal/calendarsource"
)

// CalendarResult is the outcome of syncing a single calendar.
type CalendarResult struct {
	CalendarID   string
	Success      bool
	Error        string
	EventsSynced int
}

// Result is the outcome of syncing every calendar a CalendarSource reports.
type Result struct {
	OK        bool
	Calendars []CalendarResult
}

// Sync fetches calendars from source, upserts them, then for each fetches
// events since that calendar's last recorded sync time, upserts them, and
// advances the cursor. One calendar failing does not stop the others; the
// overall Result.OK reflects whether every calendar succeeded.
func Sync(ctx context.Context, db *calendardb.DB, source calendarsource.CalendarSource) (Result, error) {
	calendars, err := source.FetchCalendars(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetching calendars: %w", err)
	}

	result := Result{OK: true}
	for _, cal := range calendars {
		cr := syncCalendar(ctx, db, source, cal)
		result.Calendars = append(result.Calendars, cr)
		if !cr.Success {
			result.OK = false
		}
	}
	return result, nil
}

func syncCalendar(ctx context.Context, db *calendardb.DB, source calendarsource.CalendarSource, cal calendardb.Calendar) CalendarResult {
	cr := CalendarResult{CalendarID: cal.ID}

	if err := db.UpsertCalendar(&cal); err != nil {
		cr.Error = fmt.Sprintf("upserting calendar: %v", err)
		return cr
	}

	since := time.Unix(0, 0)
	if last, ok, err := db.GetLastSyncTime(cal.ID); err == nil && ok {
		since = time.Unix(last, 0)
	}

	events, err := source.FetchEvents(ctx, cal.ID, since)
	if err != nil {
		cr.Error = fmt.Sprintf("fetching events: %v", err)
		return cr
	}

	eventPtrs := make([]*calendardb.Event, len(events))
	for i := range events {
		eventPtrs[i] = &events[i]
	}
	if len(eventPtrs) > 0 {
		if err := db.UpsertEvents(eventPtrs); err != nil {
			cr.Error = fmt.Sprintf("upserting events: %v", err)
			return cr
		}
	}

	if err := db.SetLastSyncTime(cal.ID, time.Now().Unix()); err != nil {
		cr.Error = fmt.Sprintf("recording sync cursor: %v", err)
		return cr
	}

	cr.Success = true
	cr.EventsSynced = len(events)
	return cr
}
