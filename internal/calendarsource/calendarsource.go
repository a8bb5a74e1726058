// Package calendarsource defines the abstract producer of calendar data
// that calendarsync pulls from. spec.md §1/§2 names this collaborator but
// leaves its shape external; this is the Go-native interface it refers to.
package calendarsource

import (
	"context"
	"time"

	"github.com/dwrekofc/swiftea/internal/calendardb"
)

// CalendarSource produces calendars and events from some upstream (a real
// product would back this with CalDAV or EventKit; this module ships the
// interface plus a deterministic mock for tests and calendarsync).
type CalendarSource interface {
	FetchCalendars(ctx context.Context) ([]calendardb.Calendar, error)
	FetchEvents(ctx context.Context, calendarID string, since time.Time) ([]calendardb.Event, error)
}
