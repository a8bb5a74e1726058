// Package mock provides a deterministic, in-memory CalendarSource backed by
// fixture data, for use by calendarsync's tests and by callers that want a
// CalendarSource without a real CalDAV/EventKit bridge. Grounded on
// quantumlife-canon-core's impl_mock.MockConnector fixture shape and
// Napageneral-mnemonic's calendar adapter's event/attendee field mapping.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/dwrekofc/swiftea/internal/calendardb"
)

// Fixture is one recurring-or-singular event definition a Source expands
// from. RecurrenceRule, when set, is an RFC 5545 RRULE string ("FREQ=WEEKLY;
// COUNT=5") expanded into concrete occurrences; Source performs that
// expansion itself, never the calendardb store (spec.md §4.8).
type Fixture struct {
	ID              string
	CalendarID      string
	Summary         string
	Description     string
	Location        string
	Start           time.Time
	End             time.Time
	RecurrenceRule  string
	MaxOccurrences  int
}

// Source is a deterministic in-memory CalendarSource. All operations are
// pure functions of the fixtures it was constructed with; it never performs
// network I/O.
type Source struct {
	mu        sync.RWMutex
	calendars []calendardb.Calendar
	fixtures  []Fixture
}

// New constructs a Source from the given calendars and event fixtures.
func New(calendars []calendardb.Calendar, fixtures []Fixture) *Source {
	return &Source{calendars: calendars, fixtures: fixtures}
}

// DefaultFixtures returns a small deterministic fixture set: one plain
// event, and one weekly-recurring event, across two calendars.
func DefaultFixtures() ([]calendardb.Calendar, []Fixture) {
	calendars := []calendardb.Calendar{
		{ID: "cal-personal", Title: "Personal", SourceType: "mock"},
		{ID: "cal-work", Title: "Work", SourceType: "mock"},
	}
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	fixtures := []Fixture{
		{
			ID: "evt-dentist", CalendarID: "cal-personal", Summary: "Dentist appointment",
			Start: base.Add(2 * time.Hour), End: base.Add(3 * time.Hour),
		},
		{
			ID: "evt-standup", CalendarID: "cal-work", Summary: "Daily standup",
			Description: "Team sync", Location: "Zoom",
			Start: base, End: base.Add(30 * time.Minute),
			RecurrenceRule: "FREQ=WEEKLY;COUNT=5", MaxOccurrences: 5,
		},
	}
	return calendars, fixtures
}

// FetchCalendars returns every fixture calendar.
func (s *Source) FetchCalendars(ctx context.Context) ([]calendardb.Calendar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]calendardb.Calendar, len(s.calendars))
	copy(out, s.calendars)
	return out, nil
}

// FetchEvents expands every fixture belonging to calendarID into concrete
// StoredEvent rows, filtering to occurrences starting at or after since.
// Recurring fixtures expand via rrule-go; each occurrence after the first
// carries MasterEventID and OccurrenceDate, per spec.md §4.8.
func (s *Source) FetchEvents(ctx context.Context, calendarID string, since time.Time) ([]calendardb.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now().Unix()
	var out []calendardb.Event

	for _, f := range s.fixtures {
		if f.CalendarID != calendarID {
			continue
		}

		if f.RecurrenceRule == "" {
			if f.Start.Before(since) {
				continue
			}
			out = append(out, calendardb.Event{
				ID: f.ID, CalendarID: f.CalendarID, Summary: f.Summary, Description: f.Description,
				Location: f.Location, StartUTC: f.Start.Unix(), EndUTC: f.End.Unix(),
				CreatedAt: now, UpdatedAt: now,
			})
			continue
		}

		occurrences, err := expandRecurrence(f)
		if err != nil {
			return nil, fmt.Errorf("expanding recurrence for fixture %q: %w", f.ID, err)
		}

		duration := f.End.Sub(f.Start)
		for i, occStart := range occurrences {
			if occStart.Before(since) {
				continue
			}
			ev := calendardb.Event{
				ID:         occurrenceID(f.ID, i),
				CalendarID: f.CalendarID,
				Summary:    f.Summary,
				Description: f.Description,
				Location:   f.Location,
				StartUTC:   occStart.Unix(),
				EndUTC:     occStart.Add(duration).Unix(),
				RecurrenceRule: recurrenceRuleForOccurrence(f, i),
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if i > 0 {
				ev.MasterEventID = f.ID
				occDate := occStart.Unix()
				ev.OccurrenceDate = &occDate
			}
			out = append(out, ev)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartUTC < out[j].StartUTC })
	return out, nil
}

func recurrenceRuleForOccurrence(f Fixture, index int) string {
	if index == 0 {
		return f.RecurrenceRule
	}
	return ""
}

func occurrenceID(masterID string, index int) string {
	if index == 0 {
		return masterID
	}
	return fmt.Sprintf("%s-occ-%d", masterID, index)
}

func expandRecurrence(f Fixture) ([]time.Time, error) {
	option, err := rrule.StrToROption(f.RecurrenceRule)
	if err != nil {
		return nil, err
	}
	option.Dtstart = f.Start

	rule, err := rrule.NewRRule(*option)
	if err != nil {
		return nil, err
	}

	limit := f.MaxOccurrences
	if limit <= 0 {
		limit = 50
	}
	occurrences := rule.All()
	if len(occurrences) > limit {
		occurrences = occurrences[:limit]
	}
	return occurrences, nil
}
