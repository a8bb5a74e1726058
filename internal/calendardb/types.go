package calendardb

// Calendar is one canonical calendar row (spec.md §3 StoredCalendar).
type Calendar struct {
	ID            string
	EventKitID    string
	Title         string
	SourceType    string
	Color         string
	IsSubscribed  bool
	IsImmutable   bool
	SyncedAt      int64
}

// Event is one canonical event row (spec.md §3 StoredEvent). Recurring
// events are stored uniformly: occurrences carry MasterEventID and
// OccurrenceDate; no expansion happens inside this store (spec.md §4.8).
type Event struct {
	ID              string
	EventKitID      string
	ExternalID      string
	CalendarID      string
	Summary         string
	Description     string
	Location        string
	URL             string
	StartUTC        int64
	EndUTC          int64
	StartTZ         string
	EndTZ           string
	IsAllDay        bool
	RecurrenceRule  string
	MasterEventID   string
	OccurrenceDate  *int64
	Status          string
	CreatedAt       int64
	UpdatedAt       int64
	SyncedAt        int64
}

// Attendee is one canonical attendee row (spec.md §3 StoredAttendee).
type Attendee struct {
	EventID        string
	Name           string
	Email          string
	ResponseStatus string
	IsOrganizer    bool
	IsOptional     bool
}
