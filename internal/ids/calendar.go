package ids

import (
	"strconv"
	"strings"
	"time"
)

// GeneratePublicID derives a calendar event's public id. When identity
// carries a non-empty external_identifier it is treated as opaque and
// returned unchanged (spec.md §4.1, §8 item 3); otherwise a 32-hex id is
// derived from (calendarID, summary, start, occurrence).
func GeneratePublicID(externalIdentifier, calendarID, summary string, start int64, occurrence *int64) string {
	if strings.TrimSpace(externalIdentifier) != "" {
		return externalIdentifier
	}
	var occ string
	if occurrence != nil {
		occ = strconv.FormatInt(*occurrence, 10)
	}
	key := "event:" + calendarID + "\x1f" + summary + "\x1f" +
		strconv.FormatInt(start, 10) + "\x1f" + occ
	return hash128(key)
}

// IsExternalID reports whether s looks like an opaque upstream identifier
// rather than one of this module's derived 32-hex ids.
func IsExternalID(s string) bool {
	return s != "" && !IsValid(s)
}

// ContentMatches compares two (summary, start) pairs, treating summaries as
// equal case-insensitively and start times as equal within tolerance.
func ContentMatches(storedSummary string, storedStart time.Time, currentSummary string, currentStart time.Time, tolerance time.Duration) bool {
	if !strings.EqualFold(strings.TrimSpace(storedSummary), strings.TrimSpace(currentSummary)) {
		return false
	}
	delta := storedStart.Sub(currentStart)
	if delta < 0 {
		delta = -delta
	}
	return delta <= tolerance
}

// ReconcileOutcome is the closed set of outcomes for calendar identity
// reconciliation (spec.md §4.1).
type ReconcileOutcome string

const (
	ReconcileMatch              ReconcileOutcome = "match"
	ReconcileNewEvent           ReconcileOutcome = "new_event"
	ReconcileExternalIDChanged  ReconcileOutcome = "external_id_changed"
	ReconcileEventKitIDChanged  ReconcileOutcome = "eventkit_id_changed"
	ReconcileBothIDsChanged     ReconcileOutcome = "both_ids_changed"
	ReconcileNotFound           ReconcileOutcome = "not_found"
)

// IdentityPair is an (eventkit_id, external_id) pair as seen either in
// storage or from the current upstream fetch.
type IdentityPair struct {
	EventKitID string
	ExternalID string
}

// ReconcileResult carries the outcome plus whichever new id(s) the caller
// should persist, when applicable.
type ReconcileResult struct {
	Outcome        ReconcileOutcome
	NewEventKitID  string
	NewExternalID  string
}

// Reconcile implements the identity-reconciliation rule from spec.md §4.1:
// if calendar_id differs, notFound; else if both pairs are equal, match;
// else report which side(s) differ (with externalIdChanged taking priority
// when the stored external id was null/empty and the current one is not).
func Reconcile(storedCalendarID, currentCalendarID string, stored *IdentityPair, current IdentityPair) ReconcileResult {
	if storedCalendarID != currentCalendarID {
		return ReconcileResult{Outcome: ReconcileNotFound}
	}
	if stored == nil {
		return ReconcileResult{Outcome: ReconcileNewEvent}
	}

	eventKitChanged := stored.EventKitID != current.EventKitID
	externalChanged := stored.ExternalID != current.ExternalID

	if !eventKitChanged && !externalChanged {
		return ReconcileResult{Outcome: ReconcileMatch}
	}

	if externalChanged && stored.ExternalID == "" && current.ExternalID != "" {
		return ReconcileResult{Outcome: ReconcileExternalIDChanged, NewExternalID: current.ExternalID}
	}

	if eventKitChanged && externalChanged {
		return ReconcileResult{
			Outcome:       ReconcileBothIDsChanged,
			NewEventKitID: current.EventKitID,
			NewExternalID: current.ExternalID,
		}
	}

	if externalChanged {
		return ReconcileResult{Outcome: ReconcileExternalIDChanged, NewExternalID: current.ExternalID}
	}

	return ReconcileResult{Outcome: ReconcileEventKitIDChanged, NewEventKitID: current.EventKitID}
}
