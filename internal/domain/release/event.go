// internal/domain/release/event.go
package release

import "database/sql"

// EventKind classifies the outcome of reconciling one entry.
type EventKind string

const (
	EventNoOp               EventKind = "NO_OP"
	EventNewRelease         EventKind = "NEW_RELEASE"
	EventMetadataUpdated    EventKind = "METADATA_UPDATED"
	EventCountdownReminder  EventKind = "COUNTDOWN_REMINDER"
	EventReleaseDayResetDue EventKind = "RELEASE_DAY_RESET_DUE"
)

// Event is the decided outcome of one entry for one pass.
type Event struct {
	Kind      EventKind
	Candidate *Candidate

	// Set for EventMetadataUpdated.
	OldSalesDate sql.NullTime
	NewSalesDate sql.NullTime

	// Set for EventCountdownReminder.
	DaysLeft int
}

// NoOp is the zero-information event.
func NoOp() Event {
	return Event{Kind: EventNoOp}
}

// Notifies reports whether the event results in a message to the subscriber.
func (e Event) Notifies() bool {
	switch e.Kind {
	case EventNewRelease, EventMetadataUpdated, EventCountdownReminder:
		return true
	default:
		return false
	}
}
