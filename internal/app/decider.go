// internal/app/decider.go
package app

import (
	"database/sql"
	"time"

	"release_notification_bot/internal/domain/release"
	"release_notification_bot/internal/domain/tracking"
)

// DefaultReminderDays are the day offsets before release that trigger a countdown reminder.
var DefaultReminderDays = []int{30, 14, 7, 0}

// Decider classifies one entry against its selected candidate.
type Decider struct {
	reminderDays map[int]struct{}
}

func NewDecider(reminderDays []int) *Decider {
	if len(reminderDays) == 0 {
		reminderDays = DefaultReminderDays
	}
	set := make(map[int]struct{}, len(reminderDays))
	for _, d := range reminderDays {
		set[d] = struct{}{}
	}
	return &Decider{reminderDays: set}
}

// Decide evaluates the transition rules in precedence order; the first match wins.
// today must already be a calendar day in the configured location.
func (d *Decider) Decide(entry *tracking.Entry, candidate *release.Candidate, today time.Time) release.Event {
	// 1. Nothing selected, or nothing usable.
	if entry == nil || candidate == nil || candidate.ISBN == "" {
		return release.NoOp()
	}

	// 2. A changed identifier always wins over date-based rules.
	if !entry.IsMatched() || candidate.ISBN != entry.LastISBN {
		return release.Event{Kind: release.EventNewRelease, Candidate: candidate}
	}

	// 3. Same item, moved or corrected release date.
	if !sameDay(candidate.SalesDate, entry.LastSalesDate) {
		return release.Event{
			Kind:         release.EventMetadataUpdated,
			Candidate:    candidate,
			OldSalesDate: entry.LastSalesDate,
			NewSalesDate: candidate.SalesDate,
		}
	}

	// 4. Countdown, at most once per calendar day.
	if candidate.SalesDate.Valid {
		daysLeft := daysBetween(today, candidate.SalesDate.Time)
		if _, ok := d.reminderDays[daysLeft]; ok && !notifiedOn(entry, today) {
			return release.Event{Kind: release.EventCountdownReminder, Candidate: candidate, DaysLeft: daysLeft}
		}
	}

	// 5. Release day has passed for a reserved volume.
	if entry.IsReserved && entry.LastSalesDate.Valid && daysBetween(entry.LastSalesDate.Time, today) > 0 {
		return release.Event{Kind: release.EventReleaseDayResetDue, Candidate: candidate}
	}

	return release.NoOp()
}

// Patch returns the entry mutation for a decided event.
//
// Identifier and sales date tracking advance whether or not the notice was
// delivered, so the same item is not re-detected forever. The notified day only
// advances on confirmed delivery, so an undelivered reminder is retried.
func (d *Decider) Patch(entry *tracking.Entry, event release.Event, today time.Time, delivered bool) tracking.Patch {
	var p tracking.Patch
	if entry == nil {
		return p
	}

	switch event.Kind {
	case release.EventNewRelease, release.EventMetadataUpdated:
		if event.Candidate == nil {
			return p
		}
		isbn := event.Candidate.ISBN
		salesDate := event.Candidate.SalesDate
		p.LastISBN = &isbn
		p.LastSalesDate = &salesDate
	case release.EventReleaseDayResetDue:
		reserved := false
		// The reserved volume is the one just released; count up to it.
		volume := entry.LastPurchasedVolume + 1
		if c := event.Candidate; c != nil && c.VolumeNumber.Valid && int(c.VolumeNumber.Int64) > volume {
			volume = int(c.VolumeNumber.Int64)
		}
		p.IsReserved = &reserved
		p.LastPurchasedVolume = &volume
	}
	if delivered && event.Notifies() {
		p.LastNotifiedDay = dayPtr(today)
	}
	return p
}

// DateOf truncates t to its calendar day in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days from a to b, ignoring time of day and zone offsets.
func daysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

func sameDay(a, b sql.NullTime) bool {
	if a.Valid != b.Valid {
		return false
	}
	if !a.Valid {
		return true
	}
	return daysBetween(a.Time, b.Time) == 0
}

func notifiedOn(entry *tracking.Entry, today time.Time) bool {
	return entry.LastNotifiedDay.Valid && daysBetween(entry.LastNotifiedDay.Time, today) == 0
}

func dayPtr(t time.Time) *sql.NullTime {
	return &sql.NullTime{Time: t, Valid: true}
}
