package tracking

import (
	"database/sql"
	"time"
)

// Entry is one subscriber's interest in one title.
// Corresponds to the 'tracked_entries' table.
type Entry struct {
	ID                  int64
	SubscriberID        int64          // Telegram chat ID of the subscriber
	TitleKey            string         // Title as the subscriber typed it
	Author              sql.NullString // Optional author filter
	LastISBN            string         // "" until the first match
	LastSalesDate       sql.NullTime
	LastNotifiedDay     sql.NullTime // Day of the last successfully delivered notice
	LastPurchasedVolume int          // Never decreases
	IsReserved          bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsMatched reports whether the entry has ever been matched to a publication.
// "0" is the placeholder older history files used for unmatched titles.
func (e *Entry) IsMatched() bool {
	return e.LastISBN != "" && e.LastISBN != "0"
}

// Apply folds a partial update into the entry.
func (e *Entry) Apply(p Patch) {
	if p.LastISBN != nil {
		e.LastISBN = *p.LastISBN
	}
	if p.LastSalesDate != nil {
		e.LastSalesDate = *p.LastSalesDate
	}
	if p.LastNotifiedDay != nil {
		e.LastNotifiedDay = *p.LastNotifiedDay
	}
	if p.LastPurchasedVolume != nil && *p.LastPurchasedVolume > e.LastPurchasedVolume {
		e.LastPurchasedVolume = *p.LastPurchasedVolume
	}
	if p.IsReserved != nil {
		e.IsReserved = *p.IsReserved
	}
}
