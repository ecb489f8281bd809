// internal/app/deduper.go
package app

import (
	"time"

	"release_notification_bot/internal/domain/release"
	"release_notification_bot/internal/domain/tracking"
)

// Decision pairs an entry with the event decided for it in the current pass.
type Decision struct {
	Entry *tracking.Entry
	Event release.Event
}

// SubscriberBatch holds one subscriber's decisions in processing order.
type SubscriberBatch struct {
	SubscriberID int64
	Decisions    []Decision
}

// Immediate returns the decisions delivered one message each.
func (b SubscriberBatch) Immediate() []Decision {
	return b.filter(release.EventNewRelease, release.EventMetadataUpdated)
}

// Reminders returns the countdown reminders, delivered together in one message.
func (b SubscriberBatch) Reminders() []Decision {
	return b.filter(release.EventCountdownReminder)
}

// StateOnly returns decisions that change stored state without messaging anyone.
func (b SubscriberBatch) StateOnly() []Decision {
	return b.filter(release.EventReleaseDayResetDue)
}

func (b SubscriberBatch) filter(kinds ...release.EventKind) []Decision {
	var out []Decision
	for _, d := range b.Decisions {
		for _, k := range kinds {
			if d.Event.Kind == k {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

// DedupeAndGroup drops no-ops, reminders already sent today and repeated entries,
// then groups the rest by subscriber. Subscribers appear in the order their first
// entry was processed.
func DedupeAndGroup(decisions []Decision, today time.Time) []SubscriberBatch {
	var batches []SubscriberBatch
	index := make(map[int64]int)
	seenEntries := make(map[int64]struct{})

	for _, d := range decisions {
		if d.Entry == nil || d.Event.Kind == release.EventNoOp || d.Event.Kind == "" {
			continue
		}
		if d.Event.Kind == release.EventCountdownReminder && notifiedOn(d.Entry, today) {
			continue
		}
		if _, dup := seenEntries[d.Entry.ID]; dup {
			continue
		}
		seenEntries[d.Entry.ID] = struct{}{}

		i, ok := index[d.Entry.SubscriberID]
		if !ok {
			i = len(batches)
			index[d.Entry.SubscriberID] = i
			batches = append(batches, SubscriberBatch{SubscriberID: d.Entry.SubscriberID})
		}
		batches[i].Decisions = append(batches[i].Decisions, d)
	}
	return batches
}
