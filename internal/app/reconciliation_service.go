// internal/app/reconciliation_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"release_notification_bot/internal/domain/catalog"
	"release_notification_bot/internal/domain/messaging"
	"release_notification_bot/internal/domain/release"
	"release_notification_bot/internal/domain/tracking"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Failure kinds. Each is scoped to the entry or subscriber it came from; none of
// them aborts a pass.
var ErrLookupFailure = fmt.Errorf("catalog lookup failed")
var ErrDeliveryFailure = fmt.Errorf("notice delivery failed")
var ErrPersistenceFailure = fmt.Errorf("entry persistence failed")

// ReconciliationService runs reconciliation passes over all tracked entries.
type ReconciliationService interface {
	// RunReconciliationPass evaluates every entry against fresh catalog data,
	// notifies subscribers and stores the resulting state. It is safe to call
	// repeatedly; with unchanged provider data a second pass changes nothing.
	RunReconciliationPass(ctx context.Context) (*PassSummary, error)
}

// PassSummary is what one pass did, for the caller's logs.
type PassSummary struct {
	RunID               string
	Entries             int
	EventsDispatched    int
	StateUpdates        int
	LookupFailures      int
	DeliveryFailures    map[int64]int // subscriber ID -> failed deliveries
	PersistenceFailures int
}

// TotalDeliveryFailures sums failures across subscribers.
func (s *PassSummary) TotalDeliveryFailures() int {
	total := 0
	for _, n := range s.DeliveryFailures {
		total += n
	}
	return total
}

// ReconciliationServiceImpl implements the ReconciliationService interface.
type ReconciliationServiceImpl struct {
	entryRepo  tracking.Repository
	lookup     catalog.Lookup
	messenger  messaging.Client
	normalizer *Normalizer
	filter     *CandidateFilter
	decider    *Decider
	location   *time.Location
	logger     *logrus.Entry
	now        func() time.Time
}

func NewReconciliationServiceImpl(
	er tracking.Repository,
	lookup catalog.Lookup,
	messenger messaging.Client,
	normalizer *Normalizer,
	filter *CandidateFilter,
	decider *Decider,
	location *time.Location,
	logger *logrus.Entry,
) *ReconciliationServiceImpl {
	if location == nil {
		location = time.Local
	}
	return &ReconciliationServiceImpl{
		entryRepo:  er,
		lookup:     lookup,
		messenger:  messenger,
		normalizer: normalizer,
		filter:     filter,
		decider:    decider,
		location:   location,
		logger:     logger.WithField("component", "reconciliation"),
		now:        time.Now,
	}
}

func (s *ReconciliationServiceImpl) RunReconciliationPass(ctx context.Context) (*PassSummary, error) {
	runID := uuid.New().String()
	log := s.logger.WithField("run_id", runID)
	today := DateOf(s.now(), s.location)
	summary := &PassSummary{RunID: runID, DeliveryFailures: make(map[int64]int)}

	log.WithField("today", today.Format("2006-01-02")).Info("Reconciliation pass started")

	entries, err := s.entryRepo.LoadAll(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to load tracked entries")
		return summary, fmt.Errorf("%w: load tracked entries: %w", ErrPersistenceFailure, err)
	}
	summary.Entries = len(entries)
	if len(entries) == 0 {
		log.Info("No tracked entries. Nothing to reconcile.")
		return summary, nil
	}

	// 1. Decide, entry by entry.
	decisions := make([]Decision, 0, len(entries))
	for _, entry := range entries {
		event, err := s.reconcileEntry(ctx, entry, today)
		if err != nil {
			summary.LookupFailures++
			log.WithError(err).WithField("entry_id", entry.ID).Warn("Skipping entry for this pass")
			continue
		}
		if event.Kind != release.EventNoOp {
			log.WithFields(logrus.Fields{
				"entry_id":      entry.ID,
				"subscriber_id": entry.SubscriberID,
				"event":         event.Kind,
			}).Debug("Event decided")
		}
		decisions = append(decisions, Decision{Entry: entry, Event: event})
	}

	// 2. Deliver, one batch per subscriber.
	delivered := s.dispatch(ctx, log, DedupeAndGroup(decisions, today), summary)

	// 3. Store what was decided.
	for _, d := range decisions {
		patch := s.decider.Patch(d.Entry, d.Event, today, delivered[d.Entry.ID])
		if patch.IsEmpty() {
			continue
		}
		if err := s.entryRepo.Save(ctx, d.Entry.ID, patch); err != nil {
			summary.PersistenceFailures++
			log.WithError(fmt.Errorf("%w: %w", ErrPersistenceFailure, err)).
				WithField("entry_id", d.Entry.ID).Error("Failed to save entry; it will be recomputed next pass")
			continue
		}
		d.Entry.Apply(patch)
		summary.StateUpdates++
	}

	if summary.StateUpdates == 0 {
		log.Info("No entries needed updating.")
	}
	log.WithFields(logrus.Fields{
		"entries":              summary.Entries,
		"events_dispatched":    summary.EventsDispatched,
		"state_updates":        summary.StateUpdates,
		"lookup_failures":      summary.LookupFailures,
		"delivery_failures":    summary.TotalDeliveryFailures(),
		"persistence_failures": summary.PersistenceFailures,
	}).Info("Reconciliation pass finished")
	return summary, nil
}

// reconcileEntry runs normalize, lookup, filter, select and decide for one entry.
func (s *ReconciliationServiceImpl) reconcileEntry(ctx context.Context, entry *tracking.Entry, today time.Time) (release.Event, error) {
	author := ""
	if entry.Author.Valid {
		author = entry.Author.String
	}
	query := s.normalizer.Normalize(entry.TitleKey, author)

	raw, err := s.lookup.Search(ctx, query.QueryTitle, query.QueryAuthor)
	if err != nil {
		return release.NoOp(), fmt.Errorf("%w for %q: %w", ErrLookupFailure, entry.TitleKey, err)
	}

	candidates := s.filter.Filter(raw)
	candidate := SelectCandidate(candidates, entry, query.CompareKey)
	return s.decider.Decide(entry, candidate, today), nil
}

// dispatch delivers new releases and metadata updates one by one and each
// subscriber's reminders as one grouped message. It returns the IDs of entries
// whose notice was delivered.
func (s *ReconciliationServiceImpl) dispatch(ctx context.Context, log *logrus.Entry, batches []SubscriberBatch, summary *PassSummary) map[int64]bool {
	delivered := make(map[int64]bool)
	for _, batch := range batches {
		subLog := log.WithField("subscriber_id", batch.SubscriberID)

		for _, d := range batch.Immediate() {
			if err := s.deliver(ctx, batch.SubscriberID, []Decision{d}); err != nil {
				summary.DeliveryFailures[batch.SubscriberID]++
				subLog.WithError(err).WithField("entry_id", d.Entry.ID).Error("Failed to deliver notice")
				continue
			}
			delivered[d.Entry.ID] = true
			summary.EventsDispatched++
		}

		reminders := batch.Reminders()
		if len(reminders) == 0 {
			continue
		}
		if err := s.deliver(ctx, batch.SubscriberID, reminders); err != nil {
			summary.DeliveryFailures[batch.SubscriberID]++
			subLog.WithError(err).WithField("reminders", len(reminders)).Error("Failed to deliver reminders")
			continue
		}
		for _, d := range reminders {
			delivered[d.Entry.ID] = true
		}
		summary.EventsDispatched += len(reminders)
		subLog.WithField("reminders", len(reminders)).Info("Reminders delivered")
	}
	return delivered
}

func (s *ReconciliationServiceImpl) deliver(ctx context.Context, subscriberID int64, decisions []Decision) error {
	notices := make([]messaging.Notice, 0, len(decisions))
	for _, d := range decisions {
		notices = append(notices, messaging.Notice{
			EntryID:  d.Entry.ID,
			TitleKey: d.Entry.TitleKey,
			Event:    d.Event,
		})
	}
	if err := s.messenger.Deliver(ctx, subscriberID, notices); err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailure, err)
	}
	return nil
}
