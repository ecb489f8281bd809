package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"release_notification_bot/internal/domain/tracking"
	idb "release_notification_bot/internal/infra/database"
)

// Application-level errors for subscription commands
var ErrEmptyTitle = fmt.Errorf("title must not be empty")
var ErrTitleAlreadyTracked = fmt.Errorf("title is already tracked by this subscriber")
var ErrEntryNotOwned = fmt.Errorf("entry belongs to another subscriber")
var ErrEntryAlreadyReserved = fmt.Errorf("entry is already marked as reserved")

// SubscriptionService handles the chat commands that create and adjust tracked
// entries. It sits outside the reconciliation pass.
type SubscriptionService struct {
	entryRepo tracking.Repository
}

func NewSubscriptionService(er tracking.Repository) *SubscriptionService {
	return &SubscriptionService{entryRepo: er}
}

// TrackTitle adds a new tracked entry for the subscriber.
func (s *SubscriptionService) TrackTitle(ctx context.Context, subscriberID int64, title string, author string) (*tracking.Entry, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	existing, err := s.entryRepo.ListBySubscriber(ctx, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries for subscriber: %w", err)
	}
	for _, e := range existing {
		if strings.EqualFold(collapseSpaces(e.TitleKey), collapseSpaces(title)) {
			return e, ErrTitleAlreadyTracked
		}
	}

	var authorValue sql.NullString
	if author = strings.TrimSpace(author); author != "" {
		authorValue.String = author
		authorValue.Valid = true
	}

	entry := &tracking.Entry{
		SubscriberID: subscriberID,
		TitleKey:     title,
		Author:       authorValue,
	}
	if err := s.entryRepo.Create(ctx, entry); err != nil {
		if err == idb.ErrDuplicateEntry {
			return nil, ErrTitleAlreadyTracked
		}
		return nil, fmt.Errorf("failed to create tracked entry in repository: %w", err)
	}
	return entry, nil
}

// ListTitles returns the subscriber's tracked entries.
func (s *SubscriptionService) ListTitles(ctx context.Context, subscriberID int64) ([]*tracking.Entry, error) {
	entries, err := s.entryRepo.ListBySubscriber(ctx, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries for subscriber: %w", err)
	}
	return entries, nil
}

// MarkReserved flags an entry as reserved. Once its release date passes, the next
// pass clears the flag and counts the volume as purchased.
func (s *SubscriptionService) MarkReserved(ctx context.Context, subscriberID int64, entryID int64) (*tracking.Entry, error) {
	entry, err := s.entryRepo.GetByID(ctx, entryID)
	if err != nil {
		if err == idb.ErrEntryNotFound {
			return nil, idb.ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get entry %d: %w", entryID, err)
	}
	if entry.SubscriberID != subscriberID {
		return nil, ErrEntryNotOwned
	}
	if entry.IsReserved {
		return entry, ErrEntryAlreadyReserved
	}

	reserved := true
	patch := tracking.Patch{IsReserved: &reserved}
	if err := s.entryRepo.Save(ctx, entry.ID, patch); err != nil {
		return nil, fmt.Errorf("failed to mark entry %d as reserved: %w", entryID, err)
	}
	entry.Apply(patch)
	return entry, nil
}
