package tracking

import (
	"context"
)

// Repository defines the operations for persisting and retrieving tracked entries.
// The reconciliation pass only uses LoadAll and Save; entries are created by the
// subscription commands and never deleted here.
type Repository interface {
	LoadAll(ctx context.Context) ([]*Entry, error)
	Save(ctx context.Context, id int64, patch Patch) error
	Create(ctx context.Context, entry *Entry) error
	GetByID(ctx context.Context, id int64) (*Entry, error)
	ListBySubscriber(ctx context.Context, subscriberID int64) ([]*Entry, error)
}
