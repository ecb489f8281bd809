package messaging

import (
	"context"

	"release_notification_bot/internal/domain/release"
)

// Notice is one renderable event addressed to a subscriber.
type Notice struct {
	EntryID  int64
	TitleKey string
	Event    release.Event
}

// Client delivers notices to a subscriber.
// A single notice is sent on its own; several notices are sent as one grouped message.
// This keeps the reconciliation logic independent of the chat library.
type Client interface {
	Deliver(ctx context.Context, subscriberID int64, notices []Notice) error
}
