// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"fmt"

	"release_notification_bot/internal/domain/messaging"
	"release_notification_bot/internal/domain/release"

	"gopkg.in/telebot.v3"
)

// Sender is the subset of *telebot.Bot the adapter needs.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelebotAdapter implements messaging.Client using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	sender   Sender
	renderer *Renderer
}

func NewTelebotAdapter(s Sender, r *Renderer) *TelebotAdapter {
	return &TelebotAdapter{sender: s, renderer: r}
}

var _ messaging.Client = (*TelebotAdapter)(nil)

// Deliver sends the notices to the subscriber's chat. A lone new release with a
// cover image goes out as a photo with the text as caption.
func (tba *TelebotAdapter) Deliver(ctx context.Context, subscriberID int64, notices []messaging.Notice) error {
	if len(notices) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	recipient := telebot.ChatID(subscriberID)
	text := tba.renderer.Render(notices)
	opts := &telebot.SendOptions{ParseMode: telebot.ModeDefault, DisableWebPagePreview: true}

	var what interface{} = text
	if len(notices) == 1 {
		n := notices[0]
		if n.Event.Kind == release.EventNewRelease && n.Event.Candidate != nil && n.Event.Candidate.ImageRef != "" {
			what = &telebot.Photo{File: telebot.FromURL(n.Event.Candidate.ImageRef), Caption: text}
		}
	}

	if _, err := tba.sender.Send(recipient, what, opts); err != nil {
		return fmt.Errorf("telegram send to chat %d: %w", subscriberID, err)
	}
	return nil
}
