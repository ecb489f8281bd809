// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"release_notification_bot/internal/app"
	idb "release_notification_bot/internal/infra/database" // For ErrEntryNotFound

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const helpText = "新刊・発売日をお知らせするボットです。\n\n" +
	"/track <タイトル> [| 著者]\n - 作品を登録します。\n\n" +
	"/list\n - 登録中の作品を表示します。\n\n" +
	"/reserve <番号>\n - 予約済みにします。発売日を過ぎると購入済み巻数が進みます。\n\n" +
	"/help\n - この説明を表示します。\n\n" +
	"新刊が見つかったとき、発売日が変わったとき、発売30・14・7日前と当日にお知らせします。"

// Commands holds the chat command logic; handlers only adapt it to telebot.
type Commands struct {
	subscriptions *app.SubscriptionService
	logger        *logrus.Entry
}

func NewCommands(subs *app.SubscriptionService, baseLogger *logrus.Entry) *Commands {
	return &Commands{subscriptions: subs, logger: baseLogger.WithField("handler_group", "subscription")}
}

func RegisterBotCommands(ctx context.Context, b *telebot.Bot, cmds *Commands) {
	b.Handle("/start", func(c telebot.Context) error {
		return c.Send("こんにちは！\n" + helpText)
	})
	b.Handle("/help", func(c telebot.Context) error {
		return c.Send(helpText)
	})
	b.Handle("/track", func(c telebot.Context) error {
		return c.Send(cmds.Track(ctx, c.Chat().ID, c.Message().Payload))
	})
	b.Handle("/list", func(c telebot.Context) error {
		return c.Send(cmds.List(ctx, c.Chat().ID))
	})
	b.Handle("/reserve", func(c telebot.Context) error {
		return c.Send(cmds.Reserve(ctx, c.Chat().ID, c.Message().Payload))
	})
}

// Track handles "/track <title> [| author]".
func (h *Commands) Track(ctx context.Context, chatID int64, payload string) string {
	logCtx := h.logger.WithFields(logrus.Fields{"command": "/track", "chat_id": chatID})

	title, author, _ := strings.Cut(payload, "|")
	entry, err := h.subscriptions.TrackTitle(ctx, chatID, title, author)
	if err != nil {
		switch err {
		case app.ErrEmptyTitle:
			return "使い方: /track <タイトル> [| 著者]"
		case app.ErrTitleAlreadyTracked:
			name := strings.TrimSpace(title)
			if entry != nil {
				name = entry.TitleKey
			}
			return fmt.Sprintf("『%s』はすでに登録されています。", name)
		default:
			logCtx.WithError(err).Error("Failed to track title")
			return "登録中にエラーが発生しました。しばらくしてからお試しください。"
		}
	}

	logCtx.WithField("entry_id", entry.ID).Info("Title tracked")
	if entry.Author.Valid {
		return fmt.Sprintf("『%s』（%s）を登録しました。番号: %d", entry.TitleKey, entry.Author.String, entry.ID)
	}
	return fmt.Sprintf("『%s』を登録しました。番号: %d", entry.TitleKey, entry.ID)
}

// List handles "/list".
func (h *Commands) List(ctx context.Context, chatID int64) string {
	entries, err := h.subscriptions.ListTitles(ctx, chatID)
	if err != nil {
		h.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to list titles")
		return "一覧の取得中にエラーが発生しました。"
	}
	if len(entries) == 0 {
		return "登録中の作品はありません。/track で登録できます。"
	}

	var b strings.Builder
	b.WriteString("登録中の作品\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%d. %s", e.ID, e.TitleKey)
		if e.Author.Valid {
			fmt.Fprintf(&b, "（%s）", e.Author.String)
		}
		if e.LastSalesDate.Valid {
			fmt.Fprintf(&b, " 最新: %s", formatDate(e.LastSalesDate))
		}
		if e.IsReserved {
			b.WriteString(" [予約済]")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Reserve handles "/reserve <entry id>".
func (h *Commands) Reserve(ctx context.Context, chatID int64, payload string) string {
	logCtx := h.logger.WithFields(logrus.Fields{"command": "/reserve", "chat_id": chatID})

	entryID, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil {
		return "使い方: /reserve <番号>（番号は /list で確認できます）"
	}

	entry, err := h.subscriptions.MarkReserved(ctx, chatID, entryID)
	if err != nil {
		switch err {
		case idb.ErrEntryNotFound, app.ErrEntryNotOwned:
			return fmt.Sprintf("番号 %d の作品は見つかりません。", entryID)
		case app.ErrEntryAlreadyReserved:
			return fmt.Sprintf("『%s』はすでに予約済みです。", entry.TitleKey)
		default:
			logCtx.WithError(err).Error("Failed to mark entry as reserved")
			return "更新中にエラーが発生しました。"
		}
	}
	logCtx.WithField("entry_id", entry.ID).Info("Entry marked as reserved")
	return fmt.Sprintf("『%s』を予約済みにしました。", entry.TitleKey)
}
