// internal/infra/telegram/messages.go
package telegram

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"release_notification_bot/internal/domain/messaging"
	"release_notification_bot/internal/domain/release"
)

const amazonSearchURL = "https://www.amazon.co.jp/s"

// Renderer turns notices into plain-text chat messages.
type Renderer struct {
	amazonTrackingID string
}

func NewRenderer(amazonTrackingID string) *Renderer {
	return &Renderer{amazonTrackingID: strings.TrimSpace(amazonTrackingID)}
}

// Render returns one message for a single notice and a grouped digest for several.
func (r *Renderer) Render(notices []messaging.Notice) string {
	if len(notices) == 1 {
		return r.renderOne(notices[0])
	}
	var b strings.Builder
	b.WriteString("【発売カウントダウン】\n")
	for _, n := range notices {
		b.WriteString("・")
		b.WriteString(r.summaryLine(n))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Renderer) renderOne(n messaging.Notice) string {
	c := n.Event.Candidate
	var b strings.Builder
	switch n.Event.Kind {
	case release.EventNewRelease:
		b.WriteString("【新刊情報】\n")
	case release.EventMetadataUpdated:
		b.WriteString("【発売日変更】\n")
	case release.EventCountdownReminder:
		b.WriteString("【発売カウントダウン】\n")
		b.WriteString(r.summaryLine(n))
		if c != nil {
			r.writeLinks(&b, c)
		}
		return b.String()
	default:
		return fmt.Sprintf("『%s』の情報が更新されました。", n.TitleKey)
	}

	if c == nil {
		fmt.Fprintf(&b, "『%s』", n.TitleKey)
		return b.String()
	}
	fmt.Fprintf(&b, "『%s』\n", c.TitleText)
	if c.AuthorText != "" {
		fmt.Fprintf(&b, "著：%s\n", c.AuthorText)
	}
	if n.Event.Kind == release.EventMetadataUpdated {
		fmt.Fprintf(&b, "発売日：%s → %s\n", formatDate(n.Event.OldSalesDate), formatDate(n.Event.NewSalesDate))
	} else {
		fmt.Fprintf(&b, "発売日：%s\n", formatDate(c.SalesDate))
	}
	r.writeLinks(&b, c)
	return b.String()
}

func (r *Renderer) summaryLine(n messaging.Notice) string {
	title := n.TitleKey
	date := sql.NullTime{}
	if c := n.Event.Candidate; c != nil {
		title = c.TitleText
		date = c.SalesDate
	}
	if n.Event.DaysLeft == 0 {
		return fmt.Sprintf("『%s』本日発売（%s）", title, formatDate(date))
	}
	return fmt.Sprintf("『%s』発売まであと%d日（%s）", title, n.Event.DaysLeft, formatDate(date))
}

func (r *Renderer) writeLinks(b *strings.Builder, c *release.Candidate) {
	if link := r.AmazonLink(c.ISBN); link != "" {
		fmt.Fprintf(b, "\n▼Amazonで購入・予約\n%s", link)
	}
	if c.DetailRef != "" {
		fmt.Fprintf(b, "\n▼楽天ブックス\n%s", c.DetailRef)
	}
}

// AmazonLink builds a search link for the ISBN, tagged with the tracking ID when set.
func (r *Renderer) AmazonLink(isbn string) string {
	if isbn == "" {
		return ""
	}
	q := url.Values{}
	q.Set("k", isbn)
	if r.amazonTrackingID != "" {
		q.Set("tag", r.amazonTrackingID)
	}
	return amazonSearchURL + "?" + q.Encode()
}

func formatDate(d sql.NullTime) string {
	if !d.Valid {
		return "未定"
	}
	return d.Time.Format("2006年01月02日")
}
