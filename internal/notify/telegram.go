package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/tonykipkemboi/crewai-jobs/internal/pipeline"
)

// Telegram sends a short run summary to a chat after every run that changed
// something or failed.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

var _ pipeline.Notifier = (*Telegram)(nil)

func NewTelegram(token string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	return newTelegram(token, tgbotapi.APIEndpoint, chatID, logger)
}

func newTelegram(token, endpoint string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID, logger: logger.Named("telegram")}, nil
}

func (t *Telegram) Notify(ctx context.Context, r pipeline.Report) error {
	if !worthTelling(r) {
		t.logger.Debug("nothing to report", zap.String("run_id", r.RunID))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, FormatReport(r))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	return err
}

func worthTelling(r pipeline.Report) bool {
	return r.FatalError != "" || r.New+r.Reactivated+r.WentInactive+r.PublishedOK+r.PublishedFailed > 0
}

// maxFailuresListed keeps the message under Telegram's size limit.
const maxFailuresListed = 10

// FormatReport renders a report as Telegram HTML.
func FormatReport(r pipeline.Report) string {
	var b strings.Builder

	switch r.Outcome() {
	case "failed":
		b.WriteString("❌ <b>Job sync failed</b>\n")
	case "partial":
		b.WriteString("⚠️ <b>Job sync finished with failures</b>\n")
	case "dry_run":
		b.WriteString("🧪 <b>Job sync dry run</b>\n")
	default:
		b.WriteString("✅ <b>Job sync finished</b>\n")
	}

	fmt.Fprintf(&b, "📊 Scraped %d | 🆕 New %d | ♻️ Back %d | 💤 Gone %d\n",
		r.RecordsScraped, r.New, r.Reactivated, r.WentInactive)
	fmt.Fprintf(&b, "📣 Posted %d | Failed %d\n", r.PublishedOK, r.PublishedFailed)
	fmt.Fprintf(&b, "📁 Active %d | Inactive %d\n", r.Active, r.Inactive)

	if r.FatalError != "" {
		fmt.Fprintf(&b, "\n<code>%s</code>\n", html.EscapeString(r.FatalError))
	}

	for i, f := range r.Failures {
		if i == maxFailuresListed {
			fmt.Fprintf(&b, "… and %d more\n", len(r.Failures)-maxFailuresListed)
			break
		}
		fmt.Fprintf(&b, "• %s: %s\n", html.EscapeString(f.Title), html.EscapeString(f.Error))
	}

	fmt.Fprintf(&b, "\n<i>run %s</i>", r.RunID)
	return b.String()
}
