package notify

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"monitor-pricewatch/models"
)

// MaxMessageLength is the Telegram limit for one message
const MaxMessageLength = 4096

// Notifier sends report summaries to a Telegram chat
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    logrus.FieldLogger
}

// NewNotifier authorizes the bot token against the Telegram API
func NewNotifier(token string, chatID int64, log logrus.FieldLogger) (*Notifier, error) {
	return newNotifier(token, tgbotapi.APIEndpoint, http.DefaultClient, chatID, log)
}

func newNotifier(token, endpoint string, client tgbotapi.HTTPClient, chatID int64, log logrus.FieldLogger) (*Notifier, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is not set")
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bot: %w", err)
	}
	log.Infof("Authorized on account %s", bot.Self.UserName)

	return &Notifier{bot: bot, chatID: chatID, log: log}, nil
}

// NotifyReport sends the report summary, split into as many messages as needed
func (n *Notifier) NotifyReport(report *models.Report, topOffenders int, sheetURL string) error {
	text := FormatSummary(report, topOffenders)
	if sheetURL != "" {
		text += "\nView spreadsheet: " + sheetURL + "\n"
	}

	parts := splitMessage(text, MaxMessageLength)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(n.chatID, part)
		msg.DisableWebPagePreview = true
		if _, err := n.bot.Send(msg); err != nil {
			return fmt.Errorf("failed to send message part %d/%d: %w", i+1, len(parts), err)
		}
	}

	n.log.WithField("date", report.Date).Infof("Sent summary to Telegram chat %d (%d messages)", n.chatID, len(parts))
	return nil
}

// NotifyFailure reports a run that stopped before producing a report
func (n *Notifier) NotifyFailure(date string, runErr error) error {
	text := fmt.Sprintf("Price compliance run for %s failed: %v", date, runErr)
	for _, part := range splitMessage(text, MaxMessageLength) {
		if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, part)); err != nil {
			return fmt.Errorf("failed to send failure notice: %w", err)
		}
	}
	return nil
}

// FormatSummary renders the report totals, per-retailer figures and the worst offenders as plain text
func FormatSummary(report *models.Report, topOffenders int) string {
	var sb strings.Builder
	s := report.Summary

	sb.WriteString(fmt.Sprintf("Price compliance for %s\n\n", report.Date))
	sb.WriteString(fmt.Sprintf("Compliance rate: %s%%\n", s.ComplianceRate.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("Products compared: %d\n", s.TotalProducts))
	sb.WriteString(fmt.Sprintf("Offending: %d\n", s.TotalOffendingProducts))
	sb.WriteString(fmt.Sprintf("Deviated: %d\n", s.TotalDeviatedProducts))
	if s.TotalUndetermined > 0 {
		sb.WriteString(fmt.Sprintf("Undetermined: %d\n", s.TotalUndetermined))
	}

	names := make([]string, 0, len(report.Retailers))
	for name := range report.Retailers {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		sb.WriteString("\nBy retailer:\n")
	}
	for _, name := range names {
		rs := report.Retailers[name]
		sb.WriteString(fmt.Sprintf("- %s: %s%% compliant, average deviation %s%%\n",
			name, rs.ComplianceRate.StringFixed(2), rs.AverageDeviation.StringFixed(2)))
	}

	var offenders []models.ReconciledRow
	for _, row := range report.Products {
		if len(offenders) == topOffenders {
			break
		}
		if row.Status == models.StatusNonCompliant || row.Status == models.StatusNeedsAttention {
			offenders = append(offenders, row)
		}
	}
	if len(offenders) > 0 {
		sb.WriteString("\nTop offenders:\n")
	}
	for i, row := range offenders {
		sb.WriteString(fmt.Sprintf("%d. %s at %s: $%s vs $%s (%s%%, %s)\n",
			i+1, row.Product, row.Retailer,
			row.RetailerPrice.Decimal.StringFixed(2), row.ManufacturerPrice.StringFixed(2),
			row.Deviation.Decimal.StringFixed(2), row.Status))
	}

	return sb.String()
}

// splitMessage splits a message into chunks of at most maxLen bytes, preferring line breaks
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	var current strings.Builder

	for _, line := range lines {
		if current.Len()+len(line)+1 > maxLen {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
			// a single line longer than a message is cut on rune boundaries
			for len(line) >= maxLen {
				cut := maxLen
				for cut < len(line) && cut > 0 && !utf8.RuneStart(line[cut]) {
					cut--
				}
				parts = append(parts, line[:cut])
				line = line[cut:]
			}
			if line == "" {
				continue
			}
		}
		current.WriteString(line)
		current.WriteString("\n")
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}
