// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rpillai/etfsentinel/internal/models"
	"github.com/rpillai/etfsentinel/internal/monitor"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	loc            *time.Location
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client. Timestamps in messages are
// rendered in loc (the exchange timezone).
func NewClient(botToken, chatID string, loc *time.Location, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		loc:            loc,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendAlert sends one slab-crossing alert.
func (c *Client) SendAlert(d monitor.Decision) error {
	return c.sendMarkdownV2(FormatAlert(d, time.Now().In(c.loc)))
}

// SendSummary sends the end-of-day digest.
func (c *Client) SendSummary(sum *models.DailySummary) error {
	return c.sendMarkdownV2(FormatSummary(sum, time.Now().In(c.loc)))
}

// SendError sends a cycle-failure notification to the operator channel.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Tracker error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(text)
}

// FormatAlert renders one threshold alert as MarkdownV2.
func FormatAlert(d monitor.Decision, at time.Time) string {
	header := "🚨 *ETF Alert*"
	if d.Snapshot.Category == models.CategoryStock {
		header = "📉 *Stock Alert*"
	}

	var b strings.Builder
	b.WriteString(header + "\n\n")
	fmt.Fprintf(&b, "*%s*\n", escapeMarkdownV2(d.Snapshot.ID))
	fmt.Fprintf(&b, "Change: %s\n", escapeMarkdownV2(d.Snapshot.ChangePercent.StringFixed(2)+"%"))
	if d.Snapshot.Price.IsPositive() {
		fmt.Fprintf(&b, "Price: ₹%s\n", escapeMarkdownV2(d.Snapshot.Price.StringFixed(2)))
	}
	fmt.Fprintf(&b, "Slab: %s\n", escapeMarkdownV2(d.Slab.String()+"%"))
	fmt.Fprintf(&b, "Time: %s", escapeMarkdownV2(at.Format("03:04 PM")))
	return b.String()
}

// FormatSummary renders the end-of-day digest as MarkdownV2. A day with no
// alerts says so explicitly rather than sending an empty report.
func FormatSummary(sum *models.DailySummary, at time.Time) string {
	var b strings.Builder
	b.WriteString("📊 *Daily Summary*\n\n")

	if sum.Clean() {
		b.WriteString("✅ No ETF or stock crossed a slab today\n\n")
	} else {
		if len(sum.ETFBySlab) > 0 {
			b.WriteString("*ETFs that crossed slabs:*\n")
			for _, group := range sum.ETFBySlab {
				fmt.Fprintf(&b, "📉 %s slab:\n", escapeMarkdownV2(group.Slab.String()+"%"))
				for _, item := range group.Items {
					fmt.Fprintf(&b, "  • %s\n", escapeMarkdownV2(item.InstrumentID))
				}
			}
			b.WriteString("\n")
		}
		if len(sum.StockAlerts) > 0 {
			b.WriteString("*Stocks that crossed slabs:*\n")
			for _, item := range sum.StockAlerts {
				fmt.Fprintf(&b, "  • %s \\(%s\\)\n",
					escapeMarkdownV2(item.InstrumentID),
					escapeMarkdownV2(item.Slab.String()+"%"))
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "ETFs tracked: %d\n", sum.ETFsTracked)
	fmt.Fprintf(&b, "Stocks tracked: %d\n", sum.StocksTracked)
	fmt.Fprintf(&b, "Time: %s", escapeMarkdownV2(at.Format("03:04 PM, 02 Jan 2006")))
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
