// Package notify sends a Telegram summary of the best opportunities after
// a run.
package notify

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/auction-bot/internal/item"
	"github.com/raine/auction-bot/internal/report"
	"github.com/rs/zerolog/log"
)

// BotSender abstracts the Telegram bot API for sending messages.
type BotSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Notifier struct {
	bot    BotSender
	chatID int64
	topN   int
}

func New(bot BotSender, chatID int64, topN int) *Notifier {
	return &Notifier{bot: bot, chatID: chatID, topN: topN}
}

// NewTelegram connects to the bot API with token.
func NewTelegram(token string, chatID int64, topN int) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	log.Info().Str("bot", api.Self.UserName).Msg("telegram notifications enabled")
	return New(api, chatID, topN), nil
}

// Send posts a header message followed by one message per top opportunity
// with a positive profit. It returns the number of opportunity messages
// sent.
func (n *Notifier) Send(auctionURL string, items []item.Item) (int, error) {
	rows, skipped := report.BuildRows(items)

	var top []report.Row
	for _, r := range rows {
		if len(top) >= n.topN {
			break
		}
		if r.Profit > 0 {
			top = append(top, r)
		}
	}

	header := fmt.Sprintf("📊 *Auction report*\n%s\n\n%d items priced, %d skipped, %d profitable shown",
		escapeMarkdown(auctionURL), len(rows), skipped, len(top))
	msg := tgbotapi.NewMessage(n.chatID, header)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.bot.Send(msg); err != nil {
		return 0, fmt.Errorf("failed to send summary: %w", err)
	}

	sent := 0
	for i, r := range top {
		if err := n.sendRow(i+1, r); err != nil {
			log.Error().Err(err).Str("lot", r.LotNumber).Msg("failed to send opportunity")
			continue
		}
		sent++
	}
	log.Info().Int("sent", sent).Int64("chatID", n.chatID).Msg("telegram summary sent")
	return sent, nil
}

func (n *Notifier) sendRow(rank int, r report.Row) error {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*%d. %s*\n", rank, escapeMarkdown(item.StripLotPrefix(r.Description))))
	if r.LotNumber != "" {
		sb.WriteString(fmt.Sprintf("🏷 %s\n", escapeMarkdown(r.LotNumber)))
	}
	sb.WriteString(fmt.Sprintf("💰 Bid $%.2f, market $%.2f\n", r.CurrentBid, r.MarketPrice))
	sb.WriteString(fmt.Sprintf("📈 Profit $%.2f (%.0f%%)\n", r.Profit, r.Margin))
	if r.TimeRemaining != "" {
		sb.WriteString(fmt.Sprintf("⏱ %s\n", escapeMarkdown(r.TimeRemaining)))
	}

	msg := tgbotapi.NewMessage(n.chatID, sb.String())
	msg.ParseMode = tgbotapi.ModeMarkdown
	if r.ItemURL != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("Open lot", r.ItemURL),
			),
		)
	}
	_, err := n.bot.Send(msg)
	return err
}

// escapeMarkdown escapes special characters for Telegram Markdown V1.
func escapeMarkdown(text string) string {
	text = strings.ReplaceAll(text, "*", "\\*")
	text = strings.ReplaceAll(text, "_", "\\_")
	text = strings.ReplaceAll(text, "`", "\\`")
	text = strings.ReplaceAll(text, "[", "\\[")
	return text
}
