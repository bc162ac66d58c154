// Package notify pushes trade alerts to Telegram.
package notify

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Notifier sends alert messages to a single chat. A nil Notifier is a
// valid no-op, so callers never need to guard their sends.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewNotifier creates a notifier, or (nil, nil) when token/chatID are
// unset — alerts are optional.
func NewNotifier(token string, chatID int64) (*Notifier, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: create bot: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram alerts enabled")
	return &Notifier{api: api, chatID: chatID}, nil
}

// Startup announces the bot's configuration at launch.
func (n *Notifier) Startup(assets []string, threshold decimal.Decimal, dryRun bool) {
	mode := "LIVE"
	if dryRun {
		mode = "DRY RUN"
	}
	n.send(fmt.Sprintf("🎯 Up/Down arbitrage bot online\nAssets: %s\nThreshold: %s\nMode: %s",
		strings.ToUpper(strings.Join(assets, ", ")), threshold.StringFixed(3), mode))
}

// ArbExecuted reports a completed paired trade.
func (n *Notifier) ArbExecuted(asset string, yesFilled, noFilled, profit decimal.Decimal) {
	n.send(fmt.Sprintf("✅ %s arbitrage filled\nYES %s | NO %s\nProfit: $%s",
		strings.ToUpper(asset), yesFilled.StringFixed(2), noFilled.StringFixed(2), profit.StringFixed(2)))
}

// UnmatchedExposure warns that the two legs filled by different sizes.
func (n *Notifier) UnmatchedExposure(asset, side string, gap decimal.Decimal) {
	n.send(fmt.Sprintf("⚠️ %s unmatched exposure\n%s side over-filled by %s contracts",
		strings.ToUpper(asset), side, gap.StringFixed(2)))
}

func (n *Notifier) send(text string) {
	if n == nil {
		return
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.api.Send(msg); err != nil {
		log.Warn().Err(err).Msg("Failed to send Telegram alert")
	}
}
