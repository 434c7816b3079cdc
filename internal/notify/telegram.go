// Package notify delivers operator alerts (fills, stop-losses, kill-switch
// triggers, daily summaries) to Telegram.
package notify

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the subset of *tgbotapi.BotAPI the Notifier depends on,
// defined here so tests can substitute a fake without talking to Telegram.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends alerts to a Telegram chat via the Bot API.
type Notifier struct {
	bot     sender
	chatID  int64
	enabled bool
}

// NewNotifier creates a Notifier backed by a real Telegram bot connection.
// Notifications are enabled only when botToken and chatID are both set.
func NewNotifier(botToken string, chatID int64) (*Notifier, error) {
	if botToken == "" || chatID == 0 {
		return &Notifier{enabled: false}, nil
	}
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("notify: connect bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: chatID, enabled: true}, nil
}

// newTestNotifier wires a fake sender for tests.
func newTestNotifier(s sender, chatID int64) *Notifier {
	return &Notifier{bot: s, chatID: chatID, enabled: true}
}

// Enabled reports whether the notifier is active.
func (n *Notifier) Enabled() bool { return n.enabled }

// Send posts an HTML-formatted message to the configured chat.
func (n *Notifier) Send(ctx context.Context, text string) error {
	if !n.enabled {
		return nil
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := n.bot.Send(msg)
	if err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	return nil
}

// NotifyFill sends a trade fill alert.
func (n *Notifier) NotifyFill(ctx context.Context, marketID, side string, price int, contracts int) error {
	msg := fmt.Sprintf("<b>Fill</b>\nMarket: <code>%s</code>\nSide: %s\nPrice: %d¢\nContracts: %d", marketID, side, price, contracts)
	return n.Send(ctx, msg)
}

// NotifyStopLoss sends a stop-loss trigger alert.
func (n *Notifier) NotifyStopLoss(ctx context.Context, marketID string, realizedPnlCents int64) error {
	msg := fmt.Sprintf("<b>Stop-Loss Triggered</b>\nMarket: <code>%s</code>\nRealized PnL: %d¢", marketID, realizedPnlCents)
	return n.Send(ctx, msg)
}

// NotifyKillSwitch sends a kill-switch trigger alert.
func (n *Notifier) NotifyKillSwitch(ctx context.Context, level, reason, targetID string) error {
	msg := fmt.Sprintf("<b>Kill Switch Triggered</b>\nLevel: %s\nReason: %s\nTarget: <code>%s</code>", level, reason, targetID)
	return n.Send(ctx, msg)
}

// NotifyDailySummary sends a daily performance summary.
func (n *Notifier) NotifyDailySummary(ctx context.Context, netPnlCents int64, trades int, drawdownCents int64) error {
	msg := fmt.Sprintf("<b>Daily Summary</b>\nNet PnL: %d¢\nTrades: %d\nDrawdown: %d¢", netPnlCents, trades, drawdownCents)
	return n.Send(ctx, msg)
}

// NotifyRiskWarning sends a risk-status warning once utilization crosses
// the configured warn threshold.
func (n *Notifier) NotifyRiskWarning(ctx context.Context, dailyLossUtil, drawdownUtil float64) error {
	msg := fmt.Sprintf("<b>Risk Warning</b>\nDaily Loss Utilization: %.0f%%\nDrawdown Utilization: %.0f%%", dailyLossUtil*100, drawdownUtil*100)
	return n.Send(ctx, msg)
}

// NotifyHeartbeat sends a periodic liveness ping, throttled by the caller.
func (n *Notifier) NotifyHeartbeat(ctx context.Context, uptime time.Duration) error {
	return n.Send(ctx, fmt.Sprintf("<b>Heartbeat</b>\nUptime: %s", uptime.Round(time.Second)))
}
