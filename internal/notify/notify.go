package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Trade summarises a submitted order.
type Trade struct {
	RequestID string
	Status    string
	Symbol    string
	Side      string
	Size      string
	SizeField string
	Rejected  bool
}

// Notifier reports submitted orders somewhere a human will see them.
type Notifier interface {
	Notify(ctx context.Context, trade Trade) error
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Notify(context.Context, Trade) error { return nil }

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts trade notifications to one chat.
type Telegram struct {
	bot    sender
	chatID int64
	logger zerolog.Logger
}

// NewTelegram connects to the Bot API with token.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("initializing telegram bot: %w", err)
	}
	return newTelegram(bot, chatID), nil
}

func newTelegram(bot sender, chatID int64) *Telegram {
	return &Telegram{
		bot:    bot,
		chatID: chatID,
		logger: log.With().Str("component", "telegram_notifier").Logger(),
	}
}

// Notify sends trade as a Markdown message.
func (t *Telegram) Notify(ctx context.Context, trade Trade) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, FormatTrade(trade))
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Error().Err(err).Int64("chat_id", t.chatID).Msg("Failed to send trade notification")
		return err
	}
	return nil
}

// FormatTrade renders trade for a chat message.
func FormatTrade(trade Trade) string {
	var sb strings.Builder
	if trade.Rejected {
		sb.WriteString("⚠️ *Order rejected by exchange*\n")
	} else {
		sb.WriteString("✅ *" + trade.Status + "*\n")
	}
	fmt.Fprintf(&sb, "%s %s\n", trade.Side, trade.Symbol)
	fmt.Fprintf(&sb, "%s: `%s`\n", trade.SizeField, trade.Size)
	if trade.RequestID != "" {
		fmt.Fprintf(&sb, "request: `%s`", trade.RequestID)
	}
	return sb.String()
}
