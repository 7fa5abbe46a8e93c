package notify

import (
	"context"
	"fmt"

	"recinto/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// MessageSender is the slice of the Telegram client the notifier needs.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier pushes notifications to the configured admin chats.
// Delivery failures are logged and swallowed; notifications never block
// or fail a booking operation.
type TelegramNotifier struct {
	bot     MessageSender
	chatIDs []int64
	logger  zerolog.Logger
}

func NewTelegramNotifier(bot MessageSender, chatIDs []int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		bot:     bot,
		chatIDs: chatIDs,
		logger:  logger.With().Str("component", "telegram_notifier").Logger(),
	}
}

func (n *TelegramNotifier) Notify(ctx context.Context, note domain.Notification) {
	text := formatNotification(note)
	for _, chatID := range n.chatIDs {
		if ctx.Err() != nil {
			return
		}
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.bot.Send(msg); err != nil {
			n.logger.Warn().
				Err(err).
				Int64("chat_id", chatID).
				Str("code", note.Code).
				Msg("failed to deliver notification")
		}
	}
}

func formatNotification(note domain.Notification) string {
	icon := "ℹ️"
	switch note.Level {
	case "warn":
		icon = "⚠️"
	case "error":
		icon = "❌"
	}
	if note.ReservationID != 0 {
		return fmt.Sprintf("%s [%s] reserva #%d: %s", icon, note.Code, note.ReservationID, note.Text)
	}
	return fmt.Sprintf("%s [%s] %s", icon, note.Code, note.Text)
}
