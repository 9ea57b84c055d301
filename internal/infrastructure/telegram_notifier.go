package infrastructure

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier posts operator alerts to a Telegram chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram token: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// BotName returns the bot's username.
func (t *TelegramNotifier) BotName() string {
	return t.bot.Self.UserName
}

// NotifyNewConversation tells operators a customer opened a conversation.
func (t *TelegramNotifier) NotifyNewConversation(ctx context.Context, contactName, phone, preview string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, FormatNewConversation(contactName, phone, preview))
	_, err := t.bot.Send(msg)
	return err
}

// FormatNewConversation renders the alert text.
func FormatNewConversation(contactName, phone, preview string) string {
	const maxPreview = 200
	if r := []rune(preview); len(r) > maxPreview {
		preview = string(r[:maxPreview]) + "…"
	}
	return fmt.Sprintf("New conversation\n%s (+%s)\n\n%s", contactName, phone, preview)
}
