package alert

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/soup8732/aisentinel/pkg/rank"
)

// Telegram sends notifications through a Telegram bot to one chat.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram creates a Telegram notifier. The constructor calls the
// Telegram API to verify the token.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{api: api, chatID: chatID}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, n *Notification) error {
	// The bot API client has no context plumbing; honor cancellation
	// at least before the call.
	if err := ctx.Err(); err != nil {
		return err
	}

	text := fmt.Sprintf("📉 *%s* sentiment is %s\nRating: %d/10 | Perception: %+.2f | Mentions: %d\n%s",
		n.Tool, n.Trend, rank.OutOf10(n.Overall), n.Perception, n.Mentions, n.Summary)

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
