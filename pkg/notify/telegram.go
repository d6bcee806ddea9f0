package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-telegram/bot"
)

// Telegram sends the report as a Telegram message via a bot.
type Telegram struct {
	bot    *bot.Bot
	chatID string
}

func NewTelegram(token, chatID string) (*Telegram, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("创建 Telegram bot 失败: %w", err)
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

func (t *Telegram) Send(ctx context.Context, title, body string) error {
	message := fmt.Sprintf("%s\n\n%s", title, body)

	var lastErr error
	maxRetries := 3
	for attempt := 1; attempt <= maxRetries; attempt++ {
		_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: t.chatID,
			Text:   message,
		})
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt < maxRetries {
			log.Printf("⚠️ Telegram 消息发送失败，重试中 (%d/%d): %v", attempt, maxRetries, err)
			time.Sleep(2 * time.Second)
		}
	}

	return fmt.Errorf("Telegram 消息发送失败: %w", lastErr)
}
