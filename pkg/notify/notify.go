// Package notify delivers the final run report. The interface mirrors the
// classic notify collaborator contract: a single Send(title, body), and a
// run must never fail because a channel is missing or broken.
package notify

import (
	"context"
	"log"

	"rainyun-autosign/internal/config"
)

type Notifier interface {
	Send(ctx context.Context, title, body string) error
}

// Nop is the default when no channel is configured.
type Nop struct{}

func (Nop) Send(ctx context.Context, title, body string) error {
	log.Printf("📭 未配置通知渠道，跳过发送: %s", title)
	return nil
}

// Multi fans a message out to every configured channel. One channel
// failing does not stop the others.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, body string) error {
	var lastErr error
	for _, n := range m {
		if err := n.Send(ctx, title, body); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// FromConfig builds the notifier stack for the configured channels,
// falling back to Nop when nothing is set.
func FromConfig(cfg config.NotifyConfig) Notifier {
	var channels Multi

	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		tg, err := NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			log.Printf("⚠️ Telegram 通知初始化失败: %v", err)
		} else {
			channels = append(channels, tg)
		}
	}

	if cfg.WebhookURL != "" {
		channels = append(channels, NewWebhook(cfg.WebhookURL))
	}

	if len(channels) == 0 {
		return Nop{}
	}
	return channels
}

// Send dispatches through the notifier and guarantees it can never panic
// or abort the run; any failure is downgraded to a log line.
func Send(ctx context.Context, n Notifier, title, body string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️ 发送通知时发生 panic: %v", r)
		}
	}()

	if n == nil {
		n = Nop{}
	}

	if err := n.Send(ctx, title, body); err != nil {
		log.Printf("⚠️ 发送通知失败 (%s): %v", title, err)
	}
}
