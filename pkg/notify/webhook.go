package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Webhook posts the report to a ServerChan-style endpoint as
// {"title": ..., "desp": ...}.
type Webhook struct {
	client *resty.Client
	url    string
}

type webhookPayload struct {
	Title string `json:"title"`
	Desp  string `json:"desp"`
}

func NewWebhook(url string) *Webhook {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)

	return &Webhook{client: client, url: url}
}

func (w *Webhook) Send(ctx context.Context, title, body string) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(webhookPayload{Title: title, Desp: body}).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook 请求失败: %w", err)
	}

	if resp.IsError() {
		return fmt.Errorf("webhook 返回错误状态: %d", resp.StatusCode())
	}

	return nil
}
