package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"rainyun-autosign/internal/config"
)

type fakeNotifier struct {
	sent []string
	err  error
}

func (f *fakeNotifier) Send(ctx context.Context, title, body string) error {
	f.sent = append(f.sent, title)
	return f.err
}

func TestMultiFansOutToAllChannels(t *testing.T) {
	a := &fakeNotifier{}
	b := &fakeNotifier{err: errors.New("渠道故障")}
	c := &fakeNotifier{}

	err := Multi{a, b, c}.Send(context.Background(), "标题", "内容")
	if err == nil {
		t.Error("Multi 应上报最后一个渠道错误")
	}

	for i, f := range []*fakeNotifier{a, b, c} {
		if len(f.sent) != 1 {
			t.Errorf("渠道 %d 收到 %d 条消息，期望 1 条", i, len(f.sent))
		}
	}
}

func TestFromConfigDefaultsToNop(t *testing.T) {
	n := FromConfig(config.NotifyConfig{})
	if _, ok := n.(Nop); !ok {
		t.Errorf("未配置渠道时应返回 Nop，实际 %T", n)
	}
}

func TestFromConfigWebhookOnly(t *testing.T) {
	n := FromConfig(config.NotifyConfig{WebhookURL: "https://example.com/push"})
	multi, ok := n.(Multi)
	if !ok {
		t.Fatalf("应返回 Multi，实际 %T", n)
	}
	if len(multi) != 1 {
		t.Errorf("渠道数量 = %d, want 1", len(multi))
	}
}

type panicNotifier struct{}

func (panicNotifier) Send(ctx context.Context, title, body string) error {
	panic("通知渠道内部崩溃")
}

func TestSendSwallowsPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Send 不应向外传播 panic: %v", r)
		}
	}()
	Send(context.Background(), panicNotifier{}, "标题", "内容")
}

func TestSendNilNotifier(t *testing.T) {
	// nil 通知器退化为 Nop，而不是空指针崩溃
	Send(context.Background(), nil, "标题", "内容")
}

func TestWebhookSend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		if payload["title"] != "雨云签到成功" {
			t.Errorf("title = %q", payload["title"])
		}
		if payload["desp"] != "当前剩余积分: 4000 | 约为 2.00 元" {
			t.Errorf("desp = %q", payload["desp"])
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w := NewWebhook(server.URL)
	if err := w.Send(context.Background(), "雨云签到成功", "当前剩余积分: 4000 | 约为 2.00 元"); err != nil {
		t.Errorf("Send() error = %v", err)
	}
}

func TestWebhookSendErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	w := NewWebhook(server.URL)
	if err := w.Send(context.Background(), "t", "b"); err == nil {
		t.Error("4xx 响应应返回错误")
	}
}
