package executor

import (
	"context"
	"errors"
	"testing"

	"rainyun-autosign/internal/config"
	"rainyun-autosign/internal/models"
	"rainyun-autosign/pkg/notify"
)

func testConfig() *config.Config {
	return &config.Config{
		Rainyun: config.RainyunConfig{
			User:          "tester@example.com",
			Pass:          "secret",
			LoginURL:      "https://app.rainyun.com/auth/login",
			RewardURL:     "https://app.rainyun.com/account/reward/earn",
			SuccessMarker: "dashboard",
		},
		Browser: config.BrowserConfig{WaitTimeout: 1},
		Captcha: config.CaptchaConfig{
			BgNaturalWidth:  340,
			SlideCorrection: 30,
			MaxAttempts:     5,
			VerifyWaitSec:   3,
		},
		Login:  config.LoginConfig{MaxRetries: 3, BackoffStepSec: 2},
		Reward: config.RewardConfig{MaxRetries: 3, SettleDelay: 3},
	}
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	e := NewExecutor(testConfig(), notify.Nop{}, nil)
	e.mutex.Lock()
	e.running = true
	e.currentRunID = "busy-run"
	e.mutex.Unlock()

	result, err := e.Run(context.Background(), models.TriggerAPI)
	if !errors.Is(err, ErrRunActive) {
		t.Fatalf("Run() error = %v, want ErrRunActive", err)
	}
	if result != nil {
		t.Errorf("Run() result = %v, want nil", result)
	}
	if got := e.CurrentRunID(); got != "busy-run" {
		t.Errorf("CurrentRunID() = %q, 被拒绝的运行不应覆盖当前运行", got)
	}
}

func TestRunValidatesConfigBeforeBrowser(t *testing.T) {
	cfg := testConfig()
	cfg.Rainyun.User = ""
	e := NewExecutor(cfg, notify.Nop{}, nil)

	result, err := e.Run(context.Background(), models.TriggerCLI)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Report.Title != TitleConfigError {
		t.Errorf("Title = %q, want %q", result.Report.Title, TitleConfigError)
	}
	if result.Report.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", result.Report.ExitCode)
	}
	if result.Report.Status != models.StatusFailed {
		t.Errorf("Status = %q, want %q", result.Report.Status, models.StatusFailed)
	}
}

// panicOnceSink 在首次 Publish 时 panic，模拟 chromedp 在运行中途抛出的
// 致命异常。
type panicOnceSink struct {
	fired bool
}

func (s *panicOnceSink) Publish(StageEvent) {
	if !s.fired {
		s.fired = true
		panic("连接已断开")
	}
}

func TestRunRecoversPanicIntoReport(t *testing.T) {
	e := NewExecutor(testConfig(), notify.Nop{}, &panicOnceSink{})

	result, err := e.Run(context.Background(), models.TriggerCLI)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result == nil {
		t.Fatal("Run() 在 panic 恢复后返回了 nil result")
	}
	if result.Report == (Report{}) {
		t.Fatal("Run() 在 panic 恢复后返回的 result 缺少 Report")
	}
	if result.Report.Title != TitleRunPanic {
		t.Errorf("Title = %q, want %q", result.Report.Title, TitleRunPanic)
	}
	if result.Report.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", result.Report.ExitCode)
	}
	if result.Report.Status != models.StatusFailed {
		t.Errorf("Status = %q, want %q", result.Report.Status, models.StatusFailed)
	}
	if e.IsRunning() {
		t.Error("panic 恢复后运行标志未清除")
	}
}

type sinkRecorder struct {
	events []StageEvent
}

func (s *sinkRecorder) Publish(ev StageEvent) {
	s.events = append(s.events, ev)
}

func TestRunPublishesStartAndFinish(t *testing.T) {
	cfg := testConfig()
	cfg.Rainyun.Pass = "" // 让运行在进入浏览器前结束
	sink := &sinkRecorder{}
	e := NewExecutor(cfg, notify.Nop{}, sink)

	if _, err := e.Run(context.Background(), models.TriggerCron); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(sink.events) < 2 {
		t.Fatalf("发布了 %d 个事件，至少期望 start 和 finish", len(sink.events))
	}
	if sink.events[0].Stage != "start" {
		t.Errorf("首个事件 Stage = %q, want %q", sink.events[0].Stage, "start")
	}
	last := sink.events[len(sink.events)-1]
	if last.Stage != "finish" {
		t.Errorf("末尾事件 Stage = %q, want %q", last.Stage, "finish")
	}
	if last.RunID == "" || last.RunID != sink.events[0].RunID {
		t.Errorf("事件的 RunID 不一致: %q vs %q", sink.events[0].RunID, last.RunID)
	}
}
