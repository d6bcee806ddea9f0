package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"rainyun-autosign/internal/config"
	"rainyun-autosign/internal/models"
	"rainyun-autosign/pkg/captcha"
	"rainyun-autosign/pkg/chrome"
	"rainyun-autosign/pkg/notify"
	"rainyun-autosign/pkg/rainyun"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/stealth"
	"github.com/google/uuid"
)

// ErrRunActive is returned when a sign-in run is requested while one is
// already holding the browser.
var ErrRunActive = errors.New("已有签到任务正在运行")

// StageEvent is a progress notification published while a run advances
// through its stages; the daemon streams these over WebSocket.
type StageEvent struct {
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type EventSink interface {
	Publish(ev StageEvent)
}

// Executor drives the whole sign-in flow: browser session, login,
// captcha, reward claim, balance scrape. One run at a time.
type Executor struct {
	cfg      *config.Config
	ocr      *captcha.OCRClient
	notifier notify.Notifier
	sink     EventSink
	chrome   *chrome.Manager

	mutex        sync.Mutex
	running      bool
	currentRunID string
}

// RunResult is everything a finished run produced.
type RunResult struct {
	RunID           string
	Trigger         string
	Report          Report
	Points          int
	Currency        string
	Partial         bool
	LoginAttempts   int
	CaptchaAttempts int
	StartTime       time.Time
	Duration        time.Duration
}

// Status maps the run onto a record status; a run that claimed nothing
// but still scraped a balance counts as partial.
func (r *RunResult) Status() string {
	if r.Partial && r.Report.Status == models.StatusSuccess {
		return models.StatusPartial
	}
	return r.Report.Status
}

var Global *Executor

func InitExecutor(cfg *config.Config, notifier notify.Notifier, sink EventSink) {
	Global = NewExecutor(cfg, notifier, sink)
}

func NewExecutor(cfg *config.Config, notifier notify.Notifier, sink EventSink) *Executor {
	return &Executor{
		cfg:      cfg,
		ocr:      captcha.NewOCRClient(cfg.Captcha.OCRServiceURL),
		notifier: notifier,
		sink:     sink,
		chrome:   chrome.GlobalManager,
	}
}

func (e *Executor) Config() *config.Config {
	return e.cfg
}

func (e *Executor) IsRunning() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.running
}

func (e *Executor) CurrentRunID() string {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.currentRunID
}

// Run executes one complete sign-in. It only fails with ErrRunActive;
// every in-run failure is folded into the returned report instead.
func (e *Executor) Run(ctx context.Context, trigger string) (*RunResult, error) {
	return e.RunWithID(ctx, uuid.New().String(), trigger)
}

// RunWithID is Run with a caller-chosen run ID. The returns are named
// so the recover defer hands the panic report back to the caller
// instead of a nil result.
func (e *Executor) RunWithID(ctx context.Context, runID, trigger string) (result *RunResult, err error) {
	e.mutex.Lock()
	if e.running {
		e.mutex.Unlock()
		return nil, ErrRunActive
	}
	e.running = true
	e.currentRunID = runID
	e.mutex.Unlock()

	defer func() {
		e.mutex.Lock()
		e.running = false
		e.currentRunID = ""
		e.mutex.Unlock()
	}()

	result = &RunResult{
		RunID:     runID,
		Trigger:   trigger,
		StartTime: time.Now(),
	}
	defer func() {
		result.Duration = time.Since(result.StartTime)
	}()

	// Browser crashes and protocol hiccups surface as panics from
	// chromedp; a panic must still end in a teardown plus a report.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("🚨 签到执行过程中发生 panic: %v", r)
			result.Report = fatalReport(TitleRunPanic, fmt.Sprintf("脚本运行期间发生致命异常: %v", r))
			e.finish(result)
		}
	}()

	e.publish(runID, "start", "开始执行雨云签到")

	if err := e.cfg.ValidateSignIn(); err != nil {
		result.Report = fatalReport(TitleConfigError, err.Error())
		e.finish(result)
		return result, nil
	}

	if e.cfg.Rainyun.Precheck {
		if err := e.precheckCredentials(ctx); err != nil {
			result.Report = fatalReport(TitleLoginFailed, err.Error())
			e.finish(result)
			return result, nil
		}
	}

	sess, err := e.acquireSession(ctx, runID)
	if err != nil {
		result.Report = fatalReport(TitleRunPanic, fmt.Sprintf("浏览器会话初始化失败: %v", err))
		e.finish(result)
		return result, nil
	}
	defer sess.release()

	// Login stage: bounded retry, exhaustion is fatal.
	e.publish(runID, "login", "发起登录请求")
	if err := e.login(sess.ctx, result); err != nil {
		log.Printf("❌ %v", err)
		e.failureScreenshot(sess.ctx, runID, "login")
		result.Report = fatalReport(TitleLoginFailed,
			"登录失败！未能进入仪表盘页面，可能是账号密码错误或验证码验证失败。")
		e.finish(result)
		return result, nil
	}

	// Post-login captcha: failure here is fatal, unlike the reward one.
	e.publish(runID, "captcha", "检查登录后是否触发验证码")
	if triggered, err := e.handleCaptchaIfPresent(sess.ctx, result); err != nil {
		log.Printf("❌ 处理登录后验证码时发生错误: %v", err)
		e.failureScreenshot(sess.ctx, runID, "captcha")
		result.Report = fatalReport(TitleLoginCaptcha, fmt.Sprintf("处理登录后验证码时发生错误: %v", err))
		e.finish(result)
		return result, nil
	} else if triggered {
		log.Println("✅ 登录验证码处理完成")
	}

	time.Sleep(2 * time.Second) // let the dashboard settle after login

	var currentURL string
	chromedp.Run(sess.ctx, chromedp.Location(&currentURL))
	if !strings.Contains(currentURL, e.cfg.Rainyun.SuccessMarker) {
		result.Report = fatalReport(TitleLoginFailed,
			"登录失败！未能进入仪表盘页面，可能是账号密码错误或验证码验证失败。")
		e.finish(result)
		return result, nil
	}
	log.Println("🎉 登录成功并进入仪表盘！")

	// Reward stage: degrades but never aborts the run.
	e.publish(runID, "reward", "正在转到赚取积分页")
	e.reward(sess.ctx, result)

	e.finish(result)
	return result, nil
}

// finish sends the terminal report; delivery problems never escalate.
func (e *Executor) finish(result *RunResult) {
	e.publish(result.RunID, "finish", result.Report.Title)
	notify.Send(context.Background(), e.notifier, result.Report.Title, result.Report.Body)
}

func (e *Executor) publish(runID, stage, message string) {
	log.Printf("[%s] %s", stage, message)
	if e.sink != nil {
		e.sink.Publish(StageEvent{
			RunID:     runID,
			Stage:     stage,
			Message:   message,
			Timestamp: time.Now(),
		})
	}
}

// precheckCredentials asks the account API whether the pair can log in
// at all, so a wrong password fails in seconds instead of a full
// browser run.
func (e *Executor) precheckCredentials(ctx context.Context) error {
	client := rainyun.NewClient(e.cfg.Rainyun.APIBaseURL)

	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result, err := client.VerifyCredentials(probeCtx, e.cfg.Rainyun.User, e.cfg.Rainyun.Pass)
	if err != nil {
		// The probe is best-effort; an unreachable API must not block
		// the browser flow.
		log.Printf("⚠️ 凭据预检请求失败，继续执行浏览器流程: %v", err)
		return nil
	}
	if !result.Valid() {
		return fmt.Errorf("凭据预检未通过: %s (code=%d)", result.Message, result.Code)
	}

	log.Println("✅ 凭据预检通过")
	return nil
}

// session owns the chromedp contexts attached to one run's Chrome
// process. release tears the contexts down before stopping the process.
type session struct {
	ctx     context.Context
	cancels []context.CancelFunc
	runID   string
	manager *chrome.Manager
}

func (s *session) release() {
	for i := len(s.cancels) - 1; i >= 0; i-- {
		s.cancels[i]()
	}
	s.manager.Stop(s.runID)
}

// acquireSession launches Chrome, attaches to its initial page target
// over the remote debugging port and injects the stealth script.
func (e *Executor) acquireSession(ctx context.Context, runID string) (*session, error) {
	chromePath, err := chrome.FindChrome(e.cfg.Browser.ChromePath)
	if err != nil {
		return nil, err
	}

	profile := chrome.LaunchProfile{
		Headless:      e.cfg.Browser.Headless,
		DisableImages: e.cfg.Browser.DisableImages,
		WindowWidth:   e.cfg.Browser.WindowWidth,
		WindowHeight:  e.cfg.Browser.WindowHeight,
	}

	port, err := e.chrome.Start(runID, chromePath, profile)
	if err != nil {
		return nil, err
	}

	sess := &session{runID: runID, manager: e.chrome}
	ok := false
	defer func() {
		if !ok {
			sess.release()
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	sess.cancels = append(sess.cancels, cancel)

	debugURL := fmt.Sprintf("http://localhost:%d", port)
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(runCtx, debugURL)
	sess.cancels = append(sess.cancels, cancelAlloc)

	tabID, err := firstPageTarget(port)
	if err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithTargetID(target.ID(tabID)),
		chromedp.WithLogf(func(string, ...interface{}) {}),
	)
	sess.cancels = append(sess.cancels, cancelTab)
	sess.ctx = tabCtx

	// Connection smoke test before any stage trusts the session.
	var title string
	if err := chromedp.Run(tabCtx, chromedp.Title(&title)); err != nil {
		return nil, fmt.Errorf("连接 Chrome 标签页失败: %w", err)
	}

	e.injectStealth(tabCtx)

	ok = true
	return sess, nil
}

// firstPageTarget lists the DevTools targets over HTTP and returns the
// first page tab's target ID.
func firstPageTarget(port int) (string, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/json", port))
	if err != nil {
		return "", fmt.Errorf("获取 Chrome 标签页列表失败: %w", err)
	}
	defer resp.Body.Close()

	var tabs []struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tabs); err != nil {
		return "", fmt.Errorf("解析 Chrome 标签页列表失败: %w", err)
	}

	for _, tab := range tabs {
		if tab.Type == "page" {
			return tab.ID, nil
		}
	}

	return "", fmt.Errorf("未找到可连接的页面标签页")
}

// injectStealth arranges for the fingerprint-evasion script to run in
// every new document. A missing or broken script only logs a warning.
func (e *Executor) injectStealth(ctx context.Context) {
	source := stealth.JS
	if path := e.cfg.Browser.StealthJSPath; path != "" {
		if data, err := os.ReadFile(path); err == nil {
			source = string(data)
			log.Printf("已加载 %s 绕过浏览器指纹检测", path)
		}
	}

	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(source).Do(ctx)
		return err
	}))
	if err != nil {
		log.Printf("⚠️ 注入反检测脚本失败，可能增加被检测的风险: %v", err)
	}
}

// failureScreenshot captures the page for post-mortems when enabled.
func (e *Executor) failureScreenshot(ctx context.Context, runID, stage string) {
	if !e.cfg.Browser.ScreenshotOnFail {
		return
	}

	var buf []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		log.Printf("⚠️ 截图失败: %v", err)
		return
	}

	dir := e.cfg.Browser.ScreenshotDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("⚠️ 创建截图目录失败: %v", err)
		return
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", stage, runID))
	if err := os.WriteFile(path, buf, 0644); err != nil {
		log.Printf("⚠️ 保存截图失败: %v", err)
		return
	}
	log.Printf("📸 已保存失败截图: %s", path)
}

func (e *Executor) waitTimeout() time.Duration {
	return time.Duration(e.cfg.Browser.WaitTimeout) * time.Second
}

// runWithWait bounds a chromedp action chain by the explicit-wait
// timeout without cancelling the underlying tab context.
func runWithWait(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return chromedp.Run(waitCtx, actions...)
}

var errWaitTimeout = errors.New("等待条件超时")

// waitURLContains polls the location until it contains marker or the
// timeout elapses; the last observed URL is returned either way.
func waitURLContains(ctx context.Context, timeout time.Duration, marker string) (string, error) {
	deadline := time.Now().Add(timeout)
	var url string
	for {
		if err := chromedp.Run(ctx, chromedp.Location(&url)); err != nil {
			return url, err
		}
		if strings.Contains(url, marker) {
			return url, nil
		}
		if time.Now().After(deadline) {
			return url, errWaitTimeout
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// randomPause sleeps a uniformly random duration in [min, max]; used
// wherever the flow imitates human pacing.
func randomPause(min, max time.Duration) {
	if max <= min {
		time.Sleep(min)
		return
	}
	time.Sleep(min + time.Duration(rand.Int63n(int64(max-min))))
}

// retryWithBackoff runs try up to maxAttempts times. After every
// failed attempt except the last, wait is invoked with backoff(attempt)
// so the caller can sleep and reset state before the next round. The
// final error is returned once the budget is exhausted.
func retryWithBackoff(maxAttempts int, backoff func(attempt int) time.Duration, wait func(time.Duration), try func(attempt int) error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = try(attempt); err == nil {
			return nil
		}
		if attempt < maxAttempts {
			wait(backoff(attempt))
		}
	}
	return err
}
