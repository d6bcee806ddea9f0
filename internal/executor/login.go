package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/chromedp/chromedp"
)

// ErrLoginExhausted means every login attempt within the retry budget
// failed; the run cannot continue without a dashboard session.
var ErrLoginExhausted = errors.New("登录失败，已达到最大重试次数")

const (
	loginFieldSelector    = `input[name="login-field"]`
	loginPasswordSelector = `input[name="login-password"]`
	loginSubmitSelector   = `button[type="submit"]`
)

// loginBackoff grows linearly with the number of failed attempts:
// stepSec seconds after the first failure, 2*stepSec after the second.
func loginBackoff(failedAttempt, stepSec int) time.Duration {
	return time.Duration(failedAttempt*stepSec) * time.Second
}

// login drives the bounded login loop: fill the form, submit, wait for
// the dashboard redirect, back off and reload on failure.
func (e *Executor) login(ctx context.Context, result *RunResult) error {
	log.Printf("🌐 正在打开登录页面: %s", e.cfg.Rainyun.LoginURL)
	if err := runWithWait(ctx, e.waitTimeout(), chromedp.Navigate(e.cfg.Rainyun.LoginURL)); err != nil {
		return fmt.Errorf("打开登录页面失败: %w", err)
	}

	maxRetries := e.cfg.Login.MaxRetries

	err := retryWithBackoff(maxRetries,
		func(attempt int) time.Duration {
			return loginBackoff(attempt, e.cfg.Login.BackoffStepSec)
		},
		func(backoff time.Duration) {
			log.Printf("⏳ %v 后刷新页面重试", backoff)
			time.Sleep(backoff)
			if err := runWithWait(ctx, e.waitTimeout(), chromedp.Reload()); err != nil {
				log.Printf("⚠️ 刷新登录页面失败: %v", err)
			}
		},
		func(attempt int) error {
			result.LoginAttempts = attempt
			log.Printf("🔑 登录尝试 %d/%d", attempt, maxRetries)
			if err := e.loginAttempt(ctx); err != nil {
				log.Printf("⚠️ 第 %d 次登录未成功: %v", attempt, err)
				e.logPageError(ctx)
				return err
			}
			return nil
		})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginExhausted, err)
	}
	return nil
}

// loginAttempt performs one submit cycle. Success is strictly the URL
// reaching the dashboard, not the absence of an error message.
func (e *Executor) loginAttempt(ctx context.Context) error {
	wt := e.waitTimeout()

	err := runWithWait(ctx, wt,
		chromedp.WaitVisible(loginFieldSelector, chromedp.ByQuery),
		chromedp.WaitVisible(loginPasswordSelector, chromedp.ByQuery),
		chromedp.WaitVisible(loginSubmitSelector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("登录表单加载超时: %w", err)
	}

	// Clear first: after a reload the browser may have restored the
	// previous input.
	err = runWithWait(ctx, wt,
		chromedp.Clear(loginFieldSelector, chromedp.ByQuery),
		chromedp.Clear(loginPasswordSelector, chromedp.ByQuery),
		chromedp.SendKeys(loginFieldSelector, e.cfg.Rainyun.User, chromedp.ByQuery),
		chromedp.SendKeys(loginPasswordSelector, e.cfg.Rainyun.Pass, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("填写登录表单失败: %w", err)
	}

	randomPause(500*time.Millisecond, 1500*time.Millisecond)

	// Script click goes through even when a toast overlays the button.
	err = runWithWait(ctx, wt,
		chromedp.Evaluate(`document.querySelector('button[type="submit"]').click()`, nil),
	)
	if err != nil {
		return fmt.Errorf("点击登录按钮失败: %w", err)
	}

	url, err := waitURLContains(ctx, wt, e.cfg.Rainyun.SuccessMarker)
	if err != nil {
		return fmt.Errorf("未跳转到仪表盘页面 (当前: %s): %w", url, err)
	}
	return nil
}

const pageErrorTextJS = `(function() {
	var selectors = ['.el-message__content', '.error-message'];
	for (var i = 0; i < selectors.length; i++) {
		var el = document.querySelector(selectors[i]);
		if (el && el.textContent.trim() !== '') {
			return el.textContent.trim();
		}
	}
	return '';
})()`

// logPageError surfaces the page's own error toast, if any, to make
// the retry log actionable.
func (e *Executor) logPageError(ctx context.Context) {
	var text string
	if err := chromedp.Run(ctx, chromedp.Evaluate(pageErrorTextJS, &text)); err != nil {
		return
	}
	if text != "" {
		log.Printf("💬 页面提示: %s", text)
	}
}
