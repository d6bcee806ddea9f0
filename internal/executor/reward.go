package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"rainyun-autosign/pkg/notify"

	"github.com/chromedp/chromedp"
)

var (
	// ErrNoEarnButton means every page load failed to produce a
	// clickable earn control; the claim is skipped, not the run.
	ErrNoEarnButton = errors.New("多次尝试后仍无法找到赚取积分按钮")

	// ErrBalanceNotFound means the dashboard balance element never
	// appeared, leaving the run outcome unverifiable.
	ErrBalanceNotFound = errors.New("未找到当前积分元素")
)

// balanceXPath is the points display on the earn page, as rendered by
// the current frontend build. It shares the layout prefix with the
// earn button and is read in place after the claim.
const balanceXPath = `//*[@id="app"]/div[1]/div[3]/div[2]/div/div/div[2]/div[1]/div[1]/div/p/div/h3`

// locatorStrategy is one way of finding the earn button. The frontend
// changes markup between releases, so several generations of locators
// are kept and tried strictly in order.
type locatorStrategy struct {
	name  string
	sel   string
	query chromedp.QueryOption
}

var earnLocators = []locatorStrategy{
	{"布局路径", `//*[@id="app"]/div[1]/div[3]/div[2]/div/div/div[2]/div[2]/div/div/div/div[1]/div/div[1]/div/div[1]/div/span[2]/a`, chromedp.BySearch},
	{"链接文本", `//a[contains(@href, "earn") and contains(text(), "赚取")]`, chromedp.BySearch},
	{"链接地址", `a[href*="/account/reward/earn"]`, chromedp.ByQuery},
	{"样式类名", `//a[contains(@class, "earn-button")]`, chromedp.BySearch},
}

// firstMatch returns the index of the first strategy the probe
// accepts, preserving the declared priority order.
func firstMatch(strategies []locatorStrategy, probe func(locatorStrategy) bool) (int, bool) {
	for i, s := range strategies {
		if probe(s) {
			return i, true
		}
	}
	return -1, false
}

// reward claims the daily points and scrapes the resulting balance.
// A failed claim degrades the run to partial; a failed scrape leaves
// it unknown. Neither aborts.
func (e *Executor) reward(ctx context.Context, result *RunResult) {
	if err := e.earnPoints(ctx, result); err != nil {
		log.Printf("⚠️ %v", err)
		result.Partial = true
		// The operator hears about the degraded claim exactly once,
		// before the balance notification.
		notify.Send(context.Background(), e.notifier, TitlePartialFailed,
			"未能完成赚取积分操作，但登录成功。可能是页面结构变化或今日已签到。")
	}

	time.Sleep(2 * time.Second)

	points, raw, err := e.scrapeBalance(ctx)
	if err != nil {
		log.Printf("⚠️ 读取积分余额失败: %v", err)
		result.Report = unknownReport(fmt.Sprintf("签到流程已执行完毕，但无法读取当前积分余额: %v", err))
		return
	}

	result.Points = points
	result.Currency = FormatCurrency(points)
	log.Printf("💰 当前积分: %d (原文: %q)，约为 %s 元", points, raw, result.Currency)
	result.Report = successReport(points)
}

// earnPoints loads the reward page up to the retry budget and clicks
// the first earn control a locator strategy can produce.
func (e *Executor) earnPoints(ctx context.Context, result *RunResult) error {
	maxRetries := e.cfg.Reward.MaxRetries
	wt := e.waitTimeout()

	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Printf("💎 第 %d/%d 次尝试加载赚取积分页面", attempt, maxRetries)

		err := runWithWait(ctx, wt,
			chromedp.Navigate(e.cfg.Rainyun.RewardURL),
			chromedp.WaitReady("body", chromedp.ByQuery),
		)
		if err != nil {
			log.Printf("⚠️ 加载赚取积分页面失败: %v", err)
			randomPause(3*time.Second, 5*time.Second)
			continue
		}

		time.Sleep(time.Duration(e.cfg.Reward.SettleDelay) * time.Second)

		idx, ok := firstMatch(earnLocators, func(s locatorStrategy) bool {
			return e.locatorClickable(ctx, s)
		})
		if !ok {
			log.Println("🔍 本次未找到赚取积分按钮，刷新页面重试")
			randomPause(3*time.Second, 5*time.Second)
			continue
		}

		strategy := earnLocators[idx]
		log.Printf("🎯 使用「%s」策略找到赚取积分按钮", strategy.name)

		if err := e.clickEarnButton(ctx, strategy); err != nil {
			log.Printf("⚠️ 点击赚取积分按钮失败: %v", err)
			randomPause(3*time.Second, 5*time.Second)
			continue
		}

		// The claim click can raise its own slide captcha; a failure
		// here only costs the claim, never the run.
		e.earnCaptchaCheck(ctx, result)

		log.Println("✅ 赚取积分操作完成")
		return nil
	}

	return ErrNoEarnButton
}

// earnCaptchaCheck handles a captcha raised by the earn click.
func (e *Executor) earnCaptchaCheck(ctx context.Context, result *RunResult) {
	triggered, err := e.handleCaptchaIfPresent(ctx, result)
	if err != nil {
		log.Printf("⚠️ 赚取积分验证码处理失败: %v", err)
		notify.Send(context.Background(), e.notifier, TitleEarnCaptcha,
			fmt.Sprintf("赚取积分时触发的验证码处理失败: %v", err))
		return
	}
	if triggered {
		log.Println("✅ 赚取积分验证码处理完成")
	}
}

// locatorClickable reports whether the strategy resolves to a visible,
// enabled element within the wait window.
func (e *Executor) locatorClickable(ctx context.Context, s locatorStrategy) bool {
	err := runWithWait(ctx, e.waitTimeout(),
		chromedp.WaitVisible(s.sel, s.query),
		chromedp.WaitEnabled(s.sel, s.query),
	)
	return err == nil
}

// clickEarnButton scrolls the control into view, pauses like a person
// would, then clicks through script so overlays cannot intercept.
func (e *Executor) clickEarnButton(ctx context.Context, s locatorStrategy) error {
	if err := runWithWait(ctx, e.waitTimeout(), chromedp.ScrollIntoView(s.sel, s.query)); err != nil {
		return fmt.Errorf("滚动到按钮位置失败: %w", err)
	}

	randomPause(500*time.Millisecond, 1500*time.Millisecond)

	var clicked bool
	js := jsClickScript(s)
	if err := runWithWait(ctx, e.waitTimeout(), chromedp.Evaluate(js, &clicked)); err != nil {
		return fmt.Errorf("执行点击脚本失败: %w", err)
	}
	if !clicked {
		return fmt.Errorf("点击脚本未命中元素 (%s)", s.sel)
	}
	return nil
}

const (
	clickByXPathJS = `(function(xpath) {
	var result = document.evaluate(xpath, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null);
	var el = result.singleNodeValue;
	if (el) { el.click(); return true; }
	return false;
})(%q)`

	clickBySelectorJS = `(function(sel) {
	var el = document.querySelector(sel);
	if (el) { el.click(); return true; }
	return false;
})(%q)`
)

func jsClickScript(s locatorStrategy) string {
	if s.sel[0] == '/' {
		return fmt.Sprintf(clickByXPathJS, s.sel)
	}
	return fmt.Sprintf(clickBySelectorJS, s.sel)
}

// scrapeBalance reads the points display from the page the earn loop
// left us on. The balance element lives on the earn page itself, so no
// navigation happens here. Returns the parsed value and the raw text
// for the log.
func (e *Executor) scrapeBalance(ctx context.Context) (int, string, error) {
	if err := runWithWait(ctx, e.waitTimeout(), chromedp.WaitVisible(balanceXPath, chromedp.BySearch)); err != nil {
		return 0, "", ErrBalanceNotFound
	}

	var raw string
	if err := runWithWait(ctx, e.waitTimeout(), chromedp.TextContent(balanceXPath, &raw, chromedp.BySearch)); err != nil {
		return 0, "", fmt.Errorf("读取积分文本失败: %w", err)
	}

	points, err := parsePoints(raw)
	if err != nil {
		return 0, raw, err
	}
	return points, raw, nil
}
