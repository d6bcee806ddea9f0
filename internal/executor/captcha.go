package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// ErrCaptchaGiveUp means the slide verification kept rejecting our
// answer until the attempt budget ran out.
var ErrCaptchaGiveUp = errors.New("验证码处理失败，已达到最大尝试次数")

// Tencent rotates the iframe id between product variants; both are
// probed in order.
var captchaFrameIDs = []string{"tcaptcha_iframe_dy", "tcaptcha_iframe"}

const (
	captchaSlideBlockID  = "slideBlock"
	captchaSlideBgID     = "slideBg"
	captchaSlideButtonID = "slide-button"
)

// slideDistance maps the OCR offset, measured against the natural
// background width, onto the rendered track and applies the empirical
// alignment correction. Never negative.
func slideDistance(offset int, renderedWidth, naturalWidth, correction float64) float64 {
	d := float64(offset)*renderedWidth/naturalWidth - correction
	if d < 0 {
		return 0
	}
	return d
}

const captchaFramePresentJS = `(function(ids) {
	for (var i = 0; i < ids.length; i++) {
		var el = document.getElementById(ids[i]);
		if (el !== null && el.offsetWidth > 0) {
			return true;
		}
	}
	return false;
})(%s)`

// captchaTriggered polls the main document for a visible challenge
// iframe. Absence within the wait window is a normal outcome.
func (e *Executor) captchaTriggered(ctx context.Context) bool {
	ids, _ := json.Marshal(captchaFrameIDs)
	probe := fmt.Sprintf(captchaFramePresentJS, ids)

	deadline := time.Now().Add(e.waitTimeout())
	for {
		var present bool
		if err := chromedp.Run(ctx, chromedp.Evaluate(probe, &present)); err != nil {
			log.Printf("⚠️ 检测验证码 iframe 失败: %v", err)
			return false
		}
		if present {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// handleCaptchaIfPresent detects and, when present, solves the slide
// captcha. Returns whether a challenge appeared at all.
func (e *Executor) handleCaptchaIfPresent(ctx context.Context, result *RunResult) (bool, error) {
	if !e.captchaTriggered(ctx) {
		log.Println("👍 未触发腾讯滑动验证码")
		return false, nil
	}

	log.Println("🤖 触发腾讯滑动验证码！开始自动处理...")
	if err := e.solveCaptcha(ctx, result); err != nil {
		return true, err
	}
	return true, nil
}

// solveCaptcha runs the bounded solve loop. Explicit verification
// rejections consume attempts; everything else aborts immediately.
func (e *Executor) solveCaptcha(ctx context.Context, result *RunResult) error {
	maxAttempts := e.cfg.Captcha.MaxAttempts
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.CaptchaAttempts++
		log.Printf("🧩 验证码尝试 %d/%d", attempt, maxAttempts)

		passed, err := e.captchaAttempt(ctx)
		if err != nil {
			return err
		}
		if passed {
			log.Println("✅ 滑动验证码验证通过")
			return nil
		}

		log.Println("🔄 验证未通过，刷新验证码重试")
	}
	return ErrCaptchaGiveUp
}

// captchaAttempt solves one challenge round inside the iframe. The
// frame context is always cancelled before returning, so the caller
// keeps operating on the main document regardless of outcome.
func (e *Executor) captchaAttempt(ctx context.Context) (passed bool, err error) {
	frameCtx, cancel, err := e.enterCaptchaFrame(ctx)
	if err != nil {
		return false, fmt.Errorf("切换到验证码 iframe 失败: %w", err)
	}
	defer cancel()

	time.Sleep(2 * time.Second) // frame content keeps loading after attach

	wt := e.waitTimeout()
	err = runWithWait(frameCtx, wt,
		chromedp.WaitVisible("#"+captchaSlideBlockID, chromedp.ByQuery),
		chromedp.WaitVisible("#"+captchaSlideBgID, chromedp.ByQuery),
	)
	if err != nil {
		return false, fmt.Errorf("验证码图片元素加载超时: %w", err)
	}

	bgB64, err := extractImageBase64(frameCtx, captchaSlideBgID)
	if err != nil {
		return false, fmt.Errorf("提取背景图失败: %w", err)
	}
	sliderB64, err := extractImageBase64(frameCtx, captchaSlideBlockID)
	if err != nil {
		return false, fmt.Errorf("提取滑块图失败: %w", err)
	}

	offset, err := e.ocr.RecognizeSliding(frameCtx, bgB64, sliderB64)
	if err != nil {
		return false, fmt.Errorf("OCR 识别缺口位置失败: %w", err)
	}

	bgRect, err := elementRect(frameCtx, captchaSlideBgID)
	if err != nil {
		return false, fmt.Errorf("读取背景图尺寸失败: %w", err)
	}

	distance := slideDistance(offset, bgRect.Width,
		float64(e.cfg.Captcha.BgNaturalWidth), float64(e.cfg.Captcha.SlideCorrection))
	log.Printf("📐 OCR 偏移 %dpx，渲染宽度 %.1fpx，实际滑动距离 %.1fpx", offset, bgRect.Width, distance)

	btnRect, err := elementRect(frameCtx, captchaSlideButtonID)
	if err != nil {
		return false, fmt.Errorf("读取滑动按钮位置失败: %w", err)
	}
	startX := btnRect.X + btnRect.Width/2
	startY := btnRect.Y + btnRect.Height/2

	if err := e.dragSlider(frameCtx, startX, startY, distance); err != nil {
		return false, err
	}

	time.Sleep(time.Duration(e.cfg.Captcha.VerifyWaitSec) * time.Second)

	if failText := captchaFailureText(frameCtx); failText != "" {
		log.Printf("❌ 验证码校验被拒绝: %s", failText)
		e.refreshCaptcha(frameCtx)
		time.Sleep(2 * time.Second)
		return false, nil
	}
	return true, nil
}

// enterCaptchaFrame attaches a child context to the challenge iframe's
// own target. An out-of-process iframe shows up as a separate target;
// a same-process one stays reachable from the main document, in which
// case a plain cancellable child of the tab context is returned.
func (e *Executor) enterCaptchaFrame(ctx context.Context) (context.Context, context.CancelFunc, error) {
	targets, err := chromedp.Targets(ctx)
	if err != nil {
		return nil, nil, err
	}

	for _, t := range targets {
		if t.Type == "iframe" && strings.Contains(t.URL, "captcha") {
			frameCtx, cancel := chromedp.NewContext(ctx, chromedp.WithTargetID(t.TargetID))
			return frameCtx, cancel, nil
		}
	}

	frameCtx, cancel := context.WithCancel(ctx)
	return frameCtx, cancel, nil
}

const canvasExtractJS = `(function(id) {
	var img = document.getElementById(id);
	if (!img) { return ''; }
	var canvas = document.createElement('canvas');
	canvas.width = img.naturalWidth;
	canvas.height = img.naturalHeight;
	canvas.getContext('2d').drawImage(img, 0, 0);
	return canvas.toDataURL('image/png').substring(22);
})(%q)`

// extractImageBase64 redraws the captcha image onto a canvas and
// returns its PNG bytes as base64, data-URL prefix already stripped.
func extractImageBase64(ctx context.Context, id string) (string, error) {
	var b64 string
	if err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(canvasExtractJS, id), &b64)); err != nil {
		return "", err
	}
	if b64 == "" {
		return "", fmt.Errorf("元素 #%s 不存在或尚未加载", id)
	}
	return b64, nil
}

type elemRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

const elementRectJS = `(function(id) {
	var el = document.getElementById(id);
	if (!el) { return null; }
	var r = el.getBoundingClientRect();
	return {x: r.left, y: r.top, width: r.width, height: r.height};
})(%q)`

func elementRect(ctx context.Context, id string) (*elemRect, error) {
	var rect *elemRect
	if err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(elementRectJS, id), &rect)); err != nil {
		return nil, err
	}
	if rect == nil {
		return nil, fmt.Errorf("元素 #%s 不存在", id)
	}
	return rect, nil
}

// dragSlider replays a human-paced drag over CDP: press, pause, move in
// 10px steps with jittered delays, settle, release.
func (e *Executor) dragSlider(ctx context.Context, startX, startY, distance float64) error {
	err := chromedp.Run(ctx,
		chromedp.MouseEvent("mousePressed", startX, startY, chromedp.ButtonLeft, chromedp.ClickCount(1)),
	)
	if err != nil {
		return fmt.Errorf("按下滑动按钮失败: %w", err)
	}
	time.Sleep(500 * time.Millisecond)

	steps := int(distance) / 10
	for i := 1; i <= steps; i++ {
		currentX := startX + float64(i*10)
		if err := chromedp.Run(ctx, chromedp.MouseEvent("mouseMoved", currentX, startY, chromedp.ButtonLeft)); err != nil {
			log.Printf("⚠️ 滑动步进 %d 失败: %v", i, err)
		}
		randomPause(10*time.Millisecond, 50*time.Millisecond)
	}

	if remainder := distance - float64(steps*10); remainder > 0 {
		if err := chromedp.Run(ctx, chromedp.MouseEvent("mouseMoved", startX+distance, startY, chromedp.ButtonLeft)); err != nil {
			log.Printf("⚠️ 滑动到终点失败: %v", err)
		}
	}
	randomPause(100*time.Millisecond, 300*time.Millisecond)

	err = chromedp.Run(ctx,
		chromedp.MouseEvent("mouseReleased", startX+distance, startY, chromedp.ButtonLeft, chromedp.ClickCount(1)),
	)
	if err != nil {
		return fmt.Errorf("释放滑动按钮失败: %w", err)
	}
	return nil
}

const captchaFailureJS = `(function() {
	var result = document.evaluate(
		"//*[contains(text(), '失败') or contains(text(), '校验失败')]",
		document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null);
	var node = result.singleNodeValue;
	if (node && node.offsetWidth !== undefined) {
		return (node.textContent || '').trim();
	}
	return node ? '校验失败' : '';
})()`

// captchaFailureText returns the visible rejection message, or "" when
// the verification went through.
func captchaFailureText(ctx context.Context) string {
	var text string
	if err := chromedp.Run(ctx, chromedp.Evaluate(captchaFailureJS, &text)); err != nil {
		log.Printf("⚠️ 检查验证结果失败: %v", err)
		return ""
	}
	return text
}

const captchaRefreshJS = `(function() {
	var btn = document.getElementsByClassName('tcaptcha-icon-refresh')[0];
	if (btn) { btn.click(); return true; }
	return false;
})()`

func (e *Executor) refreshCaptcha(ctx context.Context) {
	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(captchaRefreshJS, &clicked)); err != nil || !clicked {
		log.Printf("⚠️ 刷新验证码失败 (clicked=%v, err=%v)", clicked, err)
	}
}
