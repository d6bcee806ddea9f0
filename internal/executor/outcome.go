package executor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"rainyun-autosign/internal/models"
)

// Notification titles, one per terminal (or noteworthy intermediate)
// outcome of a run.
const (
	TitleConfigError   = "雨云签到配置错误"
	TitleRunPanic      = "雨云脚本运行异常"
	TitleLoginFailed   = "雨云签到失败"
	TitleLoginCaptcha  = "雨云登录验证码失败"
	TitlePartialFailed = "雨云签到部分失败"
	TitleEarnCaptcha   = "雨云赚取积分验证码失败"
	TitleSuccess       = "雨云签到成功"
	TitleUnknown       = "雨云签到结果未知"
)

// Report is the terminal verdict of a run: what to notify, what to
// record and what exit code the one-shot mode should return.
type Report struct {
	Title    string
	Body     string
	Status   string
	ExitCode int
}

func fatalReport(title, body string) Report {
	return Report{
		Title:    title,
		Body:     body,
		Status:   models.StatusFailed,
		ExitCode: 1,
	}
}

// successReport carries the scraped balance; a browser that got this
// far did its job even if the claim itself degraded.
func successReport(points int) Report {
	return Report{
		Title:    TitleSuccess,
		Body:     fmt.Sprintf("当前剩余积分: %d | 约为 %s 元", points, FormatCurrency(points)),
		Status:   models.StatusSuccess,
		ExitCode: 0,
	}
}

// unknownReport means the flow completed but the balance could not be
// read back; the account state is undetermined, not failed.
func unknownReport(body string) Report {
	return Report{
		Title:    TitleUnknown,
		Body:     body,
		Status:   models.StatusUnknown,
		ExitCode: 0,
	}
}

var digitRuns = regexp.MustCompile(`\d+`)

// parsePoints extracts the balance from the display text by
// concatenating every digit run, so "12,345 积分" and "积分: 4000 点"
// both parse.
func parsePoints(raw string) (int, error) {
	matches := digitRuns.FindAllString(raw, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("积分文本中未找到数字: %q", raw)
	}

	joined := strings.Join(matches, "")
	points, err := strconv.Atoi(joined)
	if err != nil {
		return 0, fmt.Errorf("解析积分数字失败: %w", err)
	}
	return points, nil
}

// FormatCurrency converts points to the CNY equivalent at the fixed
// 2000-points-per-yuan rate, rendered with two decimals.
func FormatCurrency(points int) string {
	return strconv.FormatFloat(float64(points)/2000, 'f', 2, 64)
}
