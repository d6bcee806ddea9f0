package executor

import (
	"testing"

	"rainyun-autosign/internal/models"
)

func TestParsePoints(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"带标签和单位", "积分: 4000 点", 4000, false},
		{"纯数字", "4000", 4000, false},
		{"千分位分隔", "12,345 积分", 12345, false},
		{"前后空白", "  6000  ", 6000, false},
		{"零积分", "积分: 0", 0, false},
		{"无数字", "积分获取失败", 0, true},
		{"空字符串", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePoints(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePoints(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parsePoints(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		points int
		want   string
	}{
		{4000, "2.00"},
		{6000, "3.00"},
		{2000, "1.00"},
		{1000, "0.50"},
		{2500, "1.25"},
		{0, "0.00"},
		{1, "0.00"},
		{3, "0.00"},
	}

	for _, tt := range tests {
		if got := FormatCurrency(tt.points); got != tt.want {
			t.Errorf("FormatCurrency(%d) = %q, want %q", tt.points, got, tt.want)
		}
	}
}

func TestReportClassification(t *testing.T) {
	tests := []struct {
		name       string
		report     Report
		wantStatus string
		wantExit   int
	}{
		{"配置错误", fatalReport(TitleConfigError, "缺少凭据"), models.StatusFailed, 1},
		{"运行异常", fatalReport(TitleRunPanic, "panic"), models.StatusFailed, 1},
		{"登录失败", fatalReport(TitleLoginFailed, "超出重试次数"), models.StatusFailed, 1},
		{"登录验证码失败", fatalReport(TitleLoginCaptcha, "验证码被拒绝"), models.StatusFailed, 1},
		{"签到成功", successReport(4000), models.StatusSuccess, 0},
		{"结果未知", unknownReport("读不到积分"), models.StatusUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.report.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", tt.report.Status, tt.wantStatus)
			}
			if tt.report.ExitCode != tt.wantExit {
				t.Errorf("ExitCode = %d, want %d", tt.report.ExitCode, tt.wantExit)
			}
		})
	}
}

func TestSuccessReportBody(t *testing.T) {
	report := successReport(4000)
	want := "当前剩余积分: 4000 | 约为 2.00 元"
	if report.Body != want {
		t.Errorf("Body = %q, want %q", report.Body, want)
	}
	if report.Title != TitleSuccess {
		t.Errorf("Title = %q, want %q", report.Title, TitleSuccess)
	}
}

func TestRunResultStatus(t *testing.T) {
	tests := []struct {
		name   string
		result RunResult
		want   string
	}{
		{"完整成功", RunResult{Report: successReport(100)}, models.StatusSuccess},
		{"赚取失败但读到积分", RunResult{Partial: true, Report: successReport(100)}, models.StatusPartial},
		{"赚取失败且结果未知", RunResult{Partial: true, Report: unknownReport("x")}, models.StatusUnknown},
		{"登录失败", RunResult{Report: fatalReport(TitleLoginFailed, "x")}, models.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Status(); got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
		})
	}
}
