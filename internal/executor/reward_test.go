package executor

import (
	"strings"
	"testing"
)

func TestEarnLocatorOrder(t *testing.T) {
	wantNames := []string{"布局路径", "链接文本", "链接地址", "样式类名"}
	if len(earnLocators) != len(wantNames) {
		t.Fatalf("定位策略数量为 %d, 期望 %d", len(earnLocators), len(wantNames))
	}
	for i, want := range wantNames {
		if earnLocators[i].name != want {
			t.Errorf("earnLocators[%d].name = %q, want %q", i, earnLocators[i].name, want)
		}
	}

	// 兜底策略必须保持通用，避免前端改版后全部失效
	if !strings.Contains(earnLocators[1].sel, "赚取") {
		t.Errorf("文本策略缺少关键字: %q", earnLocators[1].sel)
	}
	if !strings.Contains(earnLocators[2].sel, "/account/reward/earn") {
		t.Errorf("链接策略缺少路径: %q", earnLocators[2].sel)
	}
}

func TestFirstMatchHonorsOrder(t *testing.T) {
	tests := []struct {
		name      string
		clickable map[string]bool
		wantIdx   int
		wantOK    bool
	}{
		{"首选可用", map[string]bool{"布局路径": true, "链接文本": true}, 0, true},
		{"首选失效时降级", map[string]bool{"链接文本": true, "样式类名": true}, 1, true},
		{"只剩兜底", map[string]bool{"样式类名": true}, 3, true},
		{"全部失效", map[string]bool{}, -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, ok := firstMatch(earnLocators, func(s locatorStrategy) bool {
				return tt.clickable[s.name]
			})
			if ok != tt.wantOK || idx != tt.wantIdx {
				t.Errorf("firstMatch() = (%d, %v), want (%d, %v)", idx, ok, tt.wantIdx, tt.wantOK)
			}
		})
	}
}

func TestFirstMatchStopsAtFirstHit(t *testing.T) {
	probed := []string{}
	firstMatch(earnLocators, func(s locatorStrategy) bool {
		probed = append(probed, s.name)
		return s.name == "链接文本"
	})

	want := []string{"布局路径", "链接文本"}
	if len(probed) != len(want) {
		t.Fatalf("探测了 %d 个策略: %v, 期望 %v", len(probed), probed, want)
	}
	for i := range want {
		if probed[i] != want[i] {
			t.Errorf("probed[%d] = %q, want %q", i, probed[i], want[i])
		}
	}
}

func TestJSClickScript(t *testing.T) {
	xpathScript := jsClickScript(locatorStrategy{sel: `//a[contains(text(), "赚取")]`, name: "x"})
	if !strings.Contains(xpathScript, "document.evaluate") {
		t.Errorf("XPath 策略应使用 document.evaluate: %s", xpathScript)
	}

	cssScript := jsClickScript(locatorStrategy{sel: `a[href*="/earn"]`, name: "c"})
	if !strings.Contains(cssScript, "document.querySelector") {
		t.Errorf("CSS 策略应使用 querySelector: %s", cssScript)
	}
}

func TestBalanceXPathOnEarnPage(t *testing.T) {
	// 积分余额元素与赚取按钮同页，二者共享布局前缀；读取余额
	// 时不得离开赚取页面，否则元素不存在。
	const sharedPrefix = `//*[@id="app"]/div[1]/div[3]/div[2]/div/div/div[2]/`
	if !strings.HasPrefix(balanceXPath, sharedPrefix) {
		t.Errorf("balanceXPath = %q, 缺少赚取页面布局前缀 %q", balanceXPath, sharedPrefix)
	}
	if !strings.HasPrefix(earnLocators[0].sel, sharedPrefix) {
		t.Errorf("布局路径策略 = %q, 缺少赚取页面布局前缀 %q", earnLocators[0].sel, sharedPrefix)
	}
}
