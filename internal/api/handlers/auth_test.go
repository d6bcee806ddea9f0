package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"rainyun-autosign/internal/config"
	"rainyun-autosign/pkg/auth"
	"rainyun-autosign/pkg/response"
	"rainyun-autosign/pkg/utils"

	"github.com/gin-gonic/gin"
)

func loginRecorder(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	Login(c)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v (body=%s)", err, w.Body.String())
	}
	return resp
}

// 处理器使用启动时注入的配置，请求期间不再读取环境变量。
func TestLoginUsesInjectedConfig(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "env-should-be-ignored")
	auth.InitJWT("test-secret")
	Init(&config.Config{
		Server: config.ServerConfig{AdminUsername: "admin", AdminPassword: "injected-pass"},
		JWT:    config.JWTConfig{ExpireTime: 3600},
	})

	resp := decodeEnvelope(t, loginRecorder(t, `{"username":"admin","password":"injected-pass"}`))
	if resp.Code != 200 {
		t.Fatalf("code = %d, want 200 (message=%q)", resp.Code, resp.Message)
	}

	resp = decodeEnvelope(t, loginRecorder(t, `{"username":"admin","password":"env-should-be-ignored"}`))
	if resp.Code != 401 {
		t.Errorf("使用环境变量中的密码登录: code = %d, want 401", resp.Code)
	}
}

func TestLoginDisabledWithoutPassword(t *testing.T) {
	Init(&config.Config{
		Server: config.ServerConfig{AdminUsername: "admin"},
	})

	resp := decodeEnvelope(t, loginRecorder(t, `{"username":"admin","password":"anything"}`))
	if resp.Code != 403 {
		t.Errorf("code = %d, want 403", resp.Code)
	}
}

func TestCheckAdminPassword(t *testing.T) {
	hash, err := utils.HashPassword("secret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		password string
		stored   string
		want     bool
	}{
		{"明文匹配", "secret", "secret", true},
		{"明文不匹配", "secret", "other", false},
		{"哈希匹配", "secret", hash, true},
		{"哈希不匹配", "wrong", hash, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checkAdminPassword(tt.password, tt.stored); got != tt.want {
				t.Errorf("checkAdminPassword(%q, %q) = %v, want %v", tt.password, tt.stored, got, tt.want)
			}
		})
	}
}
