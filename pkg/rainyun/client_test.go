package rainyun

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVerifyCredentialsValid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/login" {
			t.Errorf("请求路径 = %q", r.URL.Path)
		}

		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		if req["field"] != "me@example.com" || req["password"] != "hunter2" {
			t.Errorf("请求体 = %v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(LoginResult{Code: 200, Message: "ok"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.VerifyCredentials(context.Background(), "me@example.com", "hunter2")
	if err != nil {
		t.Fatalf("VerifyCredentials() error = %v", err)
	}
	if !result.Valid() {
		t.Errorf("Valid() = false, 响应: %+v", result)
	}
}

func TestVerifyCredentialsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(LoginResult{Code: 30011, Message: "账号或密码错误"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.VerifyCredentials(context.Background(), "me@example.com", "wrong")
	if err != nil {
		t.Fatalf("VerifyCredentials() error = %v", err)
	}
	if result.Valid() {
		t.Error("错误密码不应通过校验")
	}
	if result.Code != 30011 {
		t.Errorf("Code = %d, want 30011", result.Code)
	}
}

func TestVerifyCredentialsMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("bad gateway"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.VerifyCredentials(context.Background(), "a", "b"); err == nil {
		t.Error("无法解析的响应应返回错误")
	}
}
