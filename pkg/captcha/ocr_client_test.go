package captcha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecognizeSliding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/recognize/sliding" {
			t.Errorf("请求路径 = %q", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("请求方法 = %q", r.Method)
		}

		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		if req["background"] != "bg-data" {
			t.Errorf("background = %q", req["background"])
		}
		if req["slider"] != "slider-data" {
			t.Errorf("slider = %q", req["slider"])
		}

		json.NewEncoder(w).Encode(SlideResponse{Success: true, Distance: 137})
	}))
	defer server.Close()

	client := NewOCRClient(server.URL)
	distance, err := client.RecognizeSliding(context.Background(), "bg-data", "slider-data")
	if err != nil {
		t.Fatalf("RecognizeSliding() error = %v", err)
	}
	if distance != 137 {
		t.Errorf("distance = %d, want 137", distance)
	}
}

func TestRecognizeSlidingFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SlideResponse{Success: false, Error: "无法识别缺口"})
	}))
	defer server.Close()

	client := NewOCRClient(server.URL)
	if _, err := client.RecognizeSliding(context.Background(), "bg", ""); err == nil {
		t.Fatal("识别失败时应返回错误")
	}
}

func TestRecognizeSlidingServiceDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // 立即关掉，模拟服务不可达

	client := NewOCRClient(server.URL)
	if _, err := client.RecognizeSliding(context.Background(), "bg", "slider"); err == nil {
		t.Fatal("服务不可达时应返回错误")
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("请求路径 = %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewOCRClient(server.URL)
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestHealthCheckBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewOCRClient(server.URL)
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Error("非 200 状态应返回错误")
	}
}
