package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OCRClient OCR识别客户端
type OCRClient struct {
	serviceURL string
	client     *http.Client
}

// SlideResponse 滑块识别响应
type SlideResponse struct {
	Success  bool   `json:"success"`
	Distance int    `json:"distance"`
	Error    string `json:"error,omitempty"`
}

// NewOCRClient 创建OCR客户端
func NewOCRClient(serviceURL string) *OCRClient {
	if serviceURL == "" {
		serviceURL = "http://localhost:8888"
	}
	return &OCRClient{
		serviceURL: serviceURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// RecognizeSliding 识别滑块验证码。两张图片都是 base64 编码（canvas
// toDataURL 去掉前缀后的内容），返回的 distance 基于背景图原始像素坐标。
func (c *OCRClient) RecognizeSliding(ctx context.Context, backgroundB64, sliderB64 string) (int, error) {
	reqBody := map[string]string{
		"background": backgroundB64,
	}
	if sliderB64 != "" {
		reqBody["slider"] = sliderB64
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return 0, fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.serviceURL+"/recognize/sliding", bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, fmt.Errorf("构建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("请求OCR服务失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("读取响应失败: %w", err)
	}

	var slideResp SlideResponse
	if err := json.Unmarshal(body, &slideResp); err != nil {
		return 0, fmt.Errorf("解析响应失败: %w", err)
	}

	if !slideResp.Success {
		return 0, fmt.Errorf("滑块识别失败: %s", slideResp.Error)
	}

	return slideResp.Distance, nil
}

// HealthCheck 健康检查
func (c *OCRClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serviceURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("构建请求失败: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("OCR服务不可用: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("OCR服务状态异常: %d", resp.StatusCode)
	}

	return nil
}
