// Package rainyun is a thin client for the Rainyun account API, used to
// probe whether a credential pair can log in at all before a browser run
// burns minutes on a doomed attempt.
package rainyun

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

type Client struct {
	client *resty.Client
}

type loginRequest struct {
	Field    string `json:"field"`
	Password string `json:"password"`
}

type LoginResult struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.v2.rainyun.com"
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	return &Client{client: client}
}

// VerifyCredentials posts the account fields to /user/login; code 200
// means the pair is valid. No session is kept.
func (c *Client) VerifyCredentials(ctx context.Context, field, password string) (*LoginResult, error) {
	var result LoginResult

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(loginRequest{Field: field, Password: password}).
		SetResult(&result).
		SetError(&result).
		Post("/user/login")
	if err != nil {
		return nil, fmt.Errorf("请求雨云登录接口失败: %w", err)
	}

	if result.Code == 0 {
		return nil, fmt.Errorf("雨云登录接口响应异常: HTTP %d", resp.StatusCode())
	}

	return &result, nil
}

// Valid reports whether the probe accepted the credentials.
func (r *LoginResult) Valid() bool {
	return r.Code == 200
}
