package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"rainyun-autosign/pkg/auth"
	"rainyun-autosign/pkg/captcha"
	"rainyun-autosign/pkg/response"
	"rainyun-autosign/pkg/utils"

	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Login authenticates the single admin account configured through the
// environment. No password configured means the API stays locked.
func Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if cfg.Server.AdminPassword == "" {
		response.Forbidden(c, "管理接口未配置密码，已禁用登录")
		return
	}

	if req.Username != cfg.Server.AdminUsername || !checkAdminPassword(req.Password, cfg.Server.AdminPassword) {
		response.Unauthorized(c, "用户名或密码错误")
		return
	}

	token, err := auth.GenerateToken(req.Username, cfg.JWT.ExpireTime)
	if err != nil {
		response.InternalServerError(c, "生成令牌失败")
		return
	}

	response.SuccessWithMessage(c, "登录成功", LoginResponse{
		Token:    token,
		Username: req.Username,
	})
}

// checkAdminPassword accepts either a bcrypt hash or, for simple
// deployments, the literal password in ADMIN_PASSWORD.
func checkAdminPassword(password, stored string) bool {
	if strings.HasPrefix(stored, "$2") {
		return utils.CheckPassword(password, stored)
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(stored)) == 1
}

// HealthCheck reports daemon liveness plus the reachability of the OCR
// sidecar the captcha stage depends on.
func HealthCheck(c *gin.Context) {
	ocrStatus := "ok"
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := captcha.NewOCRClient(cfg.Captcha.OCRServiceURL).HealthCheck(ctx); err != nil {
		ocrStatus = err.Error()
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "success",
		"data": gin.H{
			"status":      "healthy",
			"version":     cfg.App.Version,
			"ocr_service": ocrStatus,
			"timestamp":   time.Now().Unix(),
		},
	})
}
