package handlers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"rainyun-autosign/internal/executor"
	"rainyun-autosign/internal/models"
	"rainyun-autosign/internal/services"
	"rainyun-autosign/pkg/rainyun"
	"rainyun-autosign/pkg/response"

	"github.com/gin-gonic/gin"
)

// TriggerSignIn starts a sign-in run in the background and returns its
// run ID immediately. Only one run may hold the browser at a time.
func TriggerSignIn(c *gin.Context) {
	runID, err := services.GlobalRunner.Trigger(models.TriggerAPI)
	if err != nil {
		if errors.Is(err, executor.ErrRunActive) {
			response.Conflict(c, "已有签到任务正在运行")
			return
		}
		response.InternalServerError(c, err.Error())
		return
	}

	response.SuccessWithMessage(c, "签到任务已启动", gin.H{
		"run_id": runID,
		"status": models.StatusRunning,
	})
}

// GetSignInStatus reports whether a run is in flight right now.
func GetSignInStatus(c *gin.Context) {
	running := executor.Global.IsRunning()
	data := gin.H{"running": running}
	if running {
		data["run_id"] = executor.Global.CurrentRunID()
	}
	response.Success(c, data)
}

// GetRecords lists sign-in history, newest first.
func GetRecords(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	records, total, err := services.GlobalRecords.List(page, pageSize)
	if err != nil {
		response.InternalServerError(c, "查询签到记录失败")
		return
	}
	response.Page(c, records, total, page, pageSize)
}

// GetLatestRecord returns the most recent run, finished or not.
func GetLatestRecord(c *gin.Context) {
	record, err := services.GlobalRecords.Latest()
	if err != nil {
		if errors.Is(err, services.ErrRecordNotFound) {
			response.NotFound(c, "暂无签到记录")
			return
		}
		response.InternalServerError(c, "查询签到记录失败")
		return
	}
	response.Success(c, record)
}

type VerifyCredentialsRequest struct {
	Field    string `json:"field" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// VerifyCredentials checks a credential pair against the account API
// without touching the browser or the stored configuration.
func VerifyCredentials(c *gin.Context) {
	var req VerifyCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	client := rainyun.NewClient(cfg.Rainyun.APIBaseURL)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	result, err := client.VerifyCredentials(ctx, req.Field, req.Password)
	if err != nil {
		response.InternalServerError(c, "凭据校验请求失败: "+err.Error())
		return
	}

	response.Success(c, gin.H{
		"valid":   result.Valid(),
		"code":    result.Code,
		"message": result.Message,
	})
}
