package services

import (
	"context"
	"log"
	"time"

	"rainyun-autosign/internal/config"
	"rainyun-autosign/internal/executor"
	"rainyun-autosign/internal/models"
	"rainyun-autosign/pkg/utils"

	"github.com/google/uuid"
)

// Runner couples the executor with the record store: every run it
// starts gets a record created up front and finished afterwards.
type Runner struct {
	cfg *config.Config
}

var GlobalRunner *Runner

func InitRunner(cfg *config.Config) {
	GlobalRunner = &Runner{cfg: cfg}
}

// Trigger starts a run asynchronously and returns its run ID, or
// executor.ErrRunActive when one is already in flight.
func (r *Runner) Trigger(trigger string) (string, error) {
	if executor.Global.IsRunning() {
		return "", executor.ErrRunActive
	}

	runID := uuid.New().String()
	go r.runAndRecord(context.Background(), runID, trigger)
	return runID, nil
}

// RunAndRecord executes a run synchronously under a fresh run ID.
func (r *Runner) RunAndRecord(ctx context.Context, trigger string) (*executor.RunResult, error) {
	return r.runAndRecord(ctx, uuid.New().String(), trigger)
}

func (r *Runner) runAndRecord(ctx context.Context, runID, trigger string) (*executor.RunResult, error) {
	record := &models.SignInRecord{
		RunID:     runID,
		Account:   utils.MaskAccount(r.cfg.Rainyun.User),
		Status:    models.StatusRunning,
		Trigger:   trigger,
		StartTime: time.Now(),
	}
	if err := GlobalRecords.Create(record); err != nil {
		log.Printf("⚠️ 创建签到记录失败: %v", err)
	}

	result, err := executor.Global.RunWithID(ctx, runID, trigger)
	if err != nil {
		// Lost the race against another trigger; the placeholder
		// record must not linger as running.
		now := time.Now()
		record.Status = models.StatusFailed
		record.Message = err.Error()
		record.EndTime = &now
		if uerr := GlobalRecords.Update(record); uerr != nil {
			log.Printf("⚠️ 更新签到记录失败: %v", uerr)
		}
		return nil, err
	}

	if err := GlobalRecords.Finish(record, result); err != nil {
		log.Printf("⚠️ 保存签到结果失败: %v", err)
	}
	return result, nil
}
