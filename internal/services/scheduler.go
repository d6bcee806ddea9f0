package services

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"rainyun-autosign/internal/config"
	"rainyun-autosign/internal/executor"
	"rainyun-autosign/internal/models"

	"github.com/robfig/cron/v3"
)

// SchedulerService fires the daily sign-in on a cron spec with a
// random delay, mirroring what the GitHub Actions workflow does.
type SchedulerService struct {
	cron *cron.Cron
	cfg  *config.Config
}

var GlobalScheduler *SchedulerService

func InitScheduler(cfg *config.Config) error {
	scheduler := &SchedulerService{
		cron: cron.New(cron.WithSeconds()),
		cfg:  cfg,
	}

	if _, err := scheduler.cron.AddFunc(cfg.Schedule.CronSpec, scheduler.runScheduledSignIn); err != nil {
		return fmt.Errorf("注册签到定时任务失败: %w", err)
	}

	scheduler.cron.Start()
	GlobalScheduler = scheduler
	log.Printf("⏰ 签到定时任务已启动: %s", cfg.Schedule.CronSpec)
	return nil
}

func (s *SchedulerService) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		log.Println("⏰ 签到定时任务已停止")
	}
}

// runScheduledSignIn is the cron entry point. Overlapping runs are
// skipped rather than queued: tomorrow's trigger will come anyway.
func (s *SchedulerService) runScheduledSignIn() {
	if executor.Global == nil || GlobalRunner == nil {
		return
	}
	if executor.Global.IsRunning() {
		log.Println("⏰ 已有签到任务在运行，跳过本次定时触发")
		return
	}

	if delay := s.randomDelay(); delay > 0 {
		log.Printf("⏰ 定时签到将在随机延时 %v 后开始", delay)
		time.Sleep(delay)
	}

	result, err := GlobalRunner.RunAndRecord(context.Background(), models.TriggerCron)
	if err != nil {
		log.Printf("⏰ 定时签到未能启动: %v", err)
		return
	}
	log.Printf("⏰ 定时签到完成: %s (耗时 %v)", result.Report.Title, result.Duration.Round(time.Second))
}

// randomDelay spreads scheduled runs inside the configured window so
// every instance does not hit the site at the exact cron second.
func (s *SchedulerService) randomDelay() time.Duration {
	if s.cfg.App.Debug {
		return 0
	}
	min, max := s.cfg.App.DelayMinSec, s.cfg.App.DelayMaxSec
	if max <= min {
		return time.Duration(min) * time.Second
	}
	return time.Duration(min+rand.Intn(max-min+1)) * time.Second
}
