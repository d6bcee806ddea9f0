package services

import (
	"log"
	"time"

	"rainyun-autosign/internal/executor"
)

const (
	statusSyncInterval = time.Minute
	// A run holding the browser for longer than this is assumed dead;
	// its record gets repaired on the next sweep.
	staleRunningGrace = 30 * time.Minute
)

// StatusSyncService periodically reconciles records stuck in the
// running state, e.g. after a daemon crash mid-run.
type StatusSyncService struct {
	stop chan struct{}
}

var GlobalStatusSync *StatusSyncService

func InitStatusSync() {
	GlobalStatusSync = &StatusSyncService{stop: make(chan struct{})}
	go GlobalStatusSync.loop()
	log.Println("🔄 签到状态同步服务已启动")
}

func (s *StatusSyncService) Stop() {
	close(s.stop)
}

func (s *StatusSyncService) loop() {
	ticker := time.NewTicker(statusSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sync()
		case <-s.stop:
			return
		}
	}
}

func (s *StatusSyncService) sync() {
	if GlobalRecords == nil {
		return
	}

	activeRunID := ""
	if executor.Global != nil {
		activeRunID = executor.Global.CurrentRunID()
	}

	if fixed := GlobalRecords.MarkStaleRunning(staleRunningGrace, activeRunID); fixed > 0 {
		log.Printf("🔄 修复了 %d 条滞留在运行中状态的记录", fixed)
	}
}
