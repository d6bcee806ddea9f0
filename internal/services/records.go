package services

import (
	"errors"
	"log"
	"sync"
	"time"

	"rainyun-autosign/internal/executor"
	"rainyun-autosign/internal/models"

	"gorm.io/gorm"
)

// ErrRecordNotFound is returned when no run matches the query.
var ErrRecordNotFound = errors.New("未找到签到记录")

// memoryRecordCap bounds the in-memory history when the daemon runs
// without a database.
const memoryRecordCap = 100

// RecordStore persists sign-in run records. With a database it is
// backed by gorm; without one it keeps a bounded in-memory history so
// the API still has something to show.
type RecordStore struct {
	db *gorm.DB

	mutex  sync.RWMutex
	memory []models.SignInRecord
	nextID uint
}

var GlobalRecords *RecordStore

func InitRecordStore(db *gorm.DB) {
	GlobalRecords = NewRecordStore(db)
}

func NewRecordStore(db *gorm.DB) *RecordStore {
	return &RecordStore{db: db, nextID: 1}
}

func (s *RecordStore) Create(record *models.SignInRecord) error {
	if s.db != nil {
		return s.db.Create(record).Error
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	record.ID = s.nextID
	record.CreatedAt = time.Now()
	record.UpdatedAt = record.CreatedAt
	s.nextID++
	s.memory = append(s.memory, *record)
	if len(s.memory) > memoryRecordCap {
		s.memory = s.memory[len(s.memory)-memoryRecordCap:]
	}
	return nil
}

func (s *RecordStore) Update(record *models.SignInRecord) error {
	if s.db != nil {
		return s.db.Save(record).Error
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	for i := range s.memory {
		if s.memory[i].RunID == record.RunID {
			record.UpdatedAt = time.Now()
			s.memory[i] = *record
			return nil
		}
	}
	return ErrRecordNotFound
}

// List returns records newest-first with 1-based pagination.
func (s *RecordStore) List(page, pageSize int) ([]models.SignInRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	if s.db != nil {
		var records []models.SignInRecord
		var total int64
		if err := s.db.Model(&models.SignInRecord{}).Count(&total).Error; err != nil {
			return nil, 0, err
		}
		err := s.db.Order("start_time DESC").
			Offset((page - 1) * pageSize).
			Limit(pageSize).
			Find(&records).Error
		return records, total, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	total := int64(len(s.memory))
	// memory is append-ordered; walk it backwards for newest-first.
	start := (page - 1) * pageSize
	records := make([]models.SignInRecord, 0, pageSize)
	for i := len(s.memory) - 1 - start; i >= 0 && len(records) < pageSize; i-- {
		records = append(records, s.memory[i])
	}
	return records, total, nil
}

func (s *RecordStore) Latest() (*models.SignInRecord, error) {
	if s.db != nil {
		var record models.SignInRecord
		err := s.db.Order("start_time DESC").First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		if err != nil {
			return nil, err
		}
		return &record, nil
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if len(s.memory) == 0 {
		return nil, ErrRecordNotFound
	}
	record := s.memory[len(s.memory)-1]
	return &record, nil
}

// Finish folds a completed run's result into its record.
func (s *RecordStore) Finish(record *models.SignInRecord, result *executor.RunResult) error {
	now := time.Now()
	record.Status = result.Status()
	record.Title = result.Report.Title
	record.Message = result.Report.Body
	record.Points = result.Points
	record.Currency = result.Currency
	record.LoginAttempts = result.LoginAttempts
	record.CaptchaAttempts = result.CaptchaAttempts
	record.EndTime = &now
	record.Duration = result.Duration.Milliseconds()
	return s.Update(record)
}

// MarkStaleRunning flags records stuck in the running state longer
// than olderThan as failed, skipping the run the executor still owns.
// Returns how many records were repaired.
func (s *RecordStore) MarkStaleRunning(olderThan time.Duration, activeRunID string) int {
	cutoff := time.Now().Add(-olderThan)

	if s.db != nil {
		result := s.db.Model(&models.SignInRecord{}).
			Where("status = ? AND start_time < ? AND run_id <> ?", models.StatusRunning, cutoff, activeRunID).
			Updates(map[string]interface{}{
				"status":  models.StatusFailed,
				"title":   "雨云脚本运行异常",
				"message": "运行记录长时间停留在运行中状态，已标记为失败",
			})
		if result.Error != nil {
			log.Printf("⚠️ 修复滞留记录失败: %v", result.Error)
			return 0
		}
		return int(result.RowsAffected)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	fixed := 0
	for i := range s.memory {
		rec := &s.memory[i]
		if rec.Status == models.StatusRunning && rec.StartTime.Before(cutoff) && rec.RunID != activeRunID {
			rec.Status = models.StatusFailed
			rec.Title = "雨云脚本运行异常"
			rec.Message = "运行记录长时间停留在运行中状态，已标记为失败"
			rec.UpdatedAt = time.Now()
			fixed++
		}
	}
	return fixed
}
