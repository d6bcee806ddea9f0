package models

import (
	"time"

	"gorm.io/gorm"
)

type BaseModel struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Run statuses for SignInRecord.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusUnknown = "unknown"
	StatusFailed  = "failed"
)

// Trigger sources for SignInRecord.
const (
	TriggerCLI  = "cli"
	TriggerCron = "cron"
	TriggerAPI  = "api"
)

// SignInRecord is one sign-in run. Account is stored masked; the
// credentials themselves never reach the database.
type SignInRecord struct {
	BaseModel
	RunID           string     `json:"run_id" gorm:"size:64;uniqueIndex;not null"`
	Account         string     `json:"account" gorm:"size:100"`
	Status          string     `json:"status" gorm:"size:20;index"`
	Title           string     `json:"title" gorm:"size:100"`
	Message         string     `json:"message" gorm:"type:text"`
	Points          int        `json:"points"`
	Currency        string     `json:"currency" gorm:"size:20"`
	LoginAttempts   int        `json:"login_attempts"`
	CaptchaAttempts int        `json:"captcha_attempts"`
	Trigger         string     `json:"trigger" gorm:"size:20"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	Duration        int64      `json:"duration"` // milliseconds
}
