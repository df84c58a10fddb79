package models

import (
	"time"

	"gorm.io/gorm"
)

type CaptureEvent struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Timestamp     time.Time      `gorm:"not null;index" json:"timestamp"` // bucket time
	ClassName     string         `gorm:"not null;index" json:"class_name"`
	WindowTitle   string         `gorm:"not null" json:"window_title"`
	X             int            `gorm:"not null" json:"x"`
	Y             int            `gorm:"not null" json:"y"`
	Width         int            `gorm:"not null" json:"width"`
	Height        int            `gorm:"not null" json:"height"`
	ArtifactPath  string         `gorm:"not null" json:"artifact_path"`
	ReportPath    string         `json:"report_path"` // empty when rendering failed
	RunID         string         `gorm:"not null;index" json:"run_id"`
	DisplayServer string         `gorm:"not null" json:"display_server"`
	CreatedAt     time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

type ClassSummary struct {
	ClassName    string  `json:"class_name"`
	CaptureCount int64   `json:"capture_count"`
	TotalSeconds int64   `json:"total_seconds"`
	Percentage   float64 `json:"percentage,omitempty"`
}
