package models

import (
	"time"

	"gorm.io/gorm"
)

// Components that report into the error log
const (
	ComponentAudio   = "audio"
	ComponentFocus   = "focus"
	ComponentCatalog = "catalog"
)

// ErrorLog is a non-fatal failure reported by one component
type ErrorLog struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Timestamp time.Time      `gorm:"not null;index" json:"timestamp"`
	Component string         `gorm:"size:32;not null;index" json:"component"`
	ErrorMsg  string         `gorm:"not null" json:"error_msg"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-" yaml:"-"`
}
