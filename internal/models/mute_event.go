package models

import (
	"time"

	"gorm.io/gorm"
)

// Mute command reasons
const (
	ReasonFocus     = "focus"
	ReasonToggle    = "toggle"
	ReasonWatchlist = "watchlist"
	ReasonUnmuteAll = "unmute_all"
)

type MuteEvent struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Timestamp     time.Time      `gorm:"not null;index" json:"timestamp"`
	ProcessName   string         `gorm:"not null;index" json:"process_name"`
	PID           uint32         `gorm:"not null;default:0" json:"pid"`
	Muted         bool           `gorm:"not null;default:false" json:"muted"`
	Reason        string         `gorm:"not null" json:"reason"`
	Matched       int            `gorm:"not null;default:0" json:"matched"` // sessions whose flag was set
	Failed        int            `gorm:"not null;default:0" json:"failed"`
	FocusedHandle string         `gorm:"not null;default:''" json:"focused_handle"`
	CreatedAt     time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-" yaml:"-"`
}

type AppSummary struct {
	ProcessName  string  `json:"process_name"`
	MuteCount    int64   `json:"mute_count"`
	UnmuteCount  int64   `json:"unmute_count"`
	EventCount   int64   `json:"event_count"`
	SessionCount int64   `json:"session_count"`
	Percentage   float64 `json:"percentage,omitempty"`
}

type ReportPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Type  string    `json:"type"` // "day", "week", "month"
}

type Report struct {
	Period       ReportPeriod `json:"period"`
	Apps         []AppSummary `json:"apps"`
	TotalMutes   int64        `json:"total_mutes"`
	TotalUnmutes int64        `json:"total_unmutes"`
	TotalEvents  int64        `json:"total_events"`
	GeneratedAt  time.Time    `json:"generated_at"`
}
