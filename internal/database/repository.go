package database

import (
	"strings"
	"time"

	"github.com/focusmute/focusmute/internal/models"

	"github.com/pkg/errors"

	"gorm.io/gorm"
)

// Repository handles all database operations for the mute journal
type Repository struct {
	db *DB
}

// NewRepository creates a new repository instance
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CreateMuteEvent inserts a new mute event into the journal
func (r *Repository) CreateMuteEvent(event *models.MuteEvent) error {
	event.ProcessName = strings.ToLower(event.ProcessName)
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	// stored as text, so every row uses one offset to keep range queries ordered
	event.Timestamp = event.Timestamp.UTC()
	result := r.db.Create(event)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert mute event")
	}
	return nil
}

// GetEventsSince retrieves all mute events since a given time, oldest first
func (r *Repository) GetEventsSince(since time.Time) ([]*models.MuteEvent, error) {
	var events []*models.MuteEvent
	result := r.db.Where("timestamp >= ?", since.UTC()).Order("timestamp ASC").Find(&events)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query mute events")
	}
	return events, nil
}

// GetRecentEvents retrieves the newest limit events, oldest first
func (r *Repository) GetRecentEvents(limit int) ([]*models.MuteEvent, error) {
	var events []*models.MuteEvent
	result := r.db.Order("timestamp DESC").Order("id DESC").Limit(limit).Find(&events)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query recent events")
	}

	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// GetAppSummarySince returns mute/unmute counts per process since a given time
func (r *Repository) GetAppSummarySince(since time.Time) ([]models.AppSummary, error) {
	var summaries []models.AppSummary

	result := r.db.Model(&models.MuteEvent{}).
		Select(`process_name,
			SUM(CASE WHEN muted THEN 1 ELSE 0 END) AS mute_count,
			SUM(CASE WHEN muted THEN 0 ELSE 1 END) AS unmute_count,
			COUNT(*) AS event_count,
			SUM(matched) AS session_count`).
		Where("timestamp >= ?", since.UTC()).
		Group("process_name").
		Order("event_count DESC").
		Order("process_name ASC").
		Scan(&summaries)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query app summary")
	}

	return summaries, nil
}

// GetLatest retrieves the most recent mute event
func (r *Repository) GetLatest() (*models.MuteEvent, error) {
	var event models.MuteEvent
	result := r.db.Order("timestamp DESC").Order("id DESC").First(&event)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(result.Error, "failed to get latest event")
	}
	return &event, nil
}

// DeleteOldEvents deletes events older than a specified date (soft delete)
func (r *Repository) DeleteOldEvents(before time.Time) (int64, error) {
	result := r.db.Where("timestamp < ?", before.UTC()).Delete(&models.MuteEvent{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete old events")
	}
	return result.RowsAffected, nil
}

// CreateErrorLog inserts a new error log into the database
func (r *Repository) CreateErrorLog(errorLog *models.ErrorLog) error {
	if errorLog.Timestamp.IsZero() {
		errorLog.Timestamp = time.Now()
	}
	errorLog.Timestamp = errorLog.Timestamp.UTC()
	result := r.db.Create(errorLog)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert error log")
	}
	return nil
}

// GetErrorLogs retrieves the newest limit error logs, newest first
func (r *Repository) GetErrorLogs(limit int) ([]*models.ErrorLog, error) {
	var logs []*models.ErrorLog
	result := r.db.Order("timestamp DESC").Order("id DESC").Limit(limit).Find(&logs)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query error logs")
	}
	return logs, nil
}

// Clear removes all mute events and error logs from the database
func (r *Repository) Clear() error {
	if result := r.db.Exec("DELETE FROM mute_events"); result.Error != nil {
		return errors.Wrap(result.Error, "failed to clear mute events")
	}
	if result := r.db.Exec("DELETE FROM error_logs"); result.Error != nil {
		return errors.Wrap(result.Error, "failed to clear error logs")
	}
	return nil
}
