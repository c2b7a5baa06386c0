package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageLog records one processing session. Rows are append-only; nothing in
// the engine updates or deletes them after creation.
type UsageLog struct {
	ID               uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID        uuid.UUID `gorm:"column:account_id;type:uuid;not null;index"`
	SessionID        string    `gorm:"column:session_id;index"`
	PhotosProcessed  int64     `gorm:"column:photos_processed;not null;default:0"`
	PhotosWithErrors int64     `gorm:"column:photos_with_errors;not null;default:0"`
	PhotosSkipped    int64     `gorm:"column:photos_skipped;not null;default:0"`
	ProcessingTime   float64   `gorm:"column:processing_time"`
	TotalFileSize    int64     `gorm:"column:total_file_size"`
	ProcessingMode   string    `gorm:"column:processing_mode"`
	SortCriteria     string    `gorm:"column:sort_criteria"`
	IPAddress        string    `gorm:"column:ip_address"`
	UserAgent        string    `gorm:"column:user_agent;type:text"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

// SuccessRate returns the percentage of photos that were neither errored nor
// skipped. Zero when nothing was processed.
func (l UsageLog) SuccessRate() float64 {
	if l.PhotosProcessed == 0 {
		return 0
	}
	successful := l.PhotosProcessed - l.PhotosWithErrors - l.PhotosSkipped
	return float64(successful) / float64(l.PhotosProcessed) * 100
}

// AverageProcessingTime returns seconds per photo, zero when nothing was
// processed or no duration was recorded.
func (l UsageLog) AverageProcessingTime() float64 {
	if l.PhotosProcessed == 0 || l.ProcessingTime == 0 {
		return 0
	}
	return l.ProcessingTime / float64(l.PhotosProcessed)
}
