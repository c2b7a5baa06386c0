package models

import (
	"time"

	"github.com/google/uuid"
)

// DailyStats is the per-date rollup of account and usage activity. The unique
// index on Date keeps the aggregation job idempotent: re-running a rollup
// overwrites, never accumulates.
type DailyStats struct {
	ID                   uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Date                 time.Time `gorm:"column:date;type:date;not null;uniqueIndex"`
	TotalAccounts        int64     `gorm:"column:total_accounts;not null;default:0"`
	NewAccounts          int64     `gorm:"column:new_accounts;not null;default:0"`
	ActiveAccounts       int64     `gorm:"column:active_accounts;not null;default:0"`
	PremiumAccounts      int64     `gorm:"column:premium_accounts;not null;default:0"`
	TotalPhotosProcessed int64     `gorm:"column:total_photos_processed;not null;default:0"`
	TotalProcessingTime  float64   `gorm:"column:total_processing_time;not null;default:0"`
	TotalSessions        int64     `gorm:"column:total_sessions;not null;default:0"`
	TotalErrors          int64     `gorm:"column:total_errors;not null;default:0"`
	ErrorRate            float64   `gorm:"column:error_rate;not null;default:0"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
