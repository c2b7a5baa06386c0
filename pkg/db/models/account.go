package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is the metered identity entity. Premium access is derived from the
// flag plus expiry, never from the flag alone.
type Account struct {
	ID                   uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email                string     `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash         string     `gorm:"column:password_hash;not null"`
	IsPremium            bool       `gorm:"column:is_premium;not null;default:false"`
	PremiumExpires       *time.Time `gorm:"column:premium_expires"`
	UsageCount           int64      `gorm:"column:usage_count;not null;default:0"`
	TotalPhotosProcessed int64      `gorm:"column:total_photos_processed;not null;default:0"`
	TotalProcessingTime  float64    `gorm:"column:total_processing_time;not null;default:0"`
	IsActive             bool       `gorm:"column:is_active;not null;default:true"`
	LastLoginAt          *time.Time `gorm:"column:last_login_at"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
