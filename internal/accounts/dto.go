package accounts

import (
	"time"

	"github.com/google/uuid"

	"github.com/photosort/photosort-backend/pkg/db/models"
)

// AccountDTO is the public projection of an account. The password hash and
// internal bookkeeping never leave the service boundary.
type AccountDTO struct {
	ID                   uuid.UUID  `json:"id"`
	Email                string     `json:"email"`
	IsPremium            bool       `json:"is_premium"`
	PremiumExpires       *time.Time `json:"premium_expires,omitempty"`
	UsageCount           int64      `json:"usage_count"`
	TotalPhotosProcessed int64      `json:"total_photos_processed"`
	TotalProcessingTime  float64    `json:"total_processing_time"`
	LastLoginAt          *time.Time `json:"last_login_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// NewAccountDTO maps the stored model onto the public shape.
func NewAccountDTO(acct *models.Account) *AccountDTO {
	if acct == nil {
		return nil
	}
	return &AccountDTO{
		ID:                   acct.ID,
		Email:                acct.Email,
		IsPremium:            acct.IsPremium,
		PremiumExpires:       acct.PremiumExpires,
		UsageCount:           acct.UsageCount,
		TotalPhotosProcessed: acct.TotalPhotosProcessed,
		TotalProcessingTime:  acct.TotalProcessingTime,
		LastLoginAt:          acct.LastLoginAt,
		CreatedAt:            acct.CreatedAt,
	}
}
