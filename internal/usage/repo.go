package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/photosort/photosort-backend/internal/repo"
	"github.com/photosort/photosort-backend/pkg/db/models"
)

// WindowTotals aggregates an account's usage logs over a time window.
type WindowTotals struct {
	Sessions       int64
	Photos         int64
	Errors         int64
	Skipped        int64
	ProcessingTime float64
}

// Repository exposes usage-log persistence operations. Logs are append-only.
type Repository struct {
	repo.Base
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(tx)}
}

// Create persists one usage log.
func (r *Repository) Create(ctx context.Context, log *models.UsageLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	return r.DB(ctx).Create(log).Error
}

// WindowTotals aggregates the account's logs created at or after since.
func (r *Repository) WindowTotals(ctx context.Context, accountID uuid.UUID, since time.Time) (WindowTotals, error) {
	var totals WindowTotals
	err := r.DB(ctx).
		Model(&models.UsageLog{}).
		Select(`COUNT(*) AS sessions,
			COALESCE(SUM(photos_processed), 0) AS photos,
			COALESCE(SUM(photos_with_errors), 0) AS errors,
			COALESCE(SUM(photos_skipped), 0) AS skipped,
			COALESCE(SUM(processing_time), 0) AS processing_time`).
		Where("account_id = ? AND created_at >= ?", accountID, since).
		Scan(&totals).Error
	return totals, err
}

// ListRecent returns the account's newest logs, capped at limit.
func (r *Repository) ListRecent(ctx context.Context, accountID uuid.UUID, limit int) ([]models.UsageLog, error) {
	var logs []models.UsageLog
	err := r.DB(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
