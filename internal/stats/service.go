package stats

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/photosort/photosort-backend/pkg/db/models"
	pkgerrors "github.com/photosort/photosort-backend/pkg/errors"
)

// Service computes the per-date platform rollup. Rollup is safe to re-run
// for any date: the write is an upsert keyed on the date column.
type Service struct {
	db *gorm.DB
}

// NewService binds the rollup service to the provided GORM connection.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type usageAggregates struct {
	Sessions       int64
	Photos         int64
	Errors         int64
	ProcessingTime float64
}

// Rollup aggregates account and usage activity for the UTC date containing
// the provided instant and upserts the daily_stats row.
func (s *Service) Rollup(ctx context.Context, date time.Time) (*models.DailyStats, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	conn := s.db.WithContext(ctx)

	var totalAccounts int64
	if err := conn.Model(&models.Account{}).
		Where("created_at < ?", dayEnd).
		Count(&totalAccounts).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count accounts")
	}

	var newAccounts int64
	if err := conn.Model(&models.Account{}).
		Where("created_at >= ? AND created_at < ?", dayStart, dayEnd).
		Count(&newAccounts).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count new accounts")
	}

	var premiumAccounts int64
	if err := conn.Model(&models.Account{}).
		Where("is_premium = ? AND premium_expires > ?", true, dayStart).
		Count(&premiumAccounts).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count premium accounts")
	}

	var activeAccounts int64
	if err := conn.Model(&models.UsageLog{}).
		Where("created_at >= ? AND created_at < ?", dayStart, dayEnd).
		Distinct("account_id").
		Count(&activeAccounts).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active accounts")
	}

	var agg usageAggregates
	if err := conn.Model(&models.UsageLog{}).
		Select(`COUNT(*) AS sessions,
			COALESCE(SUM(photos_processed), 0) AS photos,
			COALESCE(SUM(photos_with_errors), 0) AS errors,
			COALESCE(SUM(processing_time), 0) AS processing_time`).
		Where("created_at >= ? AND created_at < ?", dayStart, dayEnd).
		Scan(&agg).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate usage logs")
	}

	row := &models.DailyStats{
		ID:                   uuid.New(),
		Date:                 dayStart,
		TotalAccounts:        totalAccounts,
		NewAccounts:          newAccounts,
		ActiveAccounts:       activeAccounts,
		PremiumAccounts:      premiumAccounts,
		TotalPhotosProcessed: agg.Photos,
		TotalProcessingTime:  agg.ProcessingTime,
		TotalSessions:        agg.Sessions,
		TotalErrors:          agg.Errors,
	}
	if agg.Photos > 0 {
		row.ErrorRate = float64(agg.Errors) / float64(agg.Photos) * 100
	}

	err := conn.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_accounts",
			"new_accounts",
			"active_accounts",
			"premium_accounts",
			"total_photos_processed",
			"total_processing_time",
			"total_sessions",
			"total_errors",
			"error_rate",
			"updated_at",
		}),
	}).Create(row).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert daily stats")
	}

	return row, nil
}
