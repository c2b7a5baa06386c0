package accounts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/photosort/photosort-backend/internal/repo"
	"github.com/photosort/photosort-backend/pkg/db/models"
)

// ConsumeOutcome classifies the result of a conditional quota update.
type ConsumeOutcome int

const (
	// ConsumeAccepted means the usage counter advanced atomically.
	ConsumeAccepted ConsumeOutcome = iota
	// ConsumeQuotaExceeded means admitting the units would cross the limit.
	ConsumeQuotaExceeded
	// ConsumeNotFound means no account row matched.
	ConsumeNotFound
)

// Repository exposes account persistence operations.
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

// Create persists a new account record.
func (r *Repository) Create(ctx context.Context, acct *models.Account) error {
	if acct.ID == uuid.Nil {
		acct.ID = uuid.New()
	}
	return r.DB(ctx).Create(acct).Error
}

// GetByID retrieves an account by primary key.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var acct models.Account
	err := r.DB(ctx).Where("id = ?", id).First(&acct).Error
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// GetByEmail retrieves an account by its unique email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	var acct models.Account
	err := r.DB(ctx).Where("email = ?", email).First(&acct).Error
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// ConsumeQuota advances usage_count by units only if the result stays within
// limit. The check and the increment are one statement, so concurrent callers
// racing for the last units cannot both win. RowsAffected = 0 is re-read once
// to tell a missing account apart from an exhausted quota.
func (r *Repository) ConsumeQuota(ctx context.Context, id uuid.UUID, units, limit int64) (ConsumeOutcome, error) {
	res := r.DB(ctx).
		Model(&models.Account{}).
		Where("id = ? AND usage_count + ? <= ?", id, units, limit).
		Updates(map[string]any{
			"usage_count": gorm.Expr("usage_count + ?", units),
		})
	if res.Error != nil {
		return ConsumeNotFound, res.Error
	}
	if res.RowsAffected > 0 {
		return ConsumeAccepted, nil
	}

	var count int64
	err := r.DB(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return ConsumeNotFound, err
	}
	if count == 0 {
		return ConsumeNotFound, nil
	}
	return ConsumeQuotaExceeded, nil
}

// GrantPremium marks the account premium until the provided instant. The
// assignment is absolute, so replaying the same grant converges to the same
// row state.
func (r *Repository) GrantPremium(ctx context.Context, id uuid.UUID, until time.Time) error {
	return r.DB(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_premium":      true,
			"premium_expires": until,
		}).Error
}

// RevokePremium clears the premium grant. Usage counters are untouched so a
// lapsed subscriber resumes the free tier where they left it.
func (r *Repository) RevokePremium(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_premium":      false,
			"premium_expires": nil,
		}).Error
}

// AddProcessingTotals accumulates lifetime processing counters after a
// session has been accepted.
func (r *Repository) AddProcessingTotals(ctx context.Context, id uuid.UUID, photos int64, seconds float64) error {
	return r.DB(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_photos_processed": gorm.Expr("total_photos_processed + ?", photos),
			"total_processing_time":  gorm.Expr("total_processing_time + ?", seconds),
		}).Error
}

// ClearLapsedPremium flips off premium flags whose grant has expired. The
// evaluator already treats such accounts as free tier; this keeps the stored
// flags honest for reporting.
func (r *Repository) ClearLapsedPremium(ctx context.Context, now time.Time) (int64, error) {
	res := r.DB(ctx).
		Model(&models.Account{}).
		Where("is_premium = ? AND premium_expires IS NOT NULL AND premium_expires <= ?", true, now).
		Updates(map[string]any{
			"is_premium":      false,
			"premium_expires": nil,
		})
	return res.RowsAffected, res.Error
}

// TouchLogin records a successful authentication.
func (r *Repository) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.DB(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
}
