package usage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/photosort/photosort-backend/internal/accounts"
	"github.com/photosort/photosort-backend/pkg/db/models"
	pkgerrors "github.com/photosort/photosort-backend/pkg/errors"
	"github.com/photosort/photosort-backend/pkg/logger"
)

// statisticsWindow is how far back the statistics endpoint looks.
const statisticsWindow = 30 * 24 * time.Hour

// recentLogsLimit caps the per-account log list in statistics responses.
const recentLogsLimit = 10

type accountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	ConsumeQuota(ctx context.Context, id uuid.UUID, units, limit int64) (accounts.ConsumeOutcome, error)
}

type logStore interface {
	Create(ctx context.Context, log *models.UsageLog) error
	WithTx(tx *gorm.DB) *Repository
	WindowTotals(ctx context.Context, accountID uuid.UUID, since time.Time) (WindowTotals, error)
	ListRecent(ctx context.Context, accountID uuid.UUID, limit int) ([]models.UsageLog, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SessionInput is one processing session reported by a client.
type SessionInput struct {
	PhotosProcessed  int64   `json:"photos_processed" validate:"gte=0"`
	PhotosWithErrors int64   `json:"photos_with_errors" validate:"gte=0"`
	PhotosSkipped    int64   `json:"photos_skipped" validate:"gte=0"`
	ProcessingTime   float64 `json:"processing_time" validate:"gte=0"`
	TotalFileSize    int64   `json:"total_file_size" validate:"gte=0"`
	ProcessingMode   string  `json:"processing_mode"`
	SortCriteria     string  `json:"sort_criteria"`
	SessionID        string  `json:"session_id"`
	IPAddress        string  `json:"-"`
	UserAgent        string  `json:"-"`
}

// SessionResult reports what the engine admitted plus the fresh entitlement.
type SessionResult struct {
	LogID       uuid.UUID            `json:"log_id"`
	Entitlement accounts.Entitlement `json:"entitlement"`
}

// Statistics summarizes the trailing 30 days of an account's activity.
type Statistics struct {
	WindowDays           int              `json:"window_days"`
	TotalSessions        int64            `json:"total_sessions"`
	TotalPhotosProcessed int64            `json:"total_photos_processed"`
	TotalErrors          int64            `json:"total_errors"`
	TotalSkipped         int64            `json:"total_skipped"`
	TotalProcessingTime  float64          `json:"total_processing_time"`
	SuccessRate          float64          `json:"success_rate"`
	AverageTimePerPhoto  float64          `json:"average_time_per_photo"`
	RecentSessions       []SessionSummary `json:"recent_sessions"`
}

// SessionSummary is one usage log shaped for API responses.
type SessionSummary struct {
	ID               uuid.UUID `json:"id"`
	PhotosProcessed  int64     `json:"photos_processed"`
	PhotosWithErrors int64     `json:"photos_with_errors"`
	PhotosSkipped    int64     `json:"photos_skipped"`
	ProcessingTime   float64   `json:"processing_time"`
	SuccessRate      float64   `json:"success_rate"`
	CreatedAt        time.Time `json:"created_at"`
}

// Service is the quota ledger: it admits sessions against the free-tier
// limit and keeps the append-only usage history.
type Service interface {
	Check(ctx context.Context, accountID uuid.UUID, units int64) (*accounts.Entitlement, error)
	RecordSession(ctx context.Context, accountID uuid.UUID, input SessionInput) (*SessionResult, error)
	GetStatistics(ctx context.Context, accountID uuid.UUID) (*Statistics, error)
}

// ServiceParams groups dependencies for the usage service.
type ServiceParams struct {
	AccountRepo       accountStore
	LogRepo           logStore
	TransactionRunner txRunner
	FreeTierLimit     int64
	Logger            *logger.Logger
}

type service struct {
	accounts accountStore
	logs     logStore
	txRunner txRunner
	limit    int64
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the usage service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.AccountRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "account repo required")
	}
	if params.LogRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "log repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.FreeTierLimit <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "free tier limit must be positive")
	}
	return &service{
		accounts: params.AccountRepo,
		logs:     params.LogRepo,
		txRunner: params.TransactionRunner,
		limit:    params.FreeTierLimit,
		logg:     params.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Check evaluates whether the account could process units more photos right
// now. It never mutates the counter; a subsequent RecordSession can still
// lose the race and be rejected.
func (s *service) Check(ctx context.Context, accountID uuid.UUID, units int64) (*accounts.Entitlement, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if units < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "units must be non-negative")
	}

	acct, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	ent := accounts.Evaluate(acct, s.now(), s.limit)
	if units > 0 && !ent.Unlimited && units > ent.Remaining {
		ent.CanProcess = false
	}
	return &ent, nil
}

// RecordSession admits the session against the quota and appends it to the
// ledger. Free-tier admission is a single conditional update, so two racing
// sessions cannot both squeeze past the limit. Premium accounts skip the
// meter entirely; their counter stays where the free tier left it.
func (s *service) RecordSession(ctx context.Context, accountID uuid.UUID, input SessionInput) (*SessionResult, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if err := validateSession(input); err != nil {
		return nil, err
	}

	acct, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	premium := accounts.PremiumActive(acct, s.now())
	if !premium {
		outcome, err := s.accounts.ConsumeQuota(ctx, accountID, input.PhotosProcessed, s.limit)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume quota")
		}
		switch outcome {
		case accounts.ConsumeAccepted:
		case accounts.ConsumeQuotaExceeded:
			return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "monthly photo quota exceeded")
		case accounts.ConsumeNotFound:
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
	}

	log := &models.UsageLog{
		ID:               uuid.New(),
		AccountID:        accountID,
		SessionID:        strings.TrimSpace(input.SessionID),
		PhotosProcessed:  input.PhotosProcessed,
		PhotosWithErrors: input.PhotosWithErrors,
		PhotosSkipped:    input.PhotosSkipped,
		ProcessingTime:   input.ProcessingTime,
		TotalFileSize:    input.TotalFileSize,
		ProcessingMode:   strings.TrimSpace(input.ProcessingMode),
		SortCriteria:     strings.TrimSpace(input.SortCriteria),
		IPAddress:        input.IPAddress,
		UserAgent:        input.UserAgent,
	}

	persist := func() error {
		return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.logs.WithTx(tx).Create(ctx, log); err != nil {
				return err
			}
			return accounts.NewRepository(tx).
				AddProcessingTotals(ctx, accountID, input.PhotosProcessed, input.ProcessingTime)
		})
	}

	if err := persist(); err != nil {
		if !isSerializationFailure(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record session")
		}
		if s.logg != nil {
			s.logg.Warn(ctx, "usage log write hit a serialization failure, retrying once")
		}
		if err := persist(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "record session")
		}
	}

	fresh, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &SessionResult{
		LogID:       log.ID,
		Entitlement: accounts.Evaluate(fresh, s.now(), s.limit),
	}, nil
}

// GetStatistics aggregates the trailing 30 days plus the newest sessions.
func (s *service) GetStatistics(ctx context.Context, accountID uuid.UUID) (*Statistics, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}

	since := s.now().Add(-statisticsWindow)
	totals, err := s.logs.WindowTotals(ctx, accountID, since)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate usage window")
	}

	recent, err := s.logs.ListRecent(ctx, accountID, recentLogsLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list recent sessions")
	}

	stats := &Statistics{
		WindowDays:           int(statisticsWindow.Hours() / 24),
		TotalSessions:        totals.Sessions,
		TotalPhotosProcessed: totals.Photos,
		TotalErrors:          totals.Errors,
		TotalSkipped:         totals.Skipped,
		TotalProcessingTime:  totals.ProcessingTime,
		RecentSessions:       make([]SessionSummary, 0, len(recent)),
	}
	if totals.Photos > 0 {
		successful := totals.Photos - totals.Errors - totals.Skipped
		stats.SuccessRate = float64(successful) / float64(totals.Photos) * 100
		if totals.ProcessingTime > 0 {
			stats.AverageTimePerPhoto = totals.ProcessingTime / float64(totals.Photos)
		}
	}

	for _, log := range recent {
		stats.RecentSessions = append(stats.RecentSessions, SessionSummary{
			ID:               log.ID,
			PhotosProcessed:  log.PhotosProcessed,
			PhotosWithErrors: log.PhotosWithErrors,
			PhotosSkipped:    log.PhotosSkipped,
			ProcessingTime:   log.ProcessingTime,
			SuccessRate:      log.SuccessRate(),
			CreatedAt:        log.CreatedAt,
		})
	}

	return stats, nil
}

func (s *service) loadAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	return acct, nil
}

func validateSession(input SessionInput) error {
	// Zero photos is a legal no-op session: the log row is kept, counters stay put.
	if input.PhotosProcessed < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "photos_processed must be non-negative")
	}
	if input.PhotosWithErrors < 0 || input.PhotosSkipped < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "photo counters must be non-negative")
	}
	if input.PhotosWithErrors+input.PhotosSkipped > input.PhotosProcessed {
		return pkgerrors.New(pkgerrors.CodeValidation, "errors plus skipped cannot exceed photos processed")
	}
	if input.ProcessingTime < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "processing_time must be non-negative")
	}
	if input.TotalFileSize < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "total_file_size must be non-negative")
	}
	return nil
}

func isSerializationFailure(err error) bool {
	dump := pkgerrors.Dump(err)
	return dump.PGCode == "40001" || dump.PGCode == "40P01"
}
