package usage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/photosort/photosort-backend/internal/accounts"
	"github.com/photosort/photosort-backend/pkg/db/models"
	pkgerrors "github.com/photosort/photosort-backend/pkg/errors"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`CREATE TABLE accounts (
			id text PRIMARY KEY,
			email text NOT NULL UNIQUE,
			password_hash text NOT NULL,
			is_premium boolean NOT NULL DEFAULT false,
			premium_expires datetime,
			usage_count integer NOT NULL DEFAULT 0,
			total_photos_processed integer NOT NULL DEFAULT 0,
			total_processing_time real NOT NULL DEFAULT 0,
			is_active boolean NOT NULL DEFAULT true,
			last_login_at datetime,
			created_at datetime,
			updated_at datetime
		)`,
		`CREATE TABLE usage_logs (
			id text PRIMARY KEY,
			account_id text NOT NULL,
			session_id text,
			photos_processed integer NOT NULL DEFAULT 0,
			photos_with_errors integer NOT NULL DEFAULT 0,
			photos_skipped integer NOT NULL DEFAULT 0,
			processing_time real NOT NULL DEFAULT 0,
			total_file_size integer NOT NULL DEFAULT 0,
			processing_mode text NOT NULL DEFAULT '',
			sort_criteria text NOT NULL DEFAULT '',
			ip_address text NOT NULL DEFAULT '',
			user_agent text NOT NULL DEFAULT '',
			created_at datetime
		)`,
	} {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("failed to create schema: %v", err)
		}
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB, limit int64) Service {
	t.Helper()

	svc, err := NewService(ServiceParams{
		AccountRepo:       accounts.NewRepository(conn),
		LogRepo:           NewRepository(conn),
		TransactionRunner: gormTxRunner{db: conn},
		FreeTierLimit:     limit,
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc
}

func seedAccount(t *testing.T, conn *gorm.DB, usage int64, premiumUntil *time.Time) *models.Account {
	t.Helper()

	acct := &models.Account{
		ID:             uuid.New(),
		Email:          fmt.Sprintf("ps_test_%s@example.com", uuid.NewString()),
		PasswordHash:   "hash",
		IsActive:       true,
		UsageCount:     usage,
		IsPremium:      premiumUntil != nil,
		PremiumExpires: premiumUntil,
	}
	if err := conn.Create(acct).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	return acct
}

func TestRecordSessionConsumesQuota(t *testing.T) {
	conn := openTestDB(t)
	svc := newTestService(t, conn, 1000)
	ctx := context.Background()

	acct := seedAccount(t, conn, 990, nil)

	result, err := svc.RecordSession(ctx, acct.ID, SessionInput{
		PhotosProcessed:  10,
		PhotosWithErrors: 2,
		PhotosSkipped:    1,
		ProcessingTime:   5.5,
		SessionID:        "sess-1",
	})
	if err != nil {
		t.Fatalf("record session: %v", err)
	}
	if result.LogID == uuid.Nil {
		t.Fatalf("expected persisted log id")
	}
	if result.Entitlement.UsageCount != 1000 || result.Entitlement.Remaining != 0 {
		t.Fatalf("unexpected entitlement %+v", result.Entitlement)
	}

	var acctRow models.Account
	if err := conn.First(&acctRow, "id = ?", acct.ID).Error; err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if acctRow.TotalPhotosProcessed != 10 {
		t.Fatalf("total_photos_processed = %d, want 10", acctRow.TotalPhotosProcessed)
	}
	if acctRow.TotalProcessingTime != 5.5 {
		t.Fatalf("total_processing_time = %v, want 5.5", acctRow.TotalProcessingTime)
	}
}

func TestRecordSessionRejectsOverQuota(t *testing.T) {
	conn := openTestDB(t)
	svc := newTestService(t, conn, 1000)
	ctx := context.Background()

	acct := seedAccount(t, conn, 998, nil)

	_, err := svc.RecordSession(ctx, acct.ID, SessionInput{PhotosProcessed: 3})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeRateLimit {
		t.Fatalf("expected rate limit error, got %v", err)
	}

	var count int64
	if err := conn.Model(&models.UsageLog{}).Count(&count).Error; err != nil {
		t.Fatalf("count logs: %v", err)
	}
	if count != 0 {
		t.Fatalf("rejected session must not be logged; found %d rows", count)
	}

	var acctRow models.Account
	if err := conn.First(&acctRow, "id = ?", acct.ID).Error; err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if acctRow.UsageCount != 998 {
		t.Fatalf("usage_count moved to %d on a rejected session", acctRow.UsageCount)
	}
}

func TestRecordSessionPremiumBypassesMeter(t *testing.T) {
	conn := openTestDB(t)
	svc := newTestService(t, conn, 1000)
	ctx := context.Background()

	until := time.Now().UTC().Add(30 * 24 * time.Hour)
	acct := seedAccount(t, conn, 1000, &until)

	result, err := svc.RecordSession(ctx, acct.ID, SessionInput{PhotosProcessed: 50})
	if err != nil {
		t.Fatalf("premium session rejected: %v", err)
	}
	if !result.Entitlement.Unlimited {
		t.Fatalf("expected unlimited entitlement, got %+v", result.Entitlement)
	}

	var acctRow models.Account
	if err := conn.First(&acctRow, "id = ?", acct.ID).Error; err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if acctRow.UsageCount != 1000 {
		t.Fatalf("premium session must not move the meter; usage_count = %d", acctRow.UsageCount)
	}
	if acctRow.TotalPhotosProcessed != 50 {
		t.Fatalf("lifetime totals should still accumulate; got %d", acctRow.TotalPhotosProcessed)
	}
}

func TestRecordSessionZeroPhotosIsNoOp(t *testing.T) {
	conn := openTestDB(t)
	svc := newTestService(t, conn, 1000)
	ctx := context.Background()

	// Even an exhausted account may report an empty session.
	acct := seedAccount(t, conn, 1000, nil)

	result, err := svc.RecordSession(ctx, acct.ID, SessionInput{PhotosProcessed: 0, SessionID: "sess-empty"})
	if err != nil {
		t.Fatalf("zero-photo session rejected: %v", err)
	}
	if result.LogID == uuid.Nil {
		t.Fatalf("expected the empty session to be logged")
	}

	var acctRow models.Account
	if err := conn.First(&acctRow, "id = ?", acct.ID).Error; err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if acctRow.UsageCount != 1000 || acctRow.TotalPhotosProcessed != 0 {
		t.Fatalf("counters moved on a zero-photo session: %+v", acctRow)
	}
}

func TestRecordSessionValidation(t *testing.T) {
	conn := openTestDB(t)
	svc := newTestService(t, conn, 1000)
	ctx := context.Background()

	acct := seedAccount(t, conn, 0, nil)

	cases := []struct {
		name  string
		input SessionInput
	}{
		{"negative photos", SessionInput{PhotosProcessed: -1}},
		{"negative errors", SessionInput{PhotosProcessed: 5, PhotosWithErrors: -1}},
		{"errors exceed processed", SessionInput{PhotosProcessed: 5, PhotosWithErrors: 4, PhotosSkipped: 2}},
		{"negative time", SessionInput{PhotosProcessed: 5, ProcessingTime: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RecordSession(ctx, acct.ID, tc.input)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRecordSessionUnknownAccount(t *testing.T) {
	conn := openTestDB(t)
	svc := newTestService(t, conn, 1000)

	_, err := svc.RecordSession(context.Background(), uuid.New(), SessionInput{PhotosProcessed: 1})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestCheckDoesNotMutate(t *testing.T) {
	conn := openTestDB(t)
	svc := newTestService(t, conn, 1000)
	ctx := context.Background()

	acct := seedAccount(t, conn, 998, nil)

	ent, err := svc.Check(ctx, acct.ID, 2)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !ent.CanProcess {
		t.Fatalf("998+2 should be admissible: %+v", ent)
	}

	ent, err = svc.Check(ctx, acct.ID, 3)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if ent.CanProcess {
		t.Fatalf("998+3 should be denied: %+v", ent)
	}

	var acctRow models.Account
	if err := conn.First(&acctRow, "id = ?", acct.ID).Error; err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if acctRow.UsageCount != 998 {
		t.Fatalf("check must not move the counter; got %d", acctRow.UsageCount)
	}
}

func TestGetStatistics(t *testing.T) {
	conn := openTestDB(t)
	svc := newTestService(t, conn, 1000)
	ctx := context.Background()

	acct := seedAccount(t, conn, 0, nil)

	// 100 photos total, 20 errors, 10 skipped: 70% success.
	sessions := []SessionInput{
		{PhotosProcessed: 60, PhotosWithErrors: 12, PhotosSkipped: 6, ProcessingTime: 30},
		{PhotosProcessed: 40, PhotosWithErrors: 8, PhotosSkipped: 4, ProcessingTime: 20},
	}
	for _, input := range sessions {
		if _, err := svc.RecordSession(ctx, acct.ID, input); err != nil {
			t.Fatalf("record session: %v", err)
		}
	}

	stats, err := svc.GetStatistics(ctx, acct.ID)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalSessions != 2 || stats.TotalPhotosProcessed != 100 {
		t.Fatalf("unexpected totals %+v", stats)
	}
	if stats.SuccessRate != 70 {
		t.Fatalf("success rate = %v, want 70", stats.SuccessRate)
	}
	if stats.AverageTimePerPhoto != 0.5 {
		t.Fatalf("average time per photo = %v, want 0.5", stats.AverageTimePerPhoto)
	}
	if len(stats.RecentSessions) != 2 {
		t.Fatalf("expected 2 recent sessions, got %d", len(stats.RecentSessions))
	}
}

func TestGetStatisticsEmptyWindow(t *testing.T) {
	conn := openTestDB(t)
	svc := newTestService(t, conn, 1000)

	acct := seedAccount(t, conn, 0, nil)

	stats, err := svc.GetStatistics(context.Background(), acct.ID)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.SuccessRate != 0 || stats.AverageTimePerPhoto != 0 {
		t.Fatalf("zero sessions must not divide: %+v", stats)
	}
	if len(stats.RecentSessions) != 0 {
		t.Fatalf("expected no recent sessions")
	}
}
