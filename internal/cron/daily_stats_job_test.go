package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/photosort/photosort-backend/pkg/db/models"
	"github.com/photosort/photosort-backend/pkg/logger"
)

type stubStats struct {
	dates []time.Time
	err   error
}

func (s *stubStats) Rollup(ctx context.Context, date time.Time) (*models.DailyStats, error) {
	s.dates = append(s.dates, date)
	if s.err != nil {
		return nil, s.err
	}
	return &models.DailyStats{Date: date}, nil
}

func TestDailyStatsJobRollsUpYesterdayAndToday(t *testing.T) {
	stats := &stubStats{}
	job, err := NewDailyStatsJob(DailyStatsJobParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test"}),
		Stats:  stats,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(stats.dates) != 2 {
		t.Fatalf("expected 2 rollups, got %d", len(stats.dates))
	}
	if !stats.dates[0].Before(stats.dates[1]) {
		t.Fatalf("expected yesterday before today: %v", stats.dates)
	}
}

func TestDailyStatsJobCollectsFailures(t *testing.T) {
	stats := &stubStats{err: errors.New("db down")}
	job, err := NewDailyStatsJob(DailyStatsJobParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test"}),
		Stats:  stats,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected aggregated error")
	}
	if len(stats.dates) != 2 {
		t.Fatalf("a failed day must not stop the next; got %d attempts", len(stats.dates))
	}
}

type stubReaper struct {
	cleared int64
	err     error
}

func (s *stubReaper) ClearLapsedPremium(ctx context.Context, now time.Time) (int64, error) {
	return s.cleared, s.err
}

func TestPremiumExpiryJob(t *testing.T) {
	job, err := NewPremiumExpiryJob(PremiumExpiryJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Accounts: &stubReaper{cleared: 3},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	failing, err := NewPremiumExpiryJob(PremiumExpiryJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Accounts: &stubReaper{err: errors.New("db down")},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := failing.Run(context.Background()); err == nil {
		t.Fatalf("expected error surfaced")
	}
}
