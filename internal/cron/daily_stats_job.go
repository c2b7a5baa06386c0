package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/photosort/photosort-backend/pkg/db/models"
	"github.com/photosort/photosort-backend/pkg/logger"
)

type statsRoller interface {
	Rollup(ctx context.Context, date time.Time) (*models.DailyStats, error)
}

// DailyStatsJobParams configures the platform rollup job.
type DailyStatsJobParams struct {
	Logger *logger.Logger
	Stats  statsRoller
}

type dailyStatsJob struct {
	logg  *logger.Logger
	stats statsRoller
	now   func() time.Time
}

// NewDailyStatsJob constructs the daily stats rollup job. Each cycle rolls up
// yesterday (to finalize it) and today (for a fresh partial), so a worker that
// was down for a cycle still converges on complete numbers.
func NewDailyStatsJob(params DailyStatsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Stats == nil {
		return nil, fmt.Errorf("stats service required")
	}
	return &dailyStatsJob{
		logg:  params.Logger,
		stats: params.Stats,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

func (j *dailyStatsJob) Name() string { return "daily_stats_rollup" }

func (j *dailyStatsJob) Run(ctx context.Context) error {
	now := j.now()

	var errs error
	for _, day := range []time.Time{now.Add(-24 * time.Hour), now} {
		row, err := j.stats.Rollup(ctx, day)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("rollup %s: %w", day.Format("2006-01-02"), err))
			continue
		}
		dayCtx := j.logg.WithFields(ctx, map[string]any{
			"date":     row.Date.Format("2006-01-02"),
			"sessions": row.TotalSessions,
			"photos":   row.TotalPhotosProcessed,
		})
		j.logg.Info(dayCtx, "daily stats rolled up")
	}
	return errs
}
