package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/photosort/photosort-backend/pkg/logger"
)

type premiumReaper interface {
	ClearLapsedPremium(ctx context.Context, now time.Time) (int64, error)
}

// PremiumExpiryJobParams configures the lapsed-premium cleanup.
type PremiumExpiryJobParams struct {
	Logger   *logger.Logger
	Accounts premiumReaper
}

type premiumExpiryJob struct {
	logg     *logger.Logger
	accounts premiumReaper
	now      func() time.Time
}

// NewPremiumExpiryJob constructs the job that clears expired premium flags.
// Entitlement checks never trust the flag alone, so this is bookkeeping, not
// enforcement.
func NewPremiumExpiryJob(params PremiumExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("account repository required")
	}
	return &premiumExpiryJob{
		logg:     params.Logger,
		accounts: params.Accounts,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (j *premiumExpiryJob) Name() string { return "premium_expiry_cleanup" }

func (j *premiumExpiryJob) Run(ctx context.Context) error {
	cleared, err := j.accounts.ClearLapsedPremium(ctx, j.now())
	if err != nil {
		return fmt.Errorf("clear lapsed premium: %w", err)
	}
	if cleared > 0 {
		j.logg.Info(j.logg.WithField(ctx, "cleared", cleared), "lapsed premium flags cleared")
	}
	return nil
}
