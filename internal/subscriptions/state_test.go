package subscriptions

import (
	"testing"
	"time"

	"github.com/photosort/photosort-backend/pkg/db/models"
	"github.com/photosort/photosort-backend/pkg/enums"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestIsActive(t *testing.T) {
	cases := []struct {
		name string
		sub  *models.Subscription
		want bool
	}{
		{"nil", nil, false},
		{"active", &models.Subscription{Status: enums.SubscriptionStatusActive}, true},
		{"trialing", &models.Subscription{Status: enums.SubscriptionStatusTrialing}, true},
		{"past_due", &models.Subscription{Status: enums.SubscriptionStatusPastDue}, false},
		{"unpaid", &models.Subscription{Status: enums.SubscriptionStatusUnpaid}, false},
		{"canceled", &models.Subscription{Status: enums.SubscriptionStatusCanceled}, false},
		{
			"active but winding down",
			&models.Subscription{Status: enums.SubscriptionStatusActive, CancelAtPeriodEnd: true},
			false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsActive(tc.sub); got != tc.want {
				t.Fatalf("IsActive = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDaysRemaining(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if got := DaysRemaining(nil, now); got != 0 {
		t.Fatalf("nil sub: got %d", got)
	}
	if got := DaysRemaining(&models.Subscription{}, now); got != 0 {
		t.Fatalf("no period end: got %d", got)
	}

	sub := &models.Subscription{CurrentPeriodEnd: timePtr(now.Add(10*24*time.Hour + 6*time.Hour))}
	if got := DaysRemaining(sub, now); got != 10 {
		t.Fatalf("got %d, want 10", got)
	}

	sub.CurrentPeriodEnd = timePtr(now.Add(-time.Hour))
	if got := DaysRemaining(sub, now); got != 0 {
		t.Fatalf("lapsed period: got %d", got)
	}
}

func TestApplyCancellationIsTerminal(t *testing.T) {
	stored := &models.Subscription{Status: enums.SubscriptionStatusCanceled}
	incoming := &models.Subscription{Status: enums.SubscriptionStatusActive}

	if Apply(stored, incoming) {
		t.Fatalf("canceled subscription must not reactivate")
	}
	if stored.Status != enums.SubscriptionStatusCanceled {
		t.Fatalf("status mutated to %s", stored.Status)
	}
}

func TestApplyConvergesRegardlessOfOrder(t *testing.T) {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)
	canceledAt := start.Add(10 * 24 * time.Hour)

	created := func() *models.Subscription {
		return &models.Subscription{
			Status:             enums.SubscriptionStatusActive,
			CurrentPeriodStart: timePtr(start),
			CurrentPeriodEnd:   timePtr(end),
		}
	}
	deleted := func() *models.Subscription {
		return &models.Subscription{
			Status:             enums.SubscriptionStatusCanceled,
			CurrentPeriodStart: timePtr(start),
			CurrentPeriodEnd:   timePtr(end),
			CanceledAt:         timePtr(canceledAt),
		}
	}

	forward := created()
	Apply(forward, deleted())

	backward := deleted()
	Apply(backward, created())

	if forward.Status != backward.Status || forward.Status != enums.SubscriptionStatusCanceled {
		t.Fatalf("orders diverged: forward=%s backward=%s", forward.Status, backward.Status)
	}
	if forward.CanceledAt == nil || backward.CanceledAt == nil {
		t.Fatalf("canceled_at lost in one ordering")
	}
}

func TestApplyIgnoresStalePeriodFields(t *testing.T) {
	oldStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newStart := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	stored := &models.Subscription{
		Status:             enums.SubscriptionStatusActive,
		CurrentPeriodStart: timePtr(newStart),
		CurrentPeriodEnd:   timePtr(newStart.Add(30 * 24 * time.Hour)),
	}
	stale := &models.Subscription{
		Status:             enums.SubscriptionStatusTrialing,
		CurrentPeriodStart: timePtr(oldStart),
		CurrentPeriodEnd:   timePtr(oldStart.Add(30 * 24 * time.Hour)),
	}

	if Apply(stored, stale) {
		t.Fatalf("stale lower-precedence delivery must be a no-op")
	}
	if stored.Status != enums.SubscriptionStatusActive {
		t.Fatalf("status regressed to %s", stored.Status)
	}
	if !stored.CurrentPeriodStart.Equal(newStart) {
		t.Fatalf("period start regressed to %v", stored.CurrentPeriodStart)
	}
}

func TestApplyStaleCancellationStillLands(t *testing.T) {
	oldStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newStart := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	stored := &models.Subscription{
		Status:             enums.SubscriptionStatusActive,
		CurrentPeriodStart: timePtr(newStart),
	}
	stale := &models.Subscription{
		Status:             enums.SubscriptionStatusCanceled,
		CurrentPeriodStart: timePtr(oldStart),
		CanceledAt:         timePtr(oldStart.Add(5 * 24 * time.Hour)),
	}

	if !Apply(stored, stale) {
		t.Fatalf("cancellation must land even from an older period")
	}
	if stored.Status != enums.SubscriptionStatusCanceled {
		t.Fatalf("status = %s, want canceled", stored.Status)
	}
	if !stored.CurrentPeriodStart.Equal(newStart) {
		t.Fatalf("stale period fields must not overwrite newer ones")
	}
}

func TestApplyRecoversFromPastDue(t *testing.T) {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	stored := &models.Subscription{
		Status:             enums.SubscriptionStatusPastDue,
		CurrentPeriodStart: timePtr(start),
	}
	recovered := &models.Subscription{
		Status:             enums.SubscriptionStatusActive,
		CurrentPeriodStart: timePtr(start),
	}

	if !Apply(stored, recovered) {
		t.Fatalf("same-period recovery should apply")
	}
	if stored.Status != enums.SubscriptionStatusActive {
		t.Fatalf("status = %s, want active", stored.Status)
	}
}
