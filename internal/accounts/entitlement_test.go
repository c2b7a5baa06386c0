package accounts

import (
	"testing"
	"time"

	"github.com/photosort/photosort-backend/pkg/db/models"
)

func TestPremiumActive(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	cases := []struct {
		name string
		acct *models.Account
		want bool
	}{
		{"nil account", nil, false},
		{"flag off", &models.Account{IsPremium: false, PremiumExpires: &future}, false},
		{"flag on no expiry never lapses", &models.Account{IsPremium: true}, true},
		{"expires in future", &models.Account{IsPremium: true, PremiumExpires: &future}, true},
		{"expired", &models.Account{IsPremium: true, PremiumExpires: &past}, false},
		{"expires exactly now", &models.Account{IsPremium: true, PremiumExpires: &now}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PremiumActive(tc.acct, now); got != tc.want {
				t.Fatalf("PremiumActive = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEvaluateFreeTier(t *testing.T) {
	now := time.Now().UTC()

	acct := &models.Account{UsageCount: 998}
	ent := Evaluate(acct, now, 1000)
	if ent.Premium || ent.Unlimited {
		t.Fatalf("free account evaluated as premium: %+v", ent)
	}
	if ent.Remaining != 2 {
		t.Fatalf("remaining = %d, want 2", ent.Remaining)
	}
	if !ent.CanProcess {
		t.Fatalf("expected free account under limit to be admissible")
	}

	acct.UsageCount = 1000
	ent = Evaluate(acct, now, 1000)
	if ent.CanProcess {
		t.Fatalf("expected exhausted account to be denied")
	}
	if ent.Remaining != 0 {
		t.Fatalf("remaining = %d, want 0", ent.Remaining)
	}
}

func TestEvaluateLapsedPremiumFallsBackToQuota(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)

	acct := &models.Account{IsPremium: true, PremiumExpires: &past, UsageCount: 400}
	ent := Evaluate(acct, now, 1000)
	if ent.Premium {
		t.Fatalf("lapsed premium should not evaluate as premium")
	}
	if ent.Remaining != 600 {
		t.Fatalf("remaining = %d, want 600", ent.Remaining)
	}
	if !ent.CanProcess {
		t.Fatalf("lapsed premium under limit should still process")
	}
}

func TestEvaluatePremiumIsUnlimited(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(30 * 24 * time.Hour)

	acct := &models.Account{IsPremium: true, PremiumExpires: &future, UsageCount: 999999}
	ent := Evaluate(acct, now, 1000)
	if !ent.Premium || !ent.Unlimited || !ent.CanProcess {
		t.Fatalf("premium account should be unlimited: %+v", ent)
	}

	open := &models.Account{IsPremium: true, UsageCount: 999999}
	ent = Evaluate(open, now, 1000)
	if !ent.Premium || !ent.Unlimited || !ent.CanProcess {
		t.Fatalf("open-ended premium grant should be unlimited: %+v", ent)
	}
}
