package accounts

import (
	"time"

	"github.com/photosort/photosort-backend/pkg/db/models"
)

// Entitlement is the outcome of evaluating an account against the free-tier
// quota at a single instant. It is a snapshot: the authoritative admission
// decision for a consume happens in the conditional update, not here.
type Entitlement struct {
	Premium        bool       `json:"premium"`
	Unlimited      bool       `json:"unlimited"`
	UsageCount     int64      `json:"usage_count"`
	Limit          int64      `json:"limit"`
	Remaining      int64      `json:"remaining"`
	CanProcess     bool       `json:"can_process"`
	PremiumExpires *time.Time `json:"premium_expires,omitempty"`
}

// PremiumActive reports whether the account holds an unexpired premium grant.
// The comparison is strict: a grant expiring exactly at now is expired. A
// grant with no expiry timestamp never lapses.
func PremiumActive(acct *models.Account, now time.Time) bool {
	if acct == nil || !acct.IsPremium {
		return false
	}
	if acct.PremiumExpires == nil {
		return true
	}
	return acct.PremiumExpires.After(now)
}

// Evaluate derives the account's entitlement at now. Premium accounts are
// unlimited; everyone else is measured against freeLimit. An account whose
// premium lapsed falls back to the free tier with its usage count intact.
func Evaluate(acct *models.Account, now time.Time, freeLimit int64) Entitlement {
	ent := Entitlement{
		UsageCount:     acct.UsageCount,
		Limit:          freeLimit,
		PremiumExpires: acct.PremiumExpires,
	}

	if PremiumActive(acct, now) {
		ent.Premium = true
		ent.Unlimited = true
		ent.CanProcess = true
		return ent
	}

	if remaining := freeLimit - acct.UsageCount; remaining > 0 {
		ent.Remaining = remaining
		ent.CanProcess = true
	}
	return ent
}
