package subscriptions

import (
	"time"

	"github.com/photosort/photosort-backend/pkg/db/models"
	"github.com/photosort/photosort-backend/pkg/enums"
)

// statusPrecedence orders statuses by how much they constrain the account.
// Higher wins when two deliveries disagree about the same subscription.
var statusPrecedence = map[enums.SubscriptionStatus]int{
	enums.SubscriptionStatusTrialing: 1,
	enums.SubscriptionStatusActive:   2,
	enums.SubscriptionStatusPastDue:  3,
	enums.SubscriptionStatusUnpaid:   4,
	enums.SubscriptionStatusCanceled: 5,
}

// IsActiveStatus reports whether the status grants access.
func IsActiveStatus(status enums.SubscriptionStatus) bool {
	return status == enums.SubscriptionStatusActive ||
		status == enums.SubscriptionStatusTrialing
}

// IsActive reports whether the subscription currently grants access. A
// subscription scheduled for cancellation keeps its status until the period
// ends but no longer counts as active here.
func IsActive(sub *models.Subscription) bool {
	if sub == nil {
		return false
	}
	return IsActiveStatus(sub.Status) && !sub.CancelAtPeriodEnd
}

// DaysRemaining returns whole days until the period ends, zero once the
// period has lapsed or was never set.
func DaysRemaining(sub *models.Subscription, now time.Time) int {
	if sub == nil || sub.CurrentPeriodEnd == nil {
		return 0
	}
	remaining := sub.CurrentPeriodEnd.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Hours() / 24)
}

// Apply merges incoming provider state into the stored subscription so that
// any delivery order converges on the same row. Cancellation is terminal: a
// created or updated event landing after a delete never reactivates the row.
// Period timestamps only move forward, which drops stale redeliveries.
// Returns whether any domain field moved; callers persist the row either way
// so updated_at records every delivery.
func Apply(stored, incoming *models.Subscription) bool {
	if stored == nil || incoming == nil {
		return false
	}

	if stored.Status == enums.SubscriptionStatusCanceled &&
		incoming.Status != enums.SubscriptionStatusCanceled {
		return false
	}

	// A delivery for an older billing period only lands if it carries a more
	// constrained status; its other fields are out of date.
	stale := incoming.CurrentPeriodStart != nil && stored.CurrentPeriodStart != nil &&
		incoming.CurrentPeriodStart.Before(*stored.CurrentPeriodStart)
	if stale {
		if statusPrecedence[incoming.Status] <= statusPrecedence[stored.Status] {
			return false
		}
		stored.Status = incoming.Status
		if incoming.CanceledAt != nil && stored.CanceledAt == nil {
			stored.CanceledAt = incoming.CanceledAt
		}
		return true
	}

	changed := false

	if stored.Status != incoming.Status {
		stored.Status = incoming.Status
		changed = true
	}
	if incoming.CurrentPeriodStart != nil && laterThan(incoming.CurrentPeriodStart, stored.CurrentPeriodStart) {
		stored.CurrentPeriodStart = incoming.CurrentPeriodStart
		changed = true
	}
	if incoming.CurrentPeriodEnd != nil && laterThan(incoming.CurrentPeriodEnd, stored.CurrentPeriodEnd) {
		stored.CurrentPeriodEnd = incoming.CurrentPeriodEnd
		changed = true
	}
	if stored.CancelAtPeriodEnd != incoming.CancelAtPeriodEnd {
		stored.CancelAtPeriodEnd = incoming.CancelAtPeriodEnd
		changed = true
	}
	if incoming.CanceledAt != nil && stored.CanceledAt == nil {
		stored.CanceledAt = incoming.CanceledAt
		changed = true
	}
	if incoming.StripeCustomerID != nil && *incoming.StripeCustomerID != "" {
		if stored.StripeCustomerID == nil || *stored.StripeCustomerID != *incoming.StripeCustomerID {
			stored.StripeCustomerID = incoming.StripeCustomerID
			changed = true
		}
	}
	if incoming.StripePriceID != nil && *incoming.StripePriceID != "" {
		if stored.StripePriceID == nil || *stored.StripePriceID != *incoming.StripePriceID {
			stored.StripePriceID = incoming.StripePriceID
			changed = true
		}
	}

	return changed
}

func laterThan(candidate, current *time.Time) bool {
	if current == nil {
		return true
	}
	return candidate.After(*current)
}
