package subscriptions

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/photosort/photosort-backend/pkg/db/models"
	"github.com/photosort/photosort-backend/pkg/enums"
	pkgerrors "github.com/photosort/photosort-backend/pkg/errors"
)

// AccountIDFromMetadata extracts the account ID attached to Stripe metadata
// when checkout was initiated.
func AccountIDFromMetadata(metadata map[string]string) (uuid.UUID, error) {
	if metadata == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription metadata is required")
	}
	raw, ok := metadata["account_id"]
	if !ok || strings.TrimSpace(raw) == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "account_id missing from metadata")
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid account_id metadata")
	}
	return id, nil
}

// BuildSubscriptionFromStripe maps a Stripe subscription into the canonical model.
func BuildSubscriptionFromStripe(stripeSub *stripe.Subscription, accountID uuid.UUID) (*models.Subscription, error) {
	if stripeSub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}
	status, err := mapStripeStatus(stripeSub.Status)
	if err != nil {
		return nil, err
	}

	startTS, endTS := periodFromStripe(stripeSub)

	return &models.Subscription{
		AccountID:            accountID,
		StripeSubscriptionID: stripeSub.ID,
		StripeCustomerID:     customerIDPtr(stripeSub),
		StripePriceID:        trimmedPtr(determinePriceID(stripeSub)),
		Status:               status,
		CurrentPeriodStart:   toTimePtr(startTS),
		CurrentPeriodEnd:     toTimePtr(endTS),
		CancelAtPeriodEnd:    stripeSub.CancelAtPeriodEnd,
		CanceledAt:           toTimePtr(stripeSub.CanceledAt),
	}, nil
}

// UpdateSubscriptionFromStripe folds new Stripe data into the stored row via
// the convergent transition. Returns whether anything changed.
func UpdateSubscriptionFromStripe(target *models.Subscription, stripeSub *stripe.Subscription) (bool, error) {
	if target == nil {
		return false, pkgerrors.New(pkgerrors.CodeInternal, "target subscription is nil")
	}
	incoming, err := BuildSubscriptionFromStripe(stripeSub, target.AccountID)
	if err != nil {
		return false, err
	}
	return Apply(target, incoming), nil
}

func mapStripeStatus(status stripe.SubscriptionStatus) (enums.SubscriptionStatus, error) {
	switch status {
	case stripe.SubscriptionStatusTrialing:
		return enums.SubscriptionStatusTrialing, nil
	case stripe.SubscriptionStatusActive:
		return enums.SubscriptionStatusActive, nil
	case stripe.SubscriptionStatusPastDue:
		return enums.SubscriptionStatusPastDue, nil
	case stripe.SubscriptionStatusUnpaid:
		return enums.SubscriptionStatusUnpaid, nil
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return enums.SubscriptionStatusCanceled, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeDependency, "unmapped stripe subscription status "+string(status))
	}
}

func periodFromStripe(sub *stripe.Subscription) (int64, int64) {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0] == nil {
		return 0, 0
	}
	item := sub.Items.Data[0]
	return item.CurrentPeriodStart, item.CurrentPeriodEnd
}

func determinePriceID(sub *stripe.Subscription) string {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0] == nil {
		return ""
	}
	if sub.Items.Data[0].Price != nil {
		return sub.Items.Data[0].Price.ID
	}
	return ""
}

func customerIDPtr(sub *stripe.Subscription) *string {
	if sub.Customer == nil {
		return nil
	}
	return trimmedPtr(sub.Customer.ID)
}

func trimmedPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func toTimePtr(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
