package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/photosort/photosort-backend/internal/accounts"
	"github.com/photosort/photosort-backend/internal/subscriptions"
	"github.com/photosort/photosort-backend/pkg/db/models"
	"github.com/photosort/photosort-backend/pkg/enums"
	pkgerrors "github.com/photosort/photosort-backend/pkg/errors"
	"github.com/photosort/photosort-backend/pkg/logger"
)

type accountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	WithTx(tx *gorm.DB) *accounts.Repository
}

type subscriptionRepository interface {
	FindByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	WithTx(tx *gorm.DB) *subscriptions.Repository
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the webhook processor.
type ServiceParams struct {
	AccountRepo       accountRepository
	SubscriptionRepo  subscriptionRepository
	StripeClient      subscriptions.StripeClient
	TransactionRunner txRunner
	PremiumPeriod     time.Duration
	Logger            *logger.Logger
}

// Service applies Stripe lifecycle events to accounts and subscriptions.
// Every handler is idempotent: redeliveries and out-of-order deliveries
// converge on the same state.
type Service struct {
	accounts      accountRepository
	subscriptions subscriptionRepository
	stripe        subscriptions.StripeClient
	txRunner      txRunner
	premiumPeriod time.Duration
	logg          *logger.Logger
	now           func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.AccountRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "account repo required")
	}
	if params.SubscriptionRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription repo required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.PremiumPeriod <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "premium period must be positive")
	}
	return &Service{
		accounts:      params.AccountRepo,
		subscriptions: params.SubscriptionRepo,
		stripe:        params.StripeClient,
		txRunner:      params.TransactionRunner,
		premiumPeriod: params.PremiumPeriod,
		logg:          params.Logger,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
		}
		return s.handleCheckoutCompleted(ctx, &session)
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		deleted := event.Type == stripe.EventTypeCustomerSubscriptionDeleted
		return s.syncSubscription(ctx, &stripeSub, deleted)
	case stripe.EventTypeInvoicePaid, stripe.EventTypeInvoicePaymentFailed:
		subscriptionID := event.GetObjectValue("subscription")
		if subscriptionID == "" {
			s.warn(ctx, fmt.Sprintf("invoice event %s carries no subscription, acknowledging", event.ID))
			return nil
		}
		stripeSub, err := s.stripe.GetSubscription(ctx, subscriptionID, &stripe.SubscriptionParams{})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
		}
		return s.syncSubscription(ctx, stripeSub, false)
	default:
		return nil
	}
}

// handleCheckoutCompleted grants premium to the account named in the session
// metadata. The grant runs to the subscription's period end when Stripe
// reports one, otherwise a flat premium period from now. Both forms are
// absolute assignments, so a redelivered event lands on the same row state.
func (s *Service) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	accountID, err := checkoutAccountID(session)
	if err != nil {
		s.warn(ctx, fmt.Sprintf("checkout session %s has no resolvable account, acknowledging", session.ID))
		return nil
	}

	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		s.warn(ctx, fmt.Sprintf("checkout session %s references unknown account %s, acknowledging", session.ID, accountID))
		return nil
	}

	var stripeSub *stripe.Subscription
	if session.Subscription != nil && session.Subscription.ID != "" {
		fetched, err := s.stripe.GetSubscription(ctx, session.Subscription.ID, &stripe.SubscriptionParams{})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch checkout subscription")
		}
		stripeSub = fetched
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		until := s.now().Add(s.premiumPeriod)

		if stripeSub != nil {
			incoming, err := subscriptions.BuildSubscriptionFromStripe(stripeSub, accountID)
			if err != nil {
				s.warn(ctx, fmt.Sprintf("checkout subscription %s is unmappable, granting flat period: %v", stripeSub.ID, err))
			} else {
				if err := s.upsertSubscription(ctx, tx, incoming); err != nil {
					return err
				}
				if incoming.CurrentPeriodEnd != nil {
					until = *incoming.CurrentPeriodEnd
				}
			}
		}

		return s.accounts.WithTx(tx).GrantPremium(ctx, accountID, until)
	})
}

// syncSubscription folds a provider subscription snapshot into storage and
// adjusts the account's premium grant to match.
func (s *Service) syncSubscription(ctx context.Context, stripeSub *stripe.Subscription, deleted bool) error {
	if stripeSub == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription is required")
	}

	stored, err := s.subscriptions.FindByStripeID(ctx, stripeSub.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}

	accountID, metadataErr := subscriptions.AccountIDFromMetadata(stripeSub.Metadata)
	if metadataErr != nil {
		if stored == nil {
			s.warn(ctx, fmt.Sprintf("subscription %s has no resolvable account, acknowledging", stripeSub.ID))
			return nil
		}
		accountID = stored.AccountID
	}

	incoming, err := subscriptions.BuildSubscriptionFromStripe(stripeSub, accountID)
	if err != nil {
		s.warn(ctx, fmt.Sprintf("subscription %s is unmappable, acknowledging: %v", stripeSub.ID, err))
		return nil
	}
	if deleted {
		incoming.Status = enums.SubscriptionStatusCanceled
		if incoming.CanceledAt == nil {
			canceledAt := s.now()
			incoming.CanceledAt = &canceledAt
		}
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.subscriptions.WithTx(tx)

		current := stored
		if current == nil {
			if err := repo.Create(ctx, incoming); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
			}
			current = incoming
		} else {
			if !subscriptions.Apply(current, incoming) {
				s.warn(ctx, fmt.Sprintf("subscription %s delivery changed nothing, touching row", stripeSub.ID))
			}
			// Persist even when nothing moved so updated_at records the delivery.
			if err := repo.Update(ctx, current); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
			}
		}

		return s.reconcilePremium(ctx, tx, current)
	})
}

// reconcilePremium aligns the account row with the subscription's standing.
// past_due is a grace state: the existing grant keeps running until its own
// expiry rather than being pulled immediately.
func (s *Service) reconcilePremium(ctx context.Context, tx *gorm.DB, sub *models.Subscription) error {
	repo := s.accounts.WithTx(tx)

	switch {
	case sub.Status == enums.SubscriptionStatusCanceled,
		sub.Status == enums.SubscriptionStatusUnpaid:
		return repo.RevokePremium(ctx, sub.AccountID)
	case subscriptions.IsActiveStatus(sub.Status):
		until := s.now().Add(s.premiumPeriod)
		if sub.CurrentPeriodEnd != nil {
			until = *sub.CurrentPeriodEnd
		}
		return repo.GrantPremium(ctx, sub.AccountID, until)
	default:
		return nil
	}
}

func (s *Service) upsertSubscription(ctx context.Context, tx *gorm.DB, incoming *models.Subscription) error {
	repo := s.subscriptions.WithTx(tx)

	stored, err := repo.FindByStripeID(ctx, incoming.StripeSubscriptionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if stored == nil {
		if err := repo.Create(ctx, incoming); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
		}
		return nil
	}
	subscriptions.Apply(stored, incoming)
	// Persist even when nothing moved so updated_at records the delivery.
	if err := repo.Update(ctx, stored); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
	}
	return nil
}

func (s *Service) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}

func checkoutAccountID(session *stripe.CheckoutSession) (uuid.UUID, error) {
	if session == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session is required")
	}
	if id, err := subscriptions.AccountIDFromMetadata(session.Metadata); err == nil {
		return id, nil
	}
	if session.ClientReferenceID != "" {
		if id, err := uuid.Parse(session.ClientReferenceID); err == nil {
			return id, nil
		}
	}
	return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "account_id missing from checkout session")
}
