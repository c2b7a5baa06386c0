package subscriptions

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/photosort/photosort-backend/pkg/db/models"
	"github.com/photosort/photosort-backend/pkg/enums"
	pkgerrors "github.com/photosort/photosort-backend/pkg/errors"
)

type accountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// CheckoutSession is the client-facing handle for a started checkout.
type CheckoutSession struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// Status summarizes an account's subscription standing.
type Status struct {
	HasSubscription   bool                     `json:"has_subscription"`
	Status            enums.SubscriptionStatus `json:"status,omitempty"`
	Active            bool                     `json:"active"`
	CancelAtPeriodEnd bool                     `json:"cancel_at_period_end"`
	CurrentPeriodEnd  *time.Time               `json:"current_period_end,omitempty"`
	DaysRemaining     int                      `json:"days_remaining"`
}

// Service drives checkout initiation and subscription status reads.
type Service interface {
	StartCheckout(ctx context.Context, accountID uuid.UUID) (*CheckoutSession, error)
	GetStatus(ctx context.Context, accountID uuid.UUID) (*Status, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo           *Repository
	AccountRepo    accountRepository
	StripeClient   StripeClient
	DefaultPriceID string
	SuccessURL     string
	CancelURL      string
}

type service struct {
	repo       *Repository
	accounts   accountRepository
	stripe     StripeClient
	priceID    string
	successURL string
	cancelURL  string
	now        func() time.Time
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription repo required")
	}
	if params.AccountRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "account repo required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if strings.TrimSpace(params.DefaultPriceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "default price id required")
	}
	return &service{
		repo:       params.Repo,
		accounts:   params.AccountRepo,
		stripe:     params.StripeClient,
		priceID:    strings.TrimSpace(params.DefaultPriceID),
		successURL: strings.TrimSpace(params.SuccessURL),
		cancelURL:  strings.TrimSpace(params.CancelURL),
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// StartCheckout opens a Stripe checkout session for the account. The account
// id rides along in both the session and subscription metadata so webhook
// deliveries can find their way back without a customer lookup.
func (s *service) StartCheckout(ctx context.Context, accountID uuid.UUID) (*CheckoutSession, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}

	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "account not found")
	}

	metadata := map[string]string{"account_id": accountID.String()}
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		CustomerEmail:     stripe.String(acct.Email),
		ClientReferenceID: stripe.String(accountID.String()),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		Metadata:          metadata,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}

	session, err := s.stripe.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	return &CheckoutSession{SessionID: session.ID, URL: session.URL}, nil
}

// GetStatus reports the account's latest subscription standing.
func (s *service) GetStatus(ctx context.Context, accountID uuid.UUID) (*Status, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}

	sub, err := s.repo.FindLatestByAccount(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if sub == nil {
		return &Status{}, nil
	}

	return &Status{
		HasSubscription:   true,
		Status:            sub.Status,
		Active:            IsActive(sub),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		CurrentPeriodEnd:  sub.CurrentPeriodEnd,
		DaysRemaining:     DaysRemaining(sub, s.now()),
	}, nil
}
