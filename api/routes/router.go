package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/photosort/photosort-backend/api/controllers"
	webhookcontrollers "github.com/photosort/photosort-backend/api/controllers/webhooks"
	"github.com/photosort/photosort-backend/api/middleware"
	"github.com/photosort/photosort-backend/internal/accounts"
	"github.com/photosort/photosort-backend/internal/apikeys"
	"github.com/photosort/photosort-backend/internal/auth"
	"github.com/photosort/photosort-backend/internal/subscriptions"
	"github.com/photosort/photosort-backend/internal/usage"
	stripewebhook "github.com/photosort/photosort-backend/internal/webhooks/stripe"
	"github.com/photosort/photosort-backend/pkg/auth/session"
	"github.com/photosort/photosort-backend/pkg/config"
	"github.com/photosort/photosort-backend/pkg/logger"
	"github.com/photosort/photosort-backend/pkg/redis"
	"github.com/photosort/photosort-backend/pkg/stripe"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

type dbPinger interface {
	Ping(ctx context.Context) error
}

// RouterParams carries everything the HTTP surface depends on.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       dbPinger
	Redis    *redis.Client
	Sessions sessionManager

	AccountRepo         *accounts.Repository
	AuthService         auth.Service
	UsageService        usage.Service
	SubscriptionService subscriptions.Service
	APIKeyService       *apikeys.Service

	StripeClient       *stripe.Client
	StripeWebhookSvc   *stripewebhook.Service
	StripeWebhookGuard *stripewebhook.IdempotencyGuard
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.StripeWebhookSvc, p.StripeClient, p.StripeWebhookGuard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, p.Redis, logg)).Post("/login", controllers.AuthLogin(p.AuthService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, p.Redis, logg)).Post("/register", controllers.AuthRegister(p.AuthService, logg))
		r.Post("/logout", controllers.AuthLogout(p.Sessions, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.Sessions, cfg.JWT, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))

		r.Get("/me", controllers.AccountMe(p.AccountRepo, cfg.Quota, logg))

		r.Route("/usage", func(r chi.Router) {
			r.Post("/sessions", controllers.UsageRecordSession(p.UsageService, logg))
			r.Get("/check", controllers.UsageCheck(p.UsageService, logg))
			r.Get("/statistics", controllers.UsageStatistics(p.UsageService, logg))
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/checkout", controllers.SubscriptionCheckout(p.SubscriptionService, logg))
			r.Get("/status", controllers.SubscriptionStatus(p.SubscriptionService, logg))
		})

		r.Route("/keys", func(r chi.Router) {
			r.Use(middleware.RequirePremium(p.AccountRepo, logg))
			r.Post("/", controllers.APIKeyMint(p.APIKeyService, logg))
			r.Get("/", controllers.APIKeyList(p.APIKeyService, logg))
			r.Delete("/{keyID}", controllers.APIKeyRevoke(p.APIKeyService, logg))
		})
	})

	// Machine surface: the desktop app reports sessions with an API key
	// instead of a browser session.
	r.Route("/api/integration/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(p.APIKeyService, logg))
		r.Post("/usage/sessions", controllers.UsageRecordSession(p.UsageService, logg))
		r.Get("/usage/check", controllers.UsageCheck(p.UsageService, logg))
	})

	return r
}
