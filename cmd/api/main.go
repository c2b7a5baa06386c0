package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/photosort/photosort-backend/api/routes"
	"github.com/photosort/photosort-backend/internal/accounts"
	"github.com/photosort/photosort-backend/internal/apikeys"
	"github.com/photosort/photosort-backend/internal/auth"
	"github.com/photosort/photosort-backend/internal/subscriptions"
	"github.com/photosort/photosort-backend/internal/usage"
	stripewebhook "github.com/photosort/photosort-backend/internal/webhooks/stripe"
	"github.com/photosort/photosort-backend/pkg/auth/session"
	"github.com/photosort/photosort-backend/pkg/config"
	"github.com/photosort/photosort-backend/pkg/db"
	"github.com/photosort/photosort-backend/pkg/logger"
	"github.com/photosort/photosort-backend/pkg/migrate"
	"github.com/photosort/photosort-backend/pkg/redis"
	"github.com/photosort/photosort-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe client", err)
		os.Exit(1)
	}
	stripeAPI := subscriptions.NewStripeClient(stripeClient)

	accountRepo := accounts.NewRepository(dbClient.DB())
	subscriptionRepo := subscriptions.NewRepository(dbClient.DB())

	authService, err := auth.NewService(auth.ServiceParams{
		AccountRepo: accountRepo,
		Sessions:    sessionManager,
		JWT:         cfg.JWT,
		Password:    cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	usageService, err := usage.NewService(usage.ServiceParams{
		AccountRepo:       accountRepo,
		LogRepo:           usage.NewRepository(dbClient.DB()),
		TransactionRunner: dbClient,
		FreeTierLimit:     int64(cfg.Quota.FreeTierLimit),
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create usage service", err)
		os.Exit(1)
	}

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:           subscriptionRepo,
		AccountRepo:    accountRepo,
		StripeClient:   stripeAPI,
		DefaultPriceID: cfg.Stripe.PriceID,
		SuccessURL:     cfg.Stripe.SuccessURL,
		CancelURL:      cfg.Stripe.CancelURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		AccountRepo:       accountRepo,
		SubscriptionRepo:  subscriptionRepo,
		StripeClient:      stripeAPI,
		TransactionRunner: dbClient,
		PremiumPeriod:     cfg.Quota.PremiumPeriod(),
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Stripe.WebhookIdempotencyTTL, "stripe")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:              cfg,
			Logger:              logg,
			DB:                  dbClient,
			Redis:               redisClient,
			Sessions:            sessionManager,
			AccountRepo:         accountRepo,
			AuthService:         authService,
			UsageService:        usageService,
			SubscriptionService: subscriptionService,
			APIKeyService:       apikeys.NewService(dbClient.DB()),
			StripeClient:        stripeClient,
			StripeWebhookSvc:    webhookService,
			StripeWebhookGuard:  webhookGuard,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
