package config

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"storytime-api/internal/clock"
	"storytime-api/internal/domain"
	"storytime-api/internal/entitlement"
	"storytime-api/internal/handler"
	"storytime-api/internal/infra/payments"
	"storytime-api/internal/infra/redis"
	"storytime-api/internal/infra/supabase"
	"storytime-api/internal/metrics"
	"storytime-api/internal/repository"
	"storytime-api/internal/service"
	"storytime-api/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config         domain.Config
	Logger         domain.Logger
	SupabaseClient *supabase.SupabaseClient
	Redis          *goredis.Client
	Metrics        *metrics.Metrics

	SubscriptionRepository domain.SubscriptionRepository
	UsageRepository        domain.UsageRepository
	PlanRepository         domain.PlanRepository

	AuthService        domain.AuthService
	EntitlementService domain.EntitlementService
	UsageService       domain.UsageService
	BillingService     domain.BillingService

	Handlers       handler.Handlers
	AuthMiddleware *handler.AuthMiddleware
}

// NewContainer creates a new dependency injection container. Stripe and Redis
// are optional: without them billing answers 503 and webhook redeliveries are
// not deduplicated.
func NewContainer() (*Container, error) {
	cfg := NewConfig()
	appLogger := logger.NewLogger(cfg.GetLogLevel())

	supabaseClient := supabase.NewSupabaseClient(cfg, appLogger)
	if err := supabaseClient.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize supabase: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	var dedup domain.EventDeduplicator
	var redisClient *goredis.Client
	if addr := cfg.GetRedisAddr(); addr != "" {
		client, err := redis.NewClient(redis.Config{
			Addr:     addr,
			Password: cfg.GetRedisPassword(),
			DB:       cfg.GetRedisDB(),
		})
		if err != nil {
			appLogger.Warn("Redis unavailable, webhook deduplication disabled", "addr", addr, "error", err.Error())
		} else {
			redisClient = client
			dedup = redis.NewEventDeduplicator(client, cfg.GetWebhookDedupTTL())
		}
	}

	var gateway domain.PaymentGateway
	if cfg.GetStripeSecretKey() != "" {
		gateway = payments.NewStripeGateway(cfg.GetStripeSecretKey(), cfg.GetStripeWebhookSecret(), cfg.GetFrontendURL())
	} else {
		appLogger.Warn("STRIPE_SECRET_KEY not set, billing endpoints disabled")
	}

	evaluator := entitlement.NewEvaluator(clock.System{})

	subscriptionRepo := repository.NewSubscriptionRepository(supabaseClient, appLogger)
	usageRepo := repository.NewUsageRepository(supabaseClient, appLogger)
	planRepo := repository.NewPlanRepository(supabaseClient, appLogger)

	authService := service.NewAuthService(supabaseClient, appLogger)
	entitlementService := service.NewEntitlementService(subscriptionRepo, usageRepo, planRepo, evaluator, m, appLogger)
	usageService := service.NewUsageService(subscriptionRepo, usageRepo, evaluator, m, appLogger)
	billingService := service.NewBillingService(gateway, planRepo, subscriptionRepo, dedup, m, appLogger)

	handlers := handler.Handlers{
		Auth:         handler.NewAuthHandler(appLogger),
		Subscription: handler.NewSubscriptionHandler(entitlementService, appLogger),
		Usage:        handler.NewUsageHandler(usageService, appLogger),
		Billing:      handler.NewBillingHandler(billingService, appLogger),
		Metrics:      m.Handler(),
	}
	if secret := cfg.GetAdminSecret(); secret != "" {
		handlers.Admin = handler.NewAdminHandler(usageService, secret, appLogger)
	}

	return &Container{
		Config:                 cfg,
		Logger:                 appLogger,
		SupabaseClient:         supabaseClient,
		Redis:                  redisClient,
		Metrics:                m,
		SubscriptionRepository: subscriptionRepo,
		UsageRepository:        usageRepo,
		PlanRepository:         planRepo,
		AuthService:            authService,
		EntitlementService:     entitlementService,
		UsageService:           usageService,
		BillingService:         billingService,
		Handlers:               handlers,
		AuthMiddleware:         handler.NewAuthMiddleware(authService, appLogger),
	}, nil
}

// Close releases external connections and flushes the logger.
func (c *Container) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Error("Failed to close Redis client", err)
		}
	}
	logger.Sync(c.Logger)
}
