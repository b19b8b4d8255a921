package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/random"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"shopsuite/internal/caching"
	"shopsuite/internal/config"
	"shopsuite/internal/handlers"
	"shopsuite/internal/jobs/background"
	"shopsuite/internal/middleware"
	"shopsuite/internal/repositories"
	"shopsuite/internal/services"
	"shopsuite/pkg/database"
	"shopsuite/pkg/logger"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	// A permission key missing from any role bundle is a deploy-time failure.
	if err := services.ValidatePermissionTable(); err != nil {
		log.Fatal().Err(err).Msg("permission table validation failed")
	}

	if cfg.Database.URL == "" {
		log.Fatal().Msg("database.url is required")
	}
	if cfg.JWT.Secret == "" {
		// Tokens signed with a generated secret do not survive a restart.
		cfg.JWT.Secret = random.String(32)
		log.Warn().Msg("jwt.secret not set, using a generated secret")
	}

	ctx := context.Background()

	pool, err := database.NewPool(cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	cacheSvc := caching.NewRedisCacheService(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	// Repositories
	tenantRepo := repositories.NewTenantRepo(pool)
	userRepo := repositories.NewUserRepo(pool)
	shopRepo := repositories.NewShopRepo(pool)
	planRepo := repositories.NewPlanRepo(pool)
	subRepo := repositories.NewSubscriptionRepo(pool)
	usageRepo := repositories.NewUsageCounterRepo(pool)
	overrideRepo := repositories.NewLimitOverrideRepo(pool)
	emailRepo := repositories.NewEmailLogRepo(pool)
	auditRepo := repositories.NewAuditEventRepo(pool)

	// Services
	rbacSvc := services.NewRBACService()
	auditSvc := services.NewAuditService(auditRepo)
	stripeSvc := services.NewStripeService(cfg.Stripe.APIKey, cfg.Stripe.WebhookSecret, cfg.Stripe.BaseURL, cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL)
	limitSvc := services.NewLimitService(planRepo, subRepo, userRepo, shopRepo, emailRepo, usageRepo, overrideRepo, cacheSvc, auditSvc)
	userSvc := services.NewUserService(userRepo, limitSvc, auditSvc)
	shopSvc := services.NewShopService(shopRepo, limitSvc)
	planSvc := services.NewPlanService(planRepo, cacheSvc)
	tenantSvc := services.NewTenantService(pool, tenantRepo, userRepo, usageRepo)
	subSvc := services.NewSubscriptionService(pool, subRepo, planRepo, userRepo, shopRepo, usageRepo, overrideRepo, cacheSvc, stripeSvc, auditSvc)
	authSvc := services.NewAuthService(userRepo, cacheSvc, cfg.JWT.Secret, cfg.JWT.AccessTokenTTL, cfg.JWT.RefreshTokenTTL, cfg.Lockout.MaxAttempts, cfg.Lockout.Window)

	archiveSvc, err := services.NewArchiveService(cfg.Minio.Endpoint, cfg.Minio.AccessKeyID, cfg.Minio.SecretAccessKey, cfg.Minio.UseSSL, cfg.Minio.AuditBucket, auditRepo)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize archive storage")
	}
	if err := archiveSvc.EnsureBucket(ctx); err != nil {
		log.Warn().Err(err).Msg("audit archive bucket not ready; archival will retry")
	}

	if err := planSvc.EnsureDefaultPlans(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to seed default plans")
	}

	// Handlers
	authHandlers := handlers.NewAuthHandlers(authSvc, tenantSvc, userSvc)
	tenantHandlers := handlers.NewTenantHandlers(tenantSvc)
	userHandlers := handlers.NewUserHandlers(userSvc)
	shopHandlers := handlers.NewShopHandlers(shopSvc)
	subHandlers := handlers.NewSubscriptionHandlers(subSvc, planSvc)
	limitHandlers := handlers.NewLimitHandlers(limitSvc)
	emailHandlers := handlers.NewEmailHandlers(limitSvc)
	auditHandlers := handlers.NewAuditHandlers(auditSvc)
	webhookHandlers := handlers.NewWebhookHandlers(subSvc, stripeSvc)
	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc, version)

	rbacMW := middleware.NewRBACMiddleware(rbacSvc)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())
	e.Use(middleware.RequestLogger)
	e.Use(middleware.Metrics)

	// Probes and metrics sit outside the versioned API.
	e.GET("/health", healthHandlers.LivenessCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)
	e.GET("/health/detailed", healthHandlers.DetailedHealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1")
	v1.Use(middleware.VersionHeader("v1"))

	// Provider callbacks authenticate by signature, not session.
	v1.POST("/webhooks/stripe", webhookHandlers.StripeWebhook)

	auth := v1.Group("/auth")
	auth.POST("/signup", authHandlers.Signup)
	auth.POST("/login", authHandlers.Login)
	auth.POST("/refresh", authHandlers.Refresh)
	auth.POST("/logout", authHandlers.Logout)

	protected := v1.Group("")
	protected.Use(middleware.JWTMiddleware(cfg.JWT.Secret))

	protected.GET("/me", authHandlers.Me)

	protected.GET("/tenant", tenantHandlers.GetTenant, rbacMW.RequirePermission(services.PermCompanyView))
	protected.PUT("/tenant", tenantHandlers.UpdateTenant, rbacMW.RequirePermission(services.PermCompanyEdit))

	protected.GET("/users", userHandlers.ListUsers, rbacMW.RequirePermission(services.PermUsersView))
	protected.POST("/users", userHandlers.CreateUser, rbacMW.RequirePermission(services.PermUsersCreate))
	protected.GET("/users/:id", userHandlers.GetUser, rbacMW.RequirePermission(services.PermUsersView))
	protected.PUT("/users/:id", userHandlers.UpdateUser, rbacMW.RequirePermission(services.PermUsersEdit))
	protected.PUT("/users/:id/role", userHandlers.ChangeRole, rbacMW.RequirePermission(services.PermUsersChangeRole))
	protected.POST("/users/:id/deactivate", userHandlers.DeactivateUser, rbacMW.RequirePermission(services.PermUsersEdit))
	protected.POST("/users/:id/activate", userHandlers.ActivateUser, rbacMW.RequirePermission(services.PermUsersEdit))
	protected.DELETE("/users/:id", userHandlers.DeleteUser, rbacMW.RequirePermission(services.PermUsersDelete))

	protected.GET("/shops", shopHandlers.ListShops, rbacMW.RequirePermission(services.PermShopsView))
	protected.POST("/shops", shopHandlers.CreateShop, rbacMW.RequirePermission(services.PermShopsCreate))
	protected.GET("/shops/:id", shopHandlers.GetShop, rbacMW.RequirePermission(services.PermShopsView))
	protected.PUT("/shops/:id", shopHandlers.UpdateShop, rbacMW.RequirePermission(services.PermShopsEdit))
	protected.DELETE("/shops/:id", shopHandlers.DeleteShop, rbacMW.RequirePermission(services.PermShopsDelete))

	protected.GET("/plans", subHandlers.ListPlans, rbacMW.RequirePermission(services.PermSubscriptionsView))
	protected.GET("/subscription", subHandlers.GetCurrent, rbacMW.RequirePermission(services.PermSubscriptionsView))
	protected.POST("/subscription/transition", subHandlers.TransitionPlan, rbacMW.RequirePermission(services.PermSubscriptionsManage))
	protected.POST("/subscription/cancel", subHandlers.CancelSubscription, rbacMW.RequirePermission(services.PermSubscriptionsManage))
	protected.POST("/subscription/reactivate", subHandlers.ReactivateSubscription, rbacMW.RequirePermission(services.PermSubscriptionsManage))
	protected.POST("/subscription/schedule-downgrade", subHandlers.ScheduleDowngrade, rbacMW.RequirePermission(services.PermSubscriptionsManage))

	// Limit reads are advisory and visible to every signed-in member; the
	// binding check happens on the write path.
	protected.GET("/limits", limitHandlers.GetAllLimits)
	protected.GET("/limits/:kind", limitHandlers.GetLimit)

	protected.POST("/emails/consume", emailHandlers.ConsumeQuota, rbacMW.RequirePermission(services.PermEmailsSend))

	protected.GET("/audit-events", auditHandlers.ListEvents, rbacMW.RequirePermission(services.PermAuditView))

	var scheduler *background.JobScheduler
	if cfg.Jobs.Enabled {
		scheduler, err = background.NewJobScheduler(subSvc, limitSvc, archiveSvc, tenantRepo, cfg.Jobs)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create job scheduler")
		}
		scheduler.Start()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info().Str("addr", addr).Str("version", version).Msg("server starting")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if scheduler != nil {
		if err := scheduler.Stop(); err != nil {
			log.Error().Err(err).Msg("scheduler shutdown failed")
		}
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
