package main

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/slotbook/scheduler/internal/config"
	"github.com/slotbook/scheduler/internal/domain/provider"
	"github.com/slotbook/scheduler/internal/domain/scheduling"
	"github.com/slotbook/scheduler/internal/platform/auth"
	"github.com/slotbook/scheduler/internal/platform/db"
	"github.com/slotbook/scheduler/internal/platform/middleware"
	"github.com/slotbook/scheduler/internal/platform/telemetry"
)

type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *pgxpool.Pool
	// rdb is nil when REDIS_URL is unset.
	rdb        redis.UniversalClient
	checks     []db.Check
	metrics    *telemetry.Metrics
	scheduling *scheduling.Service
	providers  *provider.Service
}

func (a *app) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(a.cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, db.BusinessIDHeader},
	}))
	if a.metrics != nil {
		e.Use(a.metrics.Middleware())
		e.GET("/metrics", a.metrics.Handler())
	}

	// Health
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.ReadinessHandler(a.pool, a.checks...))

	api := e.Group("/api/v1")
	api.Use(a.authMiddleware())
	api.Use(db.TenantMiddleware(db.TenantConfig{
		DefaultBusinessID: a.cfg.DefaultBusinessID,
		AllowOverride:     a.cfg.IsDev(),
	}))
	api.Use(a.rateLimiter())
	api.Use(middleware.Audit(a.logger))

	scheduling.NewHandler(a.scheduling).RegisterRoutes(api)
	provider.NewHandler(a.providers).RegisterRoutes(api)

	return e
}

// authMiddleware verifies bearer tokens whenever a verifier is configured.
// Development without one lets requests through as an owner.
func (a *app) authMiddleware() echo.MiddlewareFunc {
	if a.cfg.IsDev() && a.cfg.AuthIssuer == "" && a.cfg.AuthSigningKey == "" {
		a.logger.Warn().Msg("no token verifier configured, using development auth")
		return auth.DevAuthMiddleware()
	}
	return auth.JWTMiddleware(auth.JWTConfig{
		Issuer:     a.cfg.AuthIssuer,
		Audience:   a.cfg.AuthAudience,
		JWKSURL:    a.cfg.AuthJWKSURL,
		SigningKey: []byte(a.cfg.AuthSigningKey),
	})
}

// rateLimiter shares one fixed window across instances when Redis is
// available and falls back to a per-process token bucket otherwise.
func (a *app) rateLimiter() echo.MiddlewareFunc {
	cfg := middleware.RateLimitConfig{
		RequestsPerSecond: a.cfg.RateLimitRPS,
		BurstSize:         a.cfg.RateLimitBurst,
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg = middleware.DefaultRateLimitConfig()
	}
	if a.rdb == nil {
		return middleware.RateLimit(cfg)
	}
	perMinute := int(cfg.RequestsPerSecond * 60)
	return middleware.NewRedisRateLimiter(a.rdb, perMinute, time.Minute, "scheduler:rl",
		a.cfg.RateLimitFailOpen, a.logger).Middleware()
}
