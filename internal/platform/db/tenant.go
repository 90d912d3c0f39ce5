package db

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/slotbook/scheduler/internal/platform/auth"
)

type contextKey string

const BusinessIDKey contextKey = "business_id"

const BusinessIDHeader = "X-Business-ID"

type TenantConfig struct {
	DefaultBusinessID int64
	// AllowOverride lets requests choose a business by header or query
	// parameter and fall back to DefaultBusinessID. Development only.
	AllowOverride bool
}

// TenantMiddleware resolves the business every downstream query is scoped to.
func TenantMiddleware(cfg TenantConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			businessID, status, msg := extractBusinessID(c, cfg)
			if status != 0 {
				return echo.NewHTTPError(status, msg)
			}

			ctx := WithBusinessID(c.Request().Context(), businessID)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set(string(BusinessIDKey), businessID)
			return next(c)
		}
	}
}

func extractBusinessID(c echo.Context, cfg TenantConfig) (int64, int, string) {
	// 1. Token claim
	if id, ok := c.Get(auth.BusinessClaimKey).(int64); ok && id > 0 {
		return id, 0, ""
	}
	if !cfg.AllowOverride {
		return 0, http.StatusForbidden, "token carries no business"
	}

	// 2. Header, 3. query parameter
	raw := c.Request().Header.Get(BusinessIDHeader)
	if raw == "" {
		raw = c.QueryParam("business_id")
	}
	if raw == "" {
		if cfg.DefaultBusinessID <= 0 {
			return 0, http.StatusBadRequest, "business id is required"
		}
		return cfg.DefaultBusinessID, 0, ""
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, http.StatusBadRequest, "invalid business identifier"
	}
	return id, 0, ""
}

func WithBusinessID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, BusinessIDKey, id)
}

// BusinessFromContext returns the resolved business id, or 0 outside a
// tenant-scoped request.
func BusinessFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(BusinessIDKey).(int64)
	return id
}
