package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/slotbook/scheduler/internal/platform/auth"
	"github.com/slotbook/scheduler/internal/platform/db"
)

// Audit logs every calendar write: who changed what, for which business,
// and with what outcome. Reads are not audited.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			action := methodToAction(req.Method)
			if action == "" {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			ctx := req.Context()
			logger.Info().
				Str("type", "audit").
				Str("request_id", RequestIDFrom(c)).
				Str("user_id", auth.UserIDFromContext(ctx)).
				Strs("user_roles", auth.RolesFromContext(ctx)).
				Int64("business_id", db.BusinessFromContext(ctx)).
				Str("resource", resourceOf(req.URL.Path)).
				Str("action", action).
				Str("path", req.URL.Path).
				Int("status", status).
				Msg("calendar_write")

			return err
		}
	}
}

func methodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	return ""
}

// resourceOf returns the first path segment after /api/v1/.
func resourceOf(path string) string {
	rest := strings.TrimPrefix(path, "/api/v1/")
	if rest == path {
		return "unknown"
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "unknown"
	}
	return rest
}
